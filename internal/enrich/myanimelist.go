package enrich

import (
	"context"
	"log/slog"

	"github.com/shelfwatch/ingestd/internal/config"
	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/match"
	"github.com/shelfwatch/ingestd/internal/metadata/myanimelist"
)

// MyAnimeListAdapter enriches manga from the MyAnimeList v2 API.
type MyAnimeListAdapter struct {
	client *myanimelist.Client
}

// NewMyAnimeListAdapter creates an adapter wrapping a fresh MAL client.
func NewMyAnimeListAdapter(cfg config.SourceConfig, logger *slog.Logger) *MyAnimeListAdapter {
	return &MyAnimeListAdapter{client: myanimelist.New(cfg, logger)}
}

func (a *MyAnimeListAdapter) Slug() string              { return "myanimelist" }
func (a *MyAnimeListAdapter) DisplayName() string        { return "MyAnimeList" }
func (a *MyAnimeListAdapter) Domain() domain.ContentType { return domain.ContentTypeManga }
func (a *MyAnimeListAdapter) Close()                     { a.client.Close() }

func (a *MyAnimeListAdapter) Match(ctx context.Context, book *domain.Book) (*Candidate, error) {
	cleaned := match.CleanMangaTitle(book.Title)
	mangas, err := a.client.SearchByMangaName(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	if len(mangas) == 0 {
		return nil, nil
	}

	best, score := bestOf(mangas, func(m myanimelist.Manga) float64 {
		return myanimelist.MatchScore(m, cleaned)
	})
	if score < mangaMatchThreshold {
		return nil, nil
	}

	meta := myanimelist.MapToBookMetadata(best)
	meta.Source = a.Slug()
	return &Candidate{Metadata: meta, CoverURL: myanimelist.GetCoverURL(best)}, nil
}
