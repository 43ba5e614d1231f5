package enrich

import (
	"context"
	"log/slog"

	"github.com/shelfwatch/ingestd/internal/config"
	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/match"
	"github.com/shelfwatch/ingestd/internal/metadata/mangadex"
)

// MangaDexAdapter enriches manga from the MangaDex REST API.
type MangaDexAdapter struct {
	client *mangadex.Client
}

// NewMangaDexAdapter creates an adapter wrapping a fresh MangaDex client.
func NewMangaDexAdapter(cfg config.SourceConfig, logger *slog.Logger) *MangaDexAdapter {
	return &MangaDexAdapter{client: mangadex.New(cfg, logger)}
}

func (a *MangaDexAdapter) Slug() string              { return "mangadex" }
func (a *MangaDexAdapter) DisplayName() string        { return "MangaDex" }
func (a *MangaDexAdapter) Domain() domain.ContentType { return domain.ContentTypeManga }
func (a *MangaDexAdapter) Close()                     { a.client.Close() }

func (a *MangaDexAdapter) Match(ctx context.Context, book *domain.Book) (*Candidate, error) {
	cleaned := match.CleanMangaTitle(book.Title)
	mangas, err := a.client.SearchByMangaName(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	if len(mangas) == 0 {
		return nil, nil
	}

	best, score := bestOf(mangas, func(m mangadex.Manga) float64 {
		return mangadex.MatchScore(m, cleaned)
	})
	if score < mangaMatchThreshold {
		return nil, nil
	}

	meta := mangadex.MapToBookMetadata(best)
	meta.Source = a.Slug()
	return &Candidate{Metadata: meta, CoverURL: mangadex.GetCoverURL(best)}, nil
}
