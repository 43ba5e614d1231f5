package enrich

import (
	"context"
	"log/slog"

	"github.com/shelfwatch/ingestd/internal/config"
	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/match"
	"github.com/shelfwatch/ingestd/internal/metadata/anilist"
)

// mangaMatchThreshold is the manga match threshold shared by all three
// manga sources (spec §4.6.1).
const mangaMatchThreshold = 40.0

// AniListAdapter enriches manga from the AniList GraphQL API.
type AniListAdapter struct {
	client *anilist.Client
}

// NewAniListAdapter creates an adapter wrapping a fresh AniList client.
func NewAniListAdapter(cfg config.SourceConfig, logger *slog.Logger) *AniListAdapter {
	return &AniListAdapter{client: anilist.New(cfg, logger)}
}

func (a *AniListAdapter) Slug() string               { return "anilist" }
func (a *AniListAdapter) DisplayName() string         { return "AniList" }
func (a *AniListAdapter) Domain() domain.ContentType  { return domain.ContentTypeManga }
func (a *AniListAdapter) Close()                      { a.client.Close() }

// Match searches by the cleaned title (spec §4.6.2 strips volume/tome
// markers and bracketed segments before every manga source query).
func (a *AniListAdapter) Match(ctx context.Context, book *domain.Book) (*Candidate, error) {
	cleaned := match.CleanMangaTitle(book.Title)
	media, err := a.client.SearchByMangaName(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	if len(media) == 0 {
		return nil, nil
	}

	best, score := bestOf(media, func(m anilist.Media) float64 {
		return anilist.MatchScore(m, cleaned)
	})
	if score < mangaMatchThreshold {
		return nil, nil
	}

	meta := anilist.MapToBookMetadata(best)
	meta.Source = a.Slug()
	return &Candidate{Metadata: meta, CoverURL: anilist.GetCoverURL(best)}, nil
}
