package enrich

import (
	"context"
	"log/slog"

	"github.com/shelfwatch/ingestd/internal/config"
	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/metadata/googlebooks"
)

// googleBooksMatchThreshold is the ebook match threshold (spec §4.6.1).
const googleBooksMatchThreshold = 50.0

// GoogleBooksAdapter enriches ebooks from the Google Books volumes API.
type GoogleBooksAdapter struct {
	client *googlebooks.Client
}

// NewGoogleBooksAdapter creates an adapter wrapping a fresh Google Books client.
func NewGoogleBooksAdapter(cfg config.SourceConfig, logger *slog.Logger) *GoogleBooksAdapter {
	return &GoogleBooksAdapter{client: googlebooks.New(cfg, logger)}
}

func (a *GoogleBooksAdapter) Slug() string              { return "googlebooks" }
func (a *GoogleBooksAdapter) DisplayName() string       { return "Google Books" }
func (a *GoogleBooksAdapter) Domain() domain.ContentType { return domain.ContentTypeBook }
func (a *GoogleBooksAdapter) Close()                    { a.client.Close() }

// Match searches by ISBN first, falling back to title+author.
func (a *GoogleBooksAdapter) Match(ctx context.Context, book *domain.Book) (*Candidate, error) {
	volumes, err := a.search(ctx, book)
	if err != nil {
		return nil, err
	}
	if len(volumes) == 0 {
		return nil, nil
	}

	best, score := bestOf(volumes, func(v googlebooks.Volume) float64 {
		return googlebooks.MatchScore(v, book.Title, book.Author)
	})
	if score < googleBooksMatchThreshold {
		return nil, nil
	}

	meta := googlebooks.MapToBookMetadata(best)
	meta.Source = a.Slug()
	return &Candidate{Metadata: meta, CoverURL: googlebooks.GetCoverURL(best)}, nil
}

func (a *GoogleBooksAdapter) search(ctx context.Context, book *domain.Book) ([]googlebooks.Volume, error) {
	if book.ISBN != "" {
		volumes, err := a.client.SearchByISBN(ctx, book.ISBN)
		if err != nil {
			return nil, err
		}
		if len(volumes) > 0 {
			return volumes, nil
		}
	}
	return a.client.SearchByTitle(ctx, book.Title, book.Author)
}
