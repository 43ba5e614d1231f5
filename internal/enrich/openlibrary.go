package enrich

import (
	"context"
	"log/slog"

	"github.com/shelfwatch/ingestd/internal/config"
	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/metadata/openlibrary"
)

// openLibraryMatchThreshold is the ebook match threshold (spec §4.6.1).
const openLibraryMatchThreshold = 50.0

// OpenLibraryAdapter enriches ebooks from the OpenLibrary search API.
type OpenLibraryAdapter struct {
	client *openlibrary.Client
}

// NewOpenLibraryAdapter creates an adapter wrapping a fresh OpenLibrary client.
func NewOpenLibraryAdapter(cfg config.SourceConfig, logger *slog.Logger) *OpenLibraryAdapter {
	return &OpenLibraryAdapter{client: openlibrary.New(cfg, logger)}
}

func (a *OpenLibraryAdapter) Slug() string               { return "openlibrary" }
func (a *OpenLibraryAdapter) DisplayName() string         { return "OpenLibrary" }
func (a *OpenLibraryAdapter) Domain() domain.ContentType  { return domain.ContentTypeBook }
func (a *OpenLibraryAdapter) Close()                      { a.client.Close() }

// Match searches by ISBN first, falling back to title+author (spec §4.6
// step 3: "ISBN-then-title+author for ebook").
func (a *OpenLibraryAdapter) Match(ctx context.Context, book *domain.Book) (*Candidate, error) {
	docs, err := a.search(ctx, book)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	best, score := bestOf(docs, func(d openlibrary.Doc) float64 {
		return openlibrary.MatchScore(d, book.Title, book.Author)
	})
	if score < openLibraryMatchThreshold {
		return nil, nil
	}

	meta := openlibrary.MapToBookMetadata(best)
	meta.Source = a.Slug()
	return &Candidate{Metadata: meta, CoverURL: openlibrary.GetCoverURL(best)}, nil
}

func (a *OpenLibraryAdapter) search(ctx context.Context, book *domain.Book) ([]openlibrary.Doc, error) {
	if book.ISBN != "" {
		docs, err := a.client.SearchByISBN(ctx, book.ISBN)
		if err != nil {
			return nil, err
		}
		if len(docs) > 0 {
			return docs, nil
		}
	}
	return a.client.SearchByTitle(ctx, book.Title, book.Author)
}
