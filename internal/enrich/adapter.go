// Package enrich implements the per-source adapter contract and the
// engine that runs a single external source against a book (spec §4.6):
// search, score, non-overwriting patch, cover fetch, persist.
package enrich

import (
	"context"

	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/metadata"
)

// Adapter wraps one external metadata source behind a uniform contract.
// Match returns nil, nil when the source has no candidate scoring at or
// above its threshold; it returns a non-nil error only for an actual search
// failure (network, non-retryable status, exhausted retries).
type Adapter interface {
	// Slug is the short, stable source identifier used in event payloads
	// and cover-replace-rule checks (e.g. "openlibrary").
	Slug() string
	// DisplayName is the human-readable source name used when
	// synthesizing quarantine failure reasons (e.g. "OpenLibrary").
	DisplayName() string
	// Domain is the content type this source enriches.
	Domain() domain.ContentType
	// Match searches the source for book and returns its best candidate,
	// or nil if none scored at or above the source's match threshold.
	Match(ctx context.Context, book *domain.Book) (*Candidate, error)
	// Close releases the adapter's rate limiter and any other resources.
	Close()
}

// Candidate is a source's best-matching result, ready to be folded into
// a non-overwriting patch.
type Candidate struct {
	Metadata metadata.PartialMetadata
	CoverURL string
}

// bestOf scores every item and returns the highest-scoring one. Callers
// must not call this with an empty slice.
func bestOf[T any](items []T, score func(T) float64) (best T, bestScore float64) {
	for i, item := range items {
		s := score(item)
		if i == 0 || s > bestScore {
			bestScore = s
			best = item
		}
	}
	return best, bestScore
}
