// Package store defines the persistence interface for the ingestion pipeline.
package store

import (
	"context"

	"github.com/shelfwatch/ingestd/internal/domain"
)

// BookStore is the only persistence surface the core pipeline depends on.
// A reference implementation lives in internal/store/sqlite; any store
// satisfying this interface can be substituted.
type BookStore interface {
	// Create inserts a new book row and returns it with its assigned ID.
	// It enforces uniqueness of FilePath.
	Create(ctx context.Context, book *domain.Book) (*domain.Book, error)

	// GetByID returns the row for id, or ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Book, error)

	// GetByFilePath returns the row for path, or ErrNotFound if it does
	// not exist. Used by the processor to dedupe re-detections, including
	// files a scan finds that are already ingested.
	GetByFilePath(ctx context.Context, path string) (*domain.Book, error)

	// Update applies a partial patch to the row with id, bumping
	// UpdatedAt. Only non-nil fields in patch are applied.
	Update(ctx context.Context, id int64, patch Patch) error

	// Delete removes the row with id. Not used by the core pipeline;
	// present for completeness.
	Delete(ctx context.Context, id int64) error
}

// Patch describes a partial update to a book row. Fields left nil are
// left untouched. Genres, when non-nil, replaces the full list.
type Patch struct {
	Status          *domain.Status
	FailureReason   *string
	Title           *string
	Author          *string
	Description     *string
	Publisher       *string
	Language        *string
	ISBN            *string
	PublicationDate *string
	Series          *string
	Volume          *int
	Genres          []string
	CoverPath       *string
}
