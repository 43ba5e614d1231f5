package orchestrator

import (
	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/extract"
	"github.com/shelfwatch/ingestd/internal/store"
)

// buildExtractionPatch folds locally-extracted metadata into a
// non-overwriting patch, the same rule enrichment patches follow:
// a field is only set if the book's current value is empty.
func buildExtractionPatch(book *domain.Book, meta extract.Metadata) store.Patch {
	var patch store.Patch

	setString := func(current, candidate string, assign func(*string)) {
		if current != "" || candidate == "" {
			return
		}
		v := candidate
		assign(&v)
	}

	setString(book.Title, meta.Title, func(v *string) { patch.Title = v })
	setString(book.Author, meta.Author, func(v *string) { patch.Author = v })
	setString(book.Description, meta.Description, func(v *string) { patch.Description = v })
	setString(book.Publisher, meta.Publisher, func(v *string) { patch.Publisher = v })
	setString(book.Language, meta.Language, func(v *string) { patch.Language = v })
	setString(book.ISBN, meta.ISBN, func(v *string) { patch.ISBN = v })
	setString(book.PublicationDate, meta.PublicationDate, func(v *string) { patch.PublicationDate = v })
	setString(book.Series, meta.Series, func(v *string) { patch.Series = v })

	if book.Volume == nil && meta.Volume != nil {
		patch.Volume = meta.Volume
	}
	if !book.HasGenres() && len(meta.Genres) > 0 {
		patch.Genres = meta.Genres
	}

	return patch
}

// applyPatchLocally mutates book in place to reflect patch, so the
// enrichment chain that runs immediately after extraction sees
// freshly-extracted fields (ISBN, title) without a round trip to the store.
func applyPatchLocally(book *domain.Book, patch store.Patch) {
	if patch.Title != nil {
		book.Title = *patch.Title
	}
	if patch.Author != nil {
		book.Author = *patch.Author
	}
	if patch.Description != nil {
		book.Description = *patch.Description
	}
	if patch.Publisher != nil {
		book.Publisher = *patch.Publisher
	}
	if patch.Language != nil {
		book.Language = *patch.Language
	}
	if patch.ISBN != nil {
		book.ISBN = *patch.ISBN
	}
	if patch.PublicationDate != nil {
		book.PublicationDate = *patch.PublicationDate
	}
	if patch.Series != nil {
		book.Series = *patch.Series
	}
	if patch.Volume != nil {
		book.Volume = patch.Volume
	}
	if patch.Genres != nil {
		book.Genres = patch.Genres
	}
	if patch.CoverPath != nil {
		book.CoverPath = *patch.CoverPath
	}
	if patch.Status != nil {
		book.Status = *patch.Status
	}
	if patch.FailureReason != nil {
		book.FailureReason = *patch.FailureReason
	}
}
