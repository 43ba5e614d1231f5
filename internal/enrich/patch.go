package enrich

import (
	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/metadata"
	"github.com/shelfwatch/ingestd/internal/store"
)

// buildPatch folds a source's metadata into a non-overwriting patch: a
// field is only set if the book's current value is empty (spec §4.6
// step 7). Genres additionally count an empty slice as unset.
func buildPatch(book *domain.Book, meta metadata.PartialMetadata) (store.Patch, []string) {
	var patch store.Patch
	var fields []string

	setString := func(current, candidate string, assign func(*string), field string) {
		if current != "" || candidate == "" {
			return
		}
		v := candidate
		assign(&v)
		fields = append(fields, field)
	}

	setString(book.Title, meta.Title, func(v *string) { patch.Title = v }, "title")
	setString(book.Author, meta.Author, func(v *string) { patch.Author = v }, "author")
	setString(book.Description, meta.Description, func(v *string) { patch.Description = v }, "description")
	setString(book.Publisher, meta.Publisher, func(v *string) { patch.Publisher = v }, "publisher")
	setString(book.Language, meta.Language, func(v *string) { patch.Language = v }, "language")
	setString(book.ISBN, meta.ISBN, func(v *string) { patch.ISBN = v }, "isbn")
	setString(book.PublicationDate, meta.PublicationDate, func(v *string) { patch.PublicationDate = v }, "publication_date")
	setString(book.Series, meta.Series, func(v *string) { patch.Series = v }, "series")

	if book.Volume == nil && meta.Volume != nil {
		patch.Volume = meta.Volume
		fields = append(fields, "volume")
	}

	if !book.HasGenres() && len(meta.Genres) > 0 {
		patch.Genres = meta.Genres
		fields = append(fields, "genres")
	}

	return patch, fields
}
