package enrich

import (
	"testing"

	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPatch_FillsEmptyFieldsOnly(t *testing.T) {
	book := &domain.Book{Title: "Existing", Author: ""}
	meta := metadata.PartialMetadata{Title: "New Title", Author: "New Author"}

	patch, fields := buildPatch(book, meta)

	assert.Nil(t, patch.Title)
	require.NotNil(t, patch.Author)
	assert.Equal(t, "New Author", *patch.Author)
	assert.Equal(t, []string{"author"}, fields)
}

func TestBuildPatch_GenresTreatsEmptySliceAsUnset(t *testing.T) {
	book := &domain.Book{Genres: nil}
	meta := metadata.PartialMetadata{Genres: []string{"Adventure"}}

	patch, fields := buildPatch(book, meta)

	assert.Equal(t, []string{"Adventure"}, patch.Genres)
	assert.Contains(t, fields, "genres")
}

func TestBuildPatch_VolumeOnlySetWhenNil(t *testing.T) {
	existing := 3
	book := &domain.Book{Volume: &existing}
	candidate := 7
	meta := metadata.PartialMetadata{Volume: &candidate}

	patch, fields := buildPatch(book, meta)

	assert.Nil(t, patch.Volume)
	assert.NotContains(t, fields, "volume")
}
