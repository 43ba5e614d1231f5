package extract

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testComicInfoXML = `<?xml version="1.0"?>
<ComicInfo>
<Title>One Piece</Title>
<Writer>Eiichiro Oda</Writer>
<Summary>Pirates sail the Grand Line.</Summary>
<Series>One Piece</Series>
<Volume>5</Volume>
<Genre>Adventure, Shounen</Genre>
<Year>1997</Year>
<Month>7</Month>
</ComicInfo>`

func TestComic_CBZ_ExtractsMetadataAndCover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.cbz")
	writeZip(t, path, map[string]string{
		"ComicInfo.xml": testComicInfoXML,
	}, map[string][]byte{
		"002.jpg": {0xFF, 0xD8},
		"001.jpg": {0xFF, 0xD8, 0xFF},
	})

	result, err := Comic(path)
	require.NoError(t, err)
	require.True(t, result.MetadataExtracted)
	assert.Equal(t, "One Piece", result.Metadata.Title)
	assert.Equal(t, "Eiichiro Oda", result.Metadata.Author)
	assert.Equal(t, "One Piece", result.Metadata.Series)
	require.NotNil(t, result.Metadata.Volume)
	assert.Equal(t, 5, *result.Metadata.Volume)
	assert.Equal(t, []string{"Adventure", "Shounen"}, result.Metadata.Genres)
	assert.Equal(t, "1997-07-01", result.Metadata.PublicationDate)

	require.True(t, result.CoverExtracted)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, result.Cover.Data)
	assert.Equal(t, ".jpg", result.Cover.Ext)
}

func TestComic_CBZ_NoComicInfoStillExtractsCover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.cbz")
	writeZip(t, path, nil, map[string][]byte{
		"page1.png": {0x89, 0x50, 0x4E, 0x47},
	})

	result, err := Comic(path)
	require.NoError(t, err)
	assert.False(t, result.MetadataExtracted)
	require.True(t, result.CoverExtracted)
	assert.True(t, result.Success())
}

func TestParseVolume_FallsBackToNumber(t *testing.T) {
	v := parseVolume("", "12")
	require.NotNil(t, v)
	assert.Equal(t, 12, *v)
}

func TestParseVolume_NonNumericIsNil(t *testing.T) {
	assert.Nil(t, parseVolume("special", "edition"))
}
