package validate

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

const validContainer = `<?xml version="1.0"?>
<container><rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`

func TestEPUB_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	writeZip(t, path, map[string]string{
		"mimetype":                    "application/epub+zip",
		"META-INF/container.xml":      validContainer,
		"OEBPS/content.opf":           "<package></package>",
	})

	res, err := EPUB(path)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestEPUB_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	res, err := EPUB(path)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "not a valid zip archive", res.Reason)
}

func TestEPUB_MissingMimetype(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	writeZip(t, path, map[string]string{
		"META-INF/container.xml": validContainer,
	})

	res, err := EPUB(path)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "missing mimetype entry", res.Reason)
}

func TestEPUB_MismatchedMimetype(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	writeZip(t, path, map[string]string{
		"mimetype":               "text/plain",
		"META-INF/container.xml": validContainer,
	})

	res, err := EPUB(path)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, `mismatched mimetype: found "text/plain"`, res.Reason)
}

func TestEPUB_MissingContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	writeZip(t, path, map[string]string{
		"mimetype": "application/epub+zip",
	})

	res, err := EPUB(path)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "missing META-INF/container.xml", res.Reason)
}

func TestEPUB_MissingRootfileContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.epub")
	writeZip(t, path, map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": validContainer,
	})

	res, err := EPUB(path)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, `missing content.opf: expected "OEBPS/content.opf"`, res.Reason)
}

func TestCBZ_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manga.cbz")
	writeZip(t, path, map[string]string{
		"002.jpg":        "x",
		"001.png":        "x",
		"ComicInfo.xml":  "<ComicInfo/>",
	})

	res, err := CBZ(path)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 2, res.ImageCount)
	assert.Equal(t, "001.png", res.FirstImagePath)
	assert.True(t, res.HasComicInfo)
}

func TestCBZ_NoImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manga.cbz")
	writeZip(t, path, map[string]string{"readme.txt": "x"})

	res, err := CBZ(path)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "No image files found", res.Reason)
}

func TestCBR_FileNotFound(t *testing.T) {
	res, err := CBR(filepath.Join(t.TempDir(), "missing.cbr"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "file does not exist", res.Reason)
}
