package covers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// a minimal valid 1x1 PNG.
var onePixelPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func TestDownload_SavesAndSniffsExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(onePixelPNG)
	}))
	defer srv.Close()

	dir := t.TempDir()
	storage, err := NewStorage(dir)
	require.NoError(t, err)

	dl := NewDownloader(storage, testLogger())
	result := dl.Download(context.Background(), 42, srv.URL)

	require.NoError(t, result.Error)
	assert.Equal(t, "covers/42.png", result.RelPath)
	assert.Equal(t, 1, result.Width)
	assert.Equal(t, 1, result.Height)
}

func TestDownload_EmptyURL(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewStorage(dir)
	require.NoError(t, err)

	dl := NewDownloader(storage, testLogger())
	result := dl.Download(context.Background(), 1, "")
	require.Error(t, result.Error)
}

func TestDownload_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	storage, err := NewStorage(dir)
	require.NoError(t, err)

	dl := NewDownloader(storage, testLogger())
	result := dl.Download(context.Background(), 1, srv.URL)
	require.Error(t, result.Error)
}

func TestSizeOf_ReflectsWrittenFile(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewStorage(dir)
	require.NoError(t, err)

	_, err = storage.Save(7, onePixelPNG, ".png")
	require.NoError(t, err)

	size, ok := SizeOf(dir, "covers/7.png")
	require.True(t, ok)
	assert.Equal(t, int64(len(onePixelPNG)), size)
	assert.Less(t, size, int64(LowQualityThreshold))
}

func TestSizeOf_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, ok := SizeOf(dir, "covers/missing.png")
	assert.False(t, ok)
}
