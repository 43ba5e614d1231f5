package settlecache

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "settlecache")
	c, err := Open(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutPending_GetPending_RoundTrips(t *testing.T) {
	c := openTestCache(t)
	now := time.Now().Truncate(time.Second)

	err := c.PutPending("/library/book.epub", 1024, now)
	require.NoError(t, err)

	p, ok, err := c.GetPending("/library/book.epub")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1024), p.Size)
	assert.True(t, now.Equal(p.ModTime))
}

func TestGetPending_MissingReturnsNotFound(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.GetPending("/library/missing.epub")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeletePending_RemovesEntry(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.PutPending("/library/book.epub", 1, time.Now()))
	require.NoError(t, c.DeletePending("/library/book.epub"))

	_, ok, err := c.GetPending("/library/book.epub")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPendingPaths_ListsAllInFlight(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.PutPending("/library/a.epub", 1, time.Now()))
	require.NoError(t, c.PutPending("/library/b.cbz", 2, time.Now()))

	paths, err := c.PendingPaths()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/library/a.epub", "/library/b.cbz"}, paths)
}

func TestMarkSeen_Seen(t *testing.T) {
	c := openTestCache(t)
	seen, err := c.Seen("/library/a.epub")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, c.MarkSeen("/library/a.epub"))

	seen, err = c.Seen("/library/a.epub")
	require.NoError(t, err)
	assert.True(t, seen)
}
