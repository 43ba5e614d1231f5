package googlebooks

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/ingestd/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.SourceConfig{BaseURL: server.URL, RateLimit: 100, MaxRetries: 1}
	c := New(cfg, testLogger())
	t.Cleanup(c.Close)
	return c
}

func TestSearchByTitle_ParsesVolumes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"abc","volumeInfo":{"title":"Dune","authors":["Frank Herbert"]}}]}`))
	})

	volumes, err := c.SearchByTitle(context.Background(), "Dune", "")
	require.NoError(t, err)
	require.Len(t, volumes, 1)
	assert.Equal(t, "Dune", volumes[0].VolumeInfo.Title)
}

func TestSearchByTitle_ForbiddenDoesNotRetry(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.SearchByTitle(context.Background(), "Dune", "")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetCoverURL_PrefersExtraLargeAndNormalizes(t *testing.T) {
	v := Volume{VolumeInfo: VolumeInfo{ImageLinks: map[string]string{
		"thumbnail":  "http://books.google.com/thumb.jpg&edge=curl",
		"extraLarge": "http://books.google.com/xl.jpg?zoom=5&edge=curl",
	}}}

	got := GetCoverURL(v)
	assert.Equal(t, "https://books.google.com/xl.jpg?zoom=1", got)
}

func TestGetCoverURL_NoImages(t *testing.T) {
	assert.Equal(t, "", GetCoverURL(Volume{}))
}

func TestMapToBookMetadata_PrefersISBN13(t *testing.T) {
	v := Volume{VolumeInfo: VolumeInfo{
		Title: "Dune",
		IndustryIdentifiers: []IndustryID{
			{Type: "ISBN_10", Identifier: "0441013597"},
			{Type: "ISBN_13", Identifier: "9780441013593"},
		},
	}}

	pm := MapToBookMetadata(v)
	assert.Equal(t, "9780441013593", pm.ISBN)
}
