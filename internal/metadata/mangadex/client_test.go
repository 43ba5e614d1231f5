package mangadex

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

	cfg := config.SourceConfig{BaseURL: server.URL, RateLimit: 5, MaxRetries: 1}
	c := New(cfg, testLogger())
	t.Cleanup(c.Close)
	return c
}

func TestSearchByMangaName_ParsesRelationships(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"manga-1","attributes":{"title":{"en":"One Piece"},"year":1997},"relationships":[{"type":"cover_art","attributes":{"fileName":"cover.jpg"}},{"type":"author","attributes":{"name":"Eiichiro Oda"}}]}]}`))
	})

	mangas, err := c.SearchByMangaName(context.Background(), "One Piece")
	require.NoError(t, err)
	require.Len(t, mangas, 1)
	assert.Equal(t, "cover.jpg", mangas[0].coverFileName())
	assert.Equal(t, "Eiichiro Oda", mangas[0].author())
}

func TestSearchByMangaName_ForbiddenStopsImmediately(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.SearchByMangaName(context.Background(), "One Piece")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetCoverURL(t *testing.T) {
	m := Manga{ID: "manga-1"}
	m.Relationships = []Relationship{{Type: "cover_art", Attributes: struct {
		FileName string `json:"fileName"`
		Name     string `json:"name"`
	}{FileName: "cover.jpg"}}}

	assert.Equal(t, "https://uploads.mangadex.org/covers/manga-1/cover.jpg", GetCoverURL(m))
}

func TestLocalized_PrefersEnglish(t *testing.T) {
	assert.Equal(t, "One Piece", localized(map[string]string{"ja": "ワンピース", "en": "One Piece"}))
}

func TestLocalized_FallsBackToFirstKey(t *testing.T) {
	got := localized(map[string]string{"fr": "Le titre"})
	assert.Equal(t, "Le titre", got)
}

func TestMatchScore_FieldBonuses(t *testing.T) {
	m := Manga{ID: "manga-1"}
	m.Attributes.Title = map[string]string{"en": "One Piece"}
	m.Attributes.Description = map[string]string{"en": "A pirate's tale"}
	m.Attributes.Tags = []Tag{{}}
	m.Relationships = []Relationship{
		{Type: "cover_art", Attributes: struct {
			FileName string `json:"fileName"`
			Name     string `json:"name"`
		}{FileName: "cover.jpg"}},
		{Type: "author", Attributes: struct {
			FileName string `json:"fileName"`
			Name     string `json:"name"`
		}{Name: "Eiichiro Oda"}},
	}

	score := MatchScore(m, "One Piece")
	assert.InDelta(t, 80.0+5+5+5+5, score, 0.01)
}

func TestMatchScore_NoBonusesWhenFieldsEmpty(t *testing.T) {
	m := Manga{ID: "manga-1"}
	m.Attributes.Title = map[string]string{"en": "One Piece"}

	score := MatchScore(m, "One Piece")
	assert.InDelta(t, 80.0, score, 0.01)
}
