package myanimelist

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

	cfg := config.SourceConfig{BaseURL: server.URL, APIKey: "test-client-id", RateLimit: 60, MaxRetries: 1}
	c := New(cfg, testLogger())
	t.Cleanup(c.Close)
	return c
}

func TestSearchByMangaName_SendsClientIDHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-client-id", r.Header.Get("X-MAL-CLIENT-ID"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"node":{"id":1,"title":"Berserk"}}]}`))
	})

	mangas, err := c.SearchByMangaName(context.Background(), "Berserk")
	require.NoError(t, err)
	require.Len(t, mangas, 1)
	assert.Equal(t, "Berserk", mangas[0].Title)
}

func TestSearchByMangaName_UnauthorizedDoesNotRetry(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.SearchByMangaName(context.Background(), "Berserk")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestMapToBookMetadata_JoinsAuthorNames(t *testing.T) {
	m := Manga{Title: "Berserk"}
	m.Authors = append(m.Authors, struct {
		Node struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"node"`
		Role string `json:"role"`
	}{})
	m.Authors[0].Node.FirstName = "Kentaro"
	m.Authors[0].Node.LastName = "Miura"

	pm := MapToBookMetadata(m)
	assert.Equal(t, "Kentaro Miura", pm.Author)
}

func TestMatchScore_MediaTypeAndFieldBonuses(t *testing.T) {
	m := Manga{Title: "Berserk", MediaType: "manga", Synopsis: "A swordsman..."}
	m.MainPicture.Large = "https://example.com/berserk.jpg"

	score := MatchScore(m, "Berserk")
	assert.InDelta(t, 80.0+10+5+5, score, 0.01)
}

func TestMatchScore_NoBonusesWhenFieldsEmpty(t *testing.T) {
	m := Manga{Title: "Berserk"}
	score := MatchScore(m, "Berserk")
	assert.InDelta(t, 80.0, score, 0.01)
}
