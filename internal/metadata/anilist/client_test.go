package anilist

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

	cfg := config.SourceConfig{BaseURL: server.URL, RateLimit: 90, MaxRetries: 1}
	c := New(cfg, testLogger())
	t.Cleanup(c.Close)
	return c
}

func TestSearchByMangaName_ParsesMedia(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"Page":{"media":[{"id":1,"title":{"romaji":"Shingeki no Kyojin","english":"Attack on Titan"}}]}}}`))
	})

	media, err := c.SearchByMangaName(context.Background(), "Attack on Titan")
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "Attack on Titan", media[0].Title.English)
}

func TestSearchByMangaName_GraphQLErrorIsStopped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":null,"errors":[{"message":"not found","status":404}]}`))
	})

	_, err := c.SearchByMangaName(context.Background(), "Nonexistent")
	require.Error(t, err)
}

func TestVariants_IncludesSynonyms(t *testing.T) {
	m := Media{Title: Title{Romaji: "Shingeki no Kyojin", English: "Attack on Titan"}, Synonyms: []string{"AoT"}}
	variants := m.Variants()
	assert.Contains(t, variants, "AoT")
	assert.Contains(t, variants, "Attack on Titan")
}

func TestMatchScore_BestVariantWins(t *testing.T) {
	m := Media{Title: Title{Romaji: "Shingeki no Kyojin", English: "Attack on Titan"}}
	score := MatchScore(m, "Attack on Titan")
	assert.InDelta(t, 80.0, score, 0.01)
}

func TestMatchScore_FormatAndAverageScoreBonuses(t *testing.T) {
	m := Media{Title: Title{English: "Attack on Titan"}, Format: "MANGA", AverageScore: 85}
	score := MatchScore(m, "Attack on Titan")
	assert.InDelta(t, 80.0+10+8.5, score, 0.01)
}

func TestMatchScore_AverageScoreBonusCapsAtTen(t *testing.T) {
	m := Media{Title: Title{English: "Attack on Titan"}, AverageScore: 100}
	score := MatchScore(m, "Attack on Titan")
	assert.InDelta(t, 90.0, score, 0.01)
}
