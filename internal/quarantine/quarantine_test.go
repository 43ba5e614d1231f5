package quarantine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/events"
	"github.com/shelfwatch/ingestd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	patch store.Patch
}

func (s *fakeStore) Create(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	return book, nil
}
func (s *fakeStore) GetByID(ctx context.Context, id int64) (*domain.Book, error) { return nil, nil }
func (s *fakeStore) GetByFilePath(ctx context.Context, path string) (*domain.Book, error) {
	return nil, errors.New("not found")
}
func (s *fakeStore) Update(ctx context.Context, id int64, patch store.Patch) error {
	s.patch = patch
	return nil
}
func (s *fakeStore) Delete(ctx context.Context, id int64) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSynthesizeReason_Empty(t *testing.T) {
	assert.Equal(t, "No enrichment sources available", SynthesizeReason(nil))
}

func TestSynthesizeReason_AllTimeout(t *testing.T) {
	attempts := []Attempt{
		{Source: "openlibrary", DisplayName: "OpenLibrary", Error: "API timeout"},
		{Source: "googlebooks", DisplayName: "Google Books", Error: "API timeout"},
	}
	assert.Equal(t, "API timeout on all sources (OpenLibrary, Google Books)", SynthesizeReason(attempts))
}

func TestSynthesizeReason_MixedErrors(t *testing.T) {
	attempts := []Attempt{
		{Source: "openlibrary", DisplayName: "OpenLibrary", Error: "No match found"},
		{Source: "googlebooks", DisplayName: "Google Books", Error: "No match found"},
	}
	assert.Equal(t, "openlibrary: No match found. googlebooks: No match found", SynthesizeReason(attempts))
}

func TestSynthesizeReason_MissingErrorDefaultsToUnknown(t *testing.T) {
	attempts := []Attempt{{Source: "anilist", DisplayName: "AniList"}}
	assert.Equal(t, "anilist: Unknown error", SynthesizeReason(attempts))
}

func TestSynthesizeReason_IgnoresSuccessfulAttempts(t *testing.T) {
	attempts := []Attempt{
		{Source: "anilist", DisplayName: "AniList", Success: true},
		{Source: "myanimelist", DisplayName: "MyAnimeList", Error: "No match found"},
	}
	assert.Equal(t, "myanimelist: No match found", SynthesizeReason(attempts))
}

func TestQuarantine_SetsStatusAndFailureReason(t *testing.T) {
	fs := &fakeStore{}
	mgr := events.NewManager(testLogger())
	svc := New(fs, mgr, testLogger())

	err := svc.Quarantine(context.Background(), 1, domain.ContentTypeBook, []Attempt{
		{Source: "openlibrary", DisplayName: "OpenLibrary", Error: "No match found"},
	})
	require.NoError(t, err)
	require.NotNil(t, fs.patch.Status)
	assert.Equal(t, domain.StatusQuarantine, *fs.patch.Status)
	require.NotNil(t, fs.patch.FailureReason)
	assert.Equal(t, "openlibrary: No match found", *fs.patch.FailureReason)
}
