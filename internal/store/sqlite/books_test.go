package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/ingestd/internal/domain"
	apperrors "github.com/shelfwatch/ingestd/internal/errors"
	"github.com/shelfwatch/ingestd/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CreateAndGetByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := &domain.Book{
		FilePath:    "/watch/clean-code.epub",
		Filename:    "clean-code.epub",
		Extension:   ".epub",
		ContentType: domain.ContentTypeBook,
		FileType:    domain.FileTypeEpub,
	}

	created, err := s.Create(ctx, book)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, domain.StatusPending, created.Status)

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.FilePath, got.FilePath)
	assert.Equal(t, domain.ContentTypeBook, got.ContentType)
}

func TestStore_CreateDuplicateFilePath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := &domain.Book{
		FilePath:    "/watch/dup.cbz",
		Filename:    "dup.cbz",
		Extension:   ".cbz",
		ContentType: domain.ContentTypeManga,
		FileType:    domain.FileTypeCbz,
	}

	_, err := s.Create(ctx, book)
	require.NoError(t, err)

	_, err = s.Create(ctx, book)
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeAlreadyExists, appErr.Code)
}

func TestStore_GetByFilePath_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetByFilePath(context.Background(), "/does/not/exist.epub")
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestStore_Update_NonOverwritingPatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := &domain.Book{
		FilePath:    "/watch/manga.cbr",
		Filename:    "manga.cbr",
		Extension:   ".cbr",
		ContentType: domain.ContentTypeManga,
		FileType:    domain.FileTypeCbr,
	}
	created, err := s.Create(ctx, book)
	require.NoError(t, err)

	title := "One Piece"
	volume := 1
	status := domain.StatusEnriched
	err = s.Update(ctx, created.ID, store.Patch{
		Status: &status,
		Title:  &title,
		Volume: &volume,
		Genres: []string{"action", "adventure"},
	})
	require.NoError(t, err)

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnriched, got.Status)
	assert.Equal(t, "One Piece", got.Title)
	require.NotNil(t, got.Volume)
	assert.Equal(t, 1, *got.Volume)
	assert.Equal(t, []string{"action", "adventure"}, got.Genres)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := &domain.Book{
		FilePath:    "/watch/removeme.epub",
		Filename:    "removeme.epub",
		Extension:   ".epub",
		ContentType: domain.ContentTypeBook,
		FileType:    domain.FileTypeEpub,
	}
	created, err := s.Create(ctx, book)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, created.ID))

	_, err = s.GetByID(ctx, created.ID)
	require.Error(t, err)
}
