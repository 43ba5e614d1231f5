package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	w, err := New(logger, Options{})
	require.NoError(t, err)
	require.NotNil(t, w)

	err = w.Stop()
	assert.NoError(t, err)
}

func TestWatcher_Watch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	w, err := New(logger, Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // test cleanup

	tmpDir := t.TempDir()
	err = w.Watch(tmpDir)
	assert.NoError(t, err)
}

func TestWatcher_FileCreation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	opts := Options{
		SettleDelay: 50 * time.Millisecond,
	}

	w, err := New(logger, opts)
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // test cleanup

	tmpDir := t.TempDir()
	err = w.Watch(tmpDir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx) //nolint:errcheck // test goroutine

	testFile := filepath.Join(tmpDir, "book.epub")
	err = os.WriteFile(testFile, []byte("epub container bytes"), 0o644)
	require.NoError(t, err)

	select {
	case event := <-w.Events():
		assert.Equal(t, EventDetected, event.Type)
		assert.Equal(t, testFile, event.Path)
		assert.Equal(t, "book.epub", event.Filename)
		assert.Equal(t, ".epub", event.Extension)
		assert.Equal(t, int64(20), event.Size)
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestWatcher_FileCreation_UnsupportedExtensionIgnored(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	opts := Options{
		SettleDelay: 50 * time.Millisecond,
	}

	w, err := New(logger, opts)
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // test cleanup

	tmpDir := t.TempDir()
	err = w.Watch(tmpDir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx) //nolint:errcheck // test goroutine

	testFile := filepath.Join(tmpDir, "notes.txt")
	err = os.WriteFile(testFile, []byte("not a book"), 0o644)
	require.NoError(t, err)

	select {
	case event := <-w.Events():
		t.Fatalf("unexpected event for unsupported file: %+v", event)
	case <-time.After(200 * time.Millisecond):
		// Good, no detection event for an unsupported extension.
	}
}

func TestWatcher_FileDeletion(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	w, err := New(logger, Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // test cleanup

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "book.epub")

	err = os.WriteFile(testFile, []byte("content"), 0o644)
	require.NoError(t, err)

	err = w.Watch(tmpDir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx) //nolint:errcheck // test goroutine

	err = os.Remove(testFile)
	require.NoError(t, err)

	select {
	case event := <-w.Events():
		assert.Equal(t, EventRemoved, event.Type)
		assert.Equal(t, testFile, event.Path)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for deletion event")
	}
}

func TestWatcher_IgnoreHidden(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	opts := Options{
		IgnoreHidden: true,
		SettleDelay:  50 * time.Millisecond,
	}

	w, err := New(logger, opts)
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // test cleanup

	tmpDir := t.TempDir()
	err = w.Watch(tmpDir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx) //nolint:errcheck // test goroutine

	hiddenFile := filepath.Join(tmpDir, ".hidden.epub")
	err = os.WriteFile(hiddenFile, []byte("secret"), 0o644)
	require.NoError(t, err)

	normalFile := filepath.Join(tmpDir, "normal.epub")
	err = os.WriteFile(normalFile, []byte("content"), 0o644)
	require.NoError(t, err)

	select {
	case event := <-w.Events():
		assert.Equal(t, normalFile, event.Path)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	select {
	case event := <-w.Events():
		t.Fatalf("unexpected event for hidden file: %+v", event)
	case <-time.After(200 * time.Millisecond):
		// Good, no event for hidden file.
	}
}
