//go:build linux

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

func TestLinuxBackend_FileCreation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	opts := Options{
		IgnoreHidden: true,
		SettleDelay:  50 * time.Millisecond,
	}
	opts.setDefaults()

	backend, err := newLinuxBackend(logger, opts)
	require.NoError(t, err)
	defer backend.Stop()

	tmpDir := t.TempDir()
	err = backend.Watch(tmpDir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go backend.Start(ctx)

	// Give the backend a moment to start.
	time.Sleep(50 * time.Millisecond)

	testFile := filepath.Join(tmpDir, "test.epub")
	err = os.WriteFile(testFile, []byte("test epub content"), 0644)
	require.NoError(t, err)

	select {
	case event := <-backend.Events():
		assert.Equal(t, EventDetected, event.Type)
		assert.Equal(t, testFile, event.Path)
		assert.Equal(t, int64(17), event.Size)
		t.Logf("Event received: %+v", event)
	case err := <-backend.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestLinuxBackend_FileDeletion(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	opts := Options{}
	opts.setDefaults()

	backend, err := newLinuxBackend(logger, opts)
	require.NoError(t, err)
	defer backend.Stop()

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.epub")

	// Create file first.
	err = os.WriteFile(testFile, []byte("content"), 0644)
	require.NoError(t, err)

	err = backend.Watch(tmpDir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go backend.Start(ctx)

	time.Sleep(50 * time.Millisecond)

	err = os.Remove(testFile)
	require.NoError(t, err)

	select {
	case event := <-backend.Events():
		assert.Equal(t, EventRemoved, event.Type)
		assert.Equal(t, testFile, event.Path)
		t.Logf("Deletion event received: %+v", event)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for deletion event")
	}
}

func TestLinuxBackend_NewDirectoryWatching(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	opts := Options{SettleDelay: 50 * time.Millisecond}
	opts.setDefaults()

	backend, err := newLinuxBackend(logger, opts)
	require.NoError(t, err)
	defer backend.Stop()

	tmpDir := t.TempDir()
	err = backend.Watch(tmpDir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go backend.Start(ctx)

	time.Sleep(50 * time.Millisecond)

	subDir := filepath.Join(tmpDir, "newdir")
	err = os.Mkdir(subDir, 0755)
	require.NoError(t, err)

	// Give time for the directory to be watched.
	time.Sleep(100 * time.Millisecond)

	testFile := filepath.Join(subDir, "file.cbz")
	err = os.WriteFile(testFile, []byte("content in new dir"), 0644)
	require.NoError(t, err)

	select {
	case event := <-backend.Events():
		assert.Equal(t, testFile, event.Path)
		t.Logf("Event in new directory: %+v", event)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for event in new directory")
	}
}

func TestLinuxBackend_IgnoreHidden(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	opts := Options{
		IgnoreHidden: true,
		SettleDelay:  50 * time.Millisecond,
	}
	opts.setDefaults()

	backend, err := newLinuxBackend(logger, opts)
	require.NoError(t, err)
	defer backend.Stop()

	tmpDir := t.TempDir()
	err = backend.Watch(tmpDir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go backend.Start(ctx)

	time.Sleep(50 * time.Millisecond)

	hiddenFile := filepath.Join(tmpDir, ".hidden.epub")
	err = os.WriteFile(hiddenFile, []byte("secret"), 0644)
	require.NoError(t, err)

	normalFile := filepath.Join(tmpDir, "normal.epub")
	err = os.WriteFile(normalFile, []byte("content"), 0644)
	require.NoError(t, err)

	select {
	case event := <-backend.Events():
		assert.Equal(t, normalFile, event.Path)
		t.Logf("Event received: %+v", event)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	select {
	case event := <-backend.Events():
		t.Fatalf("unexpected event for hidden file: %+v", event)
	case <-time.After(200 * time.Millisecond):
		t.Log("correctly ignored hidden file")
	}
}
