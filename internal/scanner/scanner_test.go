package scanner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/ingestd/internal/events"
	"github.com/shelfwatch/ingestd/internal/processor"
	"github.com/shelfwatch/ingestd/internal/watcher"
)

type fakeProcessor struct {
	seen    []string
	results map[string]processor.Result
	err     error
}

func (f *fakeProcessor) Process(ctx context.Context, ev watcher.Event) (processor.Result, error) {
	f.seen = append(f.seen, ev.Path)
	if f.err != nil {
		return processor.Result{}, f.err
	}
	if res, ok := f.results[ev.Path]; ok {
		return res, nil
	}
	return processor.Result{Action: processor.ActionCreated, BookID: 1}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScan_WalksAndDelegatesToProcessor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.epub"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cbz"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("x"), 0o644))

	proc := &fakeProcessor{results: map[string]processor.Result{}}
	mgr := events.NewManager(testLogger())
	s := New(dir, proc, mgr, testLogger())

	result, err := s.Scan(context.Background(), ScanOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesFound)
	assert.Equal(t, 2, result.FilesProcessed)
	assert.Equal(t, 0, result.FilesSkipped)
	assert.Empty(t, result.Errors)
	assert.Len(t, proc.seen, 2)
}

func TestScan_CountsSkippedAndFailed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "known.epub"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cbz"), []byte("x"), 0o644))

	proc := &fakeProcessor{results: map[string]processor.Result{
		filepath.Join(dir, "known.epub"): {Action: processor.ActionSkipped},
		filepath.Join(dir, "bad.cbz"):    {Action: processor.ActionFailed, Reason: "not a valid archive"},
	}}
	mgr := events.NewManager(testLogger())
	s := New(dir, proc, mgr, testLogger())

	result, err := s.Scan(context.Background(), ScanOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesSkipped)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, "not a valid archive", result.Errors[0].Error.Error())
}

func TestScan_RejectsOverlappingScans(t *testing.T) {
	dir := t.TempDir()
	proc := &fakeProcessor{results: map[string]processor.Result{}}
	mgr := events.NewManager(testLogger())
	s := New(dir, proc, mgr, testLogger())

	s.scanning.Store(true)
	_, err := s.Scan(context.Background(), ScanOptions{})
	require.Error(t, err)
}
