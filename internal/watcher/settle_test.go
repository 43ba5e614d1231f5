package watcher

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettleStore struct {
	mu      sync.Mutex
	pending map[string]bool
}

func newFakeSettleStore() *fakeSettleStore {
	return &fakeSettleStore{pending: make(map[string]bool)}
}

func (f *fakeSettleStore) PutPending(path string, size int64, modTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[path] = true
	return nil
}

func (f *fakeSettleStore) DeletePending(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, path)
	return nil
}

func (f *fakeSettleStore) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[path]
}

func settleTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSettleTracker_PersistsBaselineOnSchedule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.epub")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	store := newFakeSettleStore()
	emitted := make(chan Event, 1)
	tracker := newSettleTracker(20*time.Millisecond, func(ev Event) { emitted <- ev }, store, settleTestLogger())

	tracker.Schedule(path)
	assert.True(t, store.has(path))

	select {
	case <-emitted:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for settle event")
	}

	assert.False(t, store.has(path))
}

func TestSettleTracker_ClearsPersistedBaselineOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.epub")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	store := newFakeSettleStore()
	tracker := newSettleTracker(time.Minute, func(Event) {}, store, settleTestLogger())

	tracker.Schedule(path)
	assert.True(t, store.has(path))

	tracker.Cancel(path)
	assert.False(t, store.has(path))
}

func TestSettleTracker_NilStoreIsOptional(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.epub")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	tracker := newSettleTracker(10*time.Millisecond, func(Event) {}, nil, settleTestLogger())
	assert.NotPanics(t, func() {
		tracker.Schedule(path)
		tracker.Cancel(path)
	})
}
