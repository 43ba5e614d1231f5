package watcher

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// settleTracker implements the bounded-settling rule shared by both
// platform backends: a file must sit at a fixed size and mtime for
// SettleDelay before a detection event fires. Grounded on the fallback
// backend's pendingEvent/time.AfterFunc shape, generalized so the Linux
// backend can reuse it after IN_CLOSE_WRITE instead of trusting the
// close-write signal alone (a network-mounted or chunked transfer can
// still grow after its first close).
type settleTracker struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	delay   time.Duration
	emit    func(Event)
	store   SettleStore
	logger  *slog.Logger
}

// SettleStore persists the settle tracker's in-flight baselines: they are
// written on Schedule and cleared when a countdown ends or is cancelled.
// The tracker never reads them back, so after a restart a file's
// countdown starts only on its next filesystem event.
// Implemented by internal/settlecache.
type SettleStore interface {
	PutPending(path string, size int64, modTime time.Time) error
	DeletePending(path string) error
}

func newSettleTracker(delay time.Duration, emit func(Event), store SettleStore, logger *slog.Logger) *settleTracker {
	return &settleTracker{
		pending: make(map[string]*time.Timer),
		delay:   delay,
		emit:    emit,
		store:   store,
		logger:  logger,
	}
}

// Schedule (re)starts the settle countdown for path, capturing its
// current size/mtime as the baseline.
func (s *settleTracker) Schedule(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, exists := s.pending[path]; exists {
		t.Stop()
	}

	baseline := info
	if s.store != nil {
		if err := s.store.PutPending(path, baseline.Size(), baseline.ModTime()); err != nil {
			s.logger.Warn("settle: failed to persist baseline", "path", path, "error", err)
		}
	}
	s.pending[path] = time.AfterFunc(s.delay, func() {
		s.check(path, baseline.Size(), baseline.ModTime())
	})
}

// check fires once the settle timer elapses: if the file is unchanged it
// emits EventDetected; if it grew/changed, the countdown restarts.
func (s *settleTracker) check(path string, lastSize int64, lastModTime time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		s.mu.Lock()
		delete(s.pending, path)
		s.mu.Unlock()
		s.clearPersisted(path)
		return
	}

	if info.Size() != lastSize || !info.ModTime().Equal(lastModTime) {
		s.mu.Lock()
		s.pending[path] = time.AfterFunc(s.delay, func() {
			s.check(path, info.Size(), info.ModTime())
		})
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	delete(s.pending, path)
	s.mu.Unlock()
	s.clearPersisted(path)

	if !isSupportedFile(path) {
		return
	}

	s.emit(Event{
		Type:      EventDetected,
		Path:      path,
		Filename:  filenameOf(path),
		Extension: extensionOf(path),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Timestamp: time.Now(),
	})
}

// Cancel stops any in-flight settle countdown for path (e.g. on delete).
func (s *settleTracker) Cancel(path string) {
	s.mu.Lock()
	if t, exists := s.pending[path]; exists {
		t.Stop()
		delete(s.pending, path)
	}
	s.mu.Unlock()
	s.clearPersisted(path)
}

func (s *settleTracker) clearPersisted(path string) {
	if s.store == nil {
		return
	}
	if err := s.store.DeletePending(path); err != nil {
		s.logger.Warn("settle: failed to clear persisted baseline", "path", path, "error", err)
	}
}

// StopAll cancels every in-flight countdown, used on backend shutdown.
func (s *settleTracker) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.pending {
		t.Stop()
	}
	clear(s.pending)
}
