//go:build !linux

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fallbackBackend implements WatcherBackend using fsnotify with debouncing.
// Used on every platform other than Linux, where no IN_CLOSE_WRITE
// equivalent exists.
type fallbackBackend struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher
	settle  *settleTracker

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// newFallbackBackend creates a fallback backend using fsnotify.
func newFallbackBackend(logger *slog.Logger, opts Options) (*fallbackBackend, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	b := &fallbackBackend{
		logger:  logger,
		opts:    opts,
		watcher: fsw,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}
	b.settle = newSettleTracker(opts.SettleDelay, b.emitEvent, opts.SettleStore, logger)
	return b, nil
}

// Watch adds a path to be monitored.
func (b *fallbackBackend) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return b.watchDir(path)
	}
	return b.watchFile(path)
}

// watchDir recursively watches a directory.
func (b *fallbackBackend) watchDir(path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			b.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}

		if b.opts.shouldIgnore(p) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			return nil
		}

		if err := b.watcher.Add(p); err != nil {
			b.logger.Error("failed to add watch", "path", p, "error", err)
			return nil
		}

		b.logger.Debug("added watch", "path", p)
		return nil
	})
}

// watchFile watches a single file by watching its parent directory.
func (b *fallbackBackend) watchFile(path string) error {
	dir := filepath.Dir(path)
	return b.watcher.Add(dir)
}

// Start begins watching for events.
func (b *fallbackBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.processEvents(ctx)

	<-ctx.Done()
	return nil
}

// processEvents processes fsnotify events.
func (b *fallbackBackend) processEvents(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handleFsnotifyEvent(event)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			select {
			case b.errors <- err:
			case <-b.done:
			}
		}
	}
}

// handleFsnotifyEvent handles an fsnotify event with debouncing.
func (b *fallbackBackend) handleFsnotifyEvent(event fsnotify.Event) {
	path := event.Name

	if b.opts.shouldIgnore(path) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			_ = b.watchDir(path)
			return
		}
	}

	if event.Op&fsnotify.Remove != 0 {
		b.settle.Cancel(path)
		b.emitEvent(Event{Type: EventRemoved, Path: path})
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		b.settle.Schedule(path)
	}
}

// emitEvent sends an event to the events channel.
func (b *fallbackBackend) emitEvent(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// Events returns the events channel.
func (b *fallbackBackend) Events() <-chan Event {
	return b.events
}

// Errors returns the errors channel.
func (b *fallbackBackend) Errors() <-chan error {
	return b.errors
}

// Stop stops the watcher.
func (b *fallbackBackend) Stop() error {
	close(b.done)

	b.settle.StopAll()
	b.watcher.Close()
	b.wg.Wait()

	close(b.events)
	close(b.errors)

	return nil
}

// newLinuxBackend is a stub that should never be called on non-Linux
// platforms; it exists only to satisfy the compiler when watcher.go
// references it.
func newLinuxBackend(_ *slog.Logger, _ Options) (WatcherBackend, error) {
	return nil, fmt.Errorf("linux backend not available on this platform")
}
