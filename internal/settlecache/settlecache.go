// Package settlecache is a persistent, badger-backed record of files that
// are mid-settle (detected but not yet confirmed stable) and of paths
// marked as already turned into book rows. The watcher writes and clears
// the mid-settle entries; nothing in the daemon reads them back on startup
// or calls MarkSeen, so a restart does not resume settle countdowns.
package settlecache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	pendingPrefix = "pending:"
	seenPrefix    = "seen:"

	// defaultTTL bounds how long a pending entry survives without being
	// refreshed or resolved; past this badger expires the entry (e.g. the
	// file was deleted while the process was down).
	defaultTTL = 24 * time.Hour

	// sweepInterval mirrors the teacher's KeyedRateLimiter cleanup cadence.
	sweepInterval = time.Minute
)

// Pending is the on-disk snapshot of a file mid-settle countdown.
type Pending struct {
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modTime"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Cache is the badger-backed dedupe/settle store. Its entries survive
// process restarts (until their TTL expires); reading them back is up to
// the caller, through GetPending, PendingPaths and Seen.
type Cache struct {
	db     *badger.DB
	logger *slog.Logger
	ttl    time.Duration
	done   chan struct{}
}

// Open opens (or creates) the settle cache at dir.
func Open(dir string, logger *slog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	c := &Cache{db: db, logger: logger, ttl: defaultTTL, done: make(chan struct{})}
	go c.sweep()
	return c, nil
}

// PutPending records (or refreshes) path's settle baseline. Its signature
// matches internal/watcher.SettleStore, so a *Cache can be passed directly
// as watcher.Options.SettleStore.
func (c *Cache) PutPending(path string, size int64, modTime time.Time) error {
	p := Pending{Size: size, ModTime: modTime, UpdatedAt: time.Now()}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(pendingPrefix+path), data).WithTTL(c.ttl))
	})
}

// GetPending returns path's persisted settle baseline, if any.
func (c *Cache) GetPending(path string) (Pending, bool, error) {
	var p Pending
	found := false
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(pendingPrefix + path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	return p, found, err
}

// DeletePending removes path's settle baseline, e.g. once the file has
// settled and a detection event was emitted, or it was deleted outright.
func (c *Cache) DeletePending(path string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(pendingPrefix + path))
	})
}

// PendingPaths returns every path with a persisted settle baseline.
func (c *Cache) PendingPaths() ([]string, error) {
	var paths []string
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(pendingPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key()[len(pendingPrefix):])
			paths = append(paths, key)
		}
		return nil
	})
	return paths, err
}

// MarkSeen records that path has already been turned into a book row.
func (c *Cache) MarkSeen(path string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(seenPrefix+path), []byte{1}).WithTTL(c.ttl))
	})
}

// Seen reports whether path has already been processed.
func (c *Cache) Seen(path string) (bool, error) {
	seen := false
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(seenPrefix + path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		seen = true
		return nil
	})
	return seen, err
}

// Close stops the sweep goroutine and closes the underlying database.
func (c *Cache) Close() error {
	close(c.done)
	return c.db.Close()
}

// sweep periodically runs badger's value-log garbage collection, the
// same fixed-cadence shape as KeyedRateLimiter's stale-entry cleanup. TTLs
// on individual entries handle logical expiry; this reclaims disk space.
func (c *Cache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			err := c.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				c.logger.Warn("settlecache: value log gc failed", "error", err)
			}
		}
	}
}
