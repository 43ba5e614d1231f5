// Package covers persists book cover images to disk and fetches them
// from external-source URLs.
package covers

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage writes and stats cover files under <DATA_DIR>/covers/<bookId>.<ext>.
type Storage struct {
	basePath string
}

// NewStorage creates a Storage rooted at dataDir/covers, creating the
// directory if it doesn't exist.
func NewStorage(dataDir string) (*Storage, error) {
	dir := filepath.Join(dataDir, "covers")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("covers: create storage dir: %w", err)
	}
	return &Storage{basePath: dir}, nil
}

// Save writes data under <bookId><ext> and returns the path relative
// to DATA_DIR (e.g. "covers/42.jpg"), the form persisted in a book's
// cover_path column.
func (s *Storage) Save(bookID int64, data []byte, ext string) (string, error) {
	name := fmt.Sprintf("%d%s", bookID, ext)
	full := filepath.Join(s.basePath, name)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("covers: write %q: %w", full, err)
	}
	return filepath.Join("covers", name), nil
}

// SizeOf returns the on-disk size of a book's current cover. relPath
// is the value stored in cover_path (e.g. "covers/42.jpg"); dataDir is
// the same root Storage was constructed with.
func SizeOf(dataDir, relPath string) (int64, bool) {
	if relPath == "" {
		return 0, false
	}
	info, err := os.Stat(filepath.Join(dataDir, relPath))
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

// LowQualityThreshold is the on-disk byte size below which an existing
// OpenLibrary-sourced cover is considered low quality and replaceable
// (spec §4.6 step 7).
const LowQualityThreshold = 50_000
