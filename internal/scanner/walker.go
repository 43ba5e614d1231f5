package scanner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Walker traverses the filesystem and discovers candidate book files.
type Walker struct {
	logger *slog.Logger
}

// NewWalker creates a new walker.
func NewWalker(logger *slog.Logger) *Walker {
	return &Walker{logger: logger}
}

// WalkResult represents a file discovered during walking.
type WalkResult struct {
	Path    string
	RelPath string
	Size    int64
	ModTime int64 // unix milliseconds
	Error   error
}

// ignoredSuffixes mirrors the watcher's ignore rules for in-progress
// downloads, so a scan doesn't pick up a file the watcher would also skip.
var ignoredSuffixes = []string{".tmp", ".part", ".crdownload"}

var supportedExtensions = map[string]bool{
	".epub": true,
	".cbz":  true,
	".cbr":  true,
}

// Walk traverses rootPath and streams every file whose extension matches
// a supported book format. Hidden files/directories, partial-download
// suffixes, and unsupported extensions are filtered inline.
func (w *Walker) Walk(ctx context.Context, rootPath string) <-chan WalkResult {
	results := make(chan WalkResult, 100)

	go func() {
		defer close(results)

		err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil {
				w.logger.Warn("walk error, skipping", "path", path, "error", err)
				return nil
			}

			name := d.Name()
			if name != "." && strings.HasPrefix(name, ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if hasIgnoredSuffix(name) {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(name))
			if !supportedExtensions[ext] {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				w.logger.Warn("failed to stat file, skipping", "path", path, "error", err)
				return nil
			}

			relPath, err := filepath.Rel(rootPath, path)
			if err != nil {
				relPath = path
			}

			select {
			case results <- WalkResult{
				Path:    path,
				RelPath: relPath,
				Size:    info.Size(),
				ModTime: info.ModTime().UnixMilli(),
			}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("walk failed", "root", rootPath, "error", err)
		}
	}()

	return results
}

func hasIgnoredSuffix(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
