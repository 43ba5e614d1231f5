package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// supportedExtensions are the archive formats the pipeline ingests.
var supportedExtensions = map[string]bool{
	".epub": true,
	".cbz":  true,
	".cbr":  true,
}

// Options configures the file watcher behavior.
type Options struct {
	IgnorePatterns []string
	// SettleDelay is how long a file must sit unchanged (size + mtime)
	// before a detection event fires. The spec floors this at 2s.
	SettleDelay  time.Duration
	IgnoreHidden bool
	// SettleStore receives the baselines of in-flight settle countdowns so
	// they outlive the process; they are not read back on startup. Optional: a nil SettleStore keeps settling purely in
	// memory, as before.
	SettleStore SettleStore
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 2 * time.Second
	}

	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			"*.tmp",
			"*.part",
			"*.crdownload",
		}
		o.IgnoreHidden = true
	}
}

// shouldIgnore checks if a path matches ignore patterns or is a dotfile.
// Extensions are not checked here; isSupportedFile does that.
func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden {
		parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
		for _, part := range parts {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return true
		}
	}

	return false
}

// isSupportedFile reports whether path carries an extension the pipeline
// ingests, matched case-insensitively.
func isSupportedFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}
