package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// File dispatches to the extractor matching path's extension.
func File(path string) (Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		return EPUB(path)
	case ".cbz", ".cbr":
		return Comic(path)
	default:
		return Result{}, fmt.Errorf("extract: unsupported extension %q", filepath.Ext(path))
	}
}
