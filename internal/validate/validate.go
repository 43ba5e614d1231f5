// Package validate performs structural validation of EPUB, CBZ, and CBR
// archives before any metadata extraction is attempted. Validators never
// write to disk; a failure reason is an exact, stable string copied
// verbatim into a book's failure_reason column.
package validate

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Result is the outcome of validating a single archive file.
type Result struct {
	Valid          bool
	Reason         string
	ImageCount     int
	FirstImagePath string
	HasComicInfo   bool
}

func fail(reason string) (*Result, error) {
	return &Result{Reason: reason}, nil
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// File dispatches to the validator matching path's extension.
func File(path string) (*Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		return EPUB(path)
	case ".cbz":
		return CBZ(path)
	case ".cbr":
		return CBR(path)
	default:
		return fail(fmt.Sprintf("unsupported extension: %q", filepath.Ext(path)))
	}
}
