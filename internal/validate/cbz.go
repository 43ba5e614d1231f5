package validate

import (
	"archive/zip"
	"path/filepath"
	"sort"
	"strings"
)

// CBZ validates a .cbz file: it must open as a ZIP and contain at least
// one non-directory image entry.
func CBZ(path string) (*Result, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fail("not a valid zip archive")
	}
	defer zr.Close()

	var images []string
	hasComicInfo := false
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.ToLower(filepath.ToSlash(f.Name))
		if strings.HasSuffix(name, "/comicinfo.xml") || name == "comicinfo.xml" {
			hasComicInfo = true
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(f.Name))] {
			images = append(images, f.Name)
		}
	}

	if len(images) == 0 {
		return fail("No image files found")
	}
	sort.Strings(images)

	return &Result{
		Valid:          true,
		ImageCount:     len(images),
		FirstImagePath: images[0],
		HasComicInfo:   hasComicInfo,
	}, nil
}
