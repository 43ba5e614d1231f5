package validate

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nwaples/rardecode/v2"
)

// CBR validates a .cbr file: same image-entry contract as CBZ but over a
// RAR archive, with a pre-check for disk existence so a missing file is
// distinguished from a corrupt one.
func CBR(path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fail("file does not exist")
		}
		return fail("not a valid rar archive")
	}

	rc, err := rardecode.OpenReader(path)
	if err != nil {
		return fail("not a valid rar archive")
	}
	defer rc.Close()

	var images []string
	hasComicInfo := false
	entryCount := 0

	for {
		hdr, err := rc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail("not a valid rar archive")
		}
		if hdr.IsDir {
			continue
		}
		entryCount++

		name := strings.ToLower(filepath.ToSlash(hdr.Name))
		if strings.HasSuffix(name, "/comicinfo.xml") || name == "comicinfo.xml" {
			hasComicInfo = true
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(hdr.Name))] {
			images = append(images, hdr.Name)
		}
	}

	if entryCount == 0 {
		return fail("empty archive")
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
