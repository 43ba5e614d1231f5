package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nwaples/rardecode/v2"
)

type comicInfo struct {
	Title   string `xml:"Title"`
	Writer  string `xml:"Writer"`
	Summary string `xml:"Summary"`
	Series  string `xml:"Series"`
	Volume  string `xml:"Volume"`
	Number  string `xml:"Number"`
	Genre   string `xml:"Genre"`
	Year    string `xml:"Year"`
	Month   string `xml:"Month"`
	Day     string `xml:"Day"`
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// entry is a single archive member, format-agnostic.
type entry struct {
	name string
	data []byte
}

// Comic extracts ComicInfo.xml metadata and the alphabetically-first
// image entry from an already-structurally-validated .cbz/.cbr file.
func Comic(path string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".cbz":
		return comicFromZip(path)
	case ".cbr":
		return comicFromRar(path)
	default:
		return Result{}, fmt.Errorf("extract comic: unsupported extension %q", ext)
	}
}

func comicFromZip(path string) (Result, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Result{}, fmt.Errorf("extract comic: open %q: %w", path, err)
	}
	defer zr.Close()

	var comicInfoEntry *entry
	var images []entry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if isComicInfoPath(f.Name) {
			data, err := readZipFile(f)
			if err == nil {
				comicInfoEntry = &entry{name: f.Name, data: data}
			}
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(f.Name))] {
			images = append(images, entry{name: f.Name})
		}
	}

	cover := firstImageCover(images, func(name string) ([]byte, error) {
		for _, f := range zr.File {
			if f.Name == name {
				return readZipFile(f)
			}
		}
		return nil, fmt.Errorf("entry %q vanished", name)
	})

	return buildComicResult(comicInfoEntry, cover), nil
}

func comicFromRar(path string) (Result, error) {
	rc, err := rardecode.OpenReader(path)
	if err != nil {
		return Result{}, fmt.Errorf("extract comic: open %q: %w", path, err)
	}
	defer rc.Close()

	var comicInfoEntry *entry
	var images []entry

	for {
		hdr, err := rc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("extract comic: read %q: %w", path, err)
		}
		if hdr.IsDir {
			continue
		}

		if isComicInfoPath(hdr.Name) {
			data, err := io.ReadAll(rc)
			if err == nil {
				comicInfoEntry = &entry{name: hdr.Name, data: data}
			}
			continue
		}

		if imageExtensions[strings.ToLower(filepath.Ext(hdr.Name))] {
			data, err := io.ReadAll(rc)
			if err == nil {
				images = append(images, entry{name: hdr.Name, data: data})
			}
		}
	}

	cover := firstImageCover(images, func(name string) ([]byte, error) {
		for _, img := range images {
			if img.name == name {
				return img.data, nil
			}
		}
		return nil, fmt.Errorf("entry %q vanished", name)
	})

	return buildComicResult(comicInfoEntry, cover), nil
}

func isComicInfoPath(name string) bool {
	lower := strings.ToLower(filepath.ToSlash(name))
	if lower == "comicinfo.xml" {
		return true
	}
	parts := strings.Split(lower, "/")
	return len(parts) == 2 && parts[1] == "comicinfo.xml"
}

func firstImageCover(images []entry, read func(string) ([]byte, error)) *Cover {
	if len(images) == 0 {
		return nil
	}
	sort.Slice(images, func(i, j int) bool { return images[i].name < images[j].name })

	winner := images[0]
	data := winner.data
	if data == nil {
		var err error
		data, err = read(winner.name)
		if err != nil {
			return nil
		}
	}

	ext := strings.ToLower(filepath.Ext(winner.name))
	if ext == "" {
		ext = ".jpg"
	}
	return &Cover{Data: data, Ext: ext}
}

func buildComicResult(ci *entry, cover *Cover) Result {
	var result Result
	if cover != nil {
		result.Cover = cover
		result.CoverExtracted = true
	}
	if ci == nil {
		return result
	}

	var info comicInfo
	if err := xml.Unmarshal(ci.data, &info); err != nil {
		return result
	}

	m := Metadata{
		Title:       strings.TrimSpace(info.Title),
		Author:      strings.TrimSpace(info.Writer),
		Description: strings.TrimSpace(info.Summary),
		Series:      strings.TrimSpace(info.Series),
	}

	if v := parseVolume(info.Volume, info.Number); v != nil {
		m.Volume = v
	}

	for _, g := range strings.Split(info.Genre, ",") {
		if g = strings.TrimSpace(g); g != "" {
			m.Genres = append(m.Genres, g)
		}
	}

	if info.Year != "" {
		month := "01"
		day := "01"
		if info.Month != "" {
			month = zeroPad(info.Month)
		}
		if info.Day != "" {
			day = zeroPad(info.Day)
		}
		m.PublicationDate = fmt.Sprintf("%s-%s-%s", info.Year, month, day)
	}

	result.Metadata = m
	result.MetadataExtracted = true
	return result
}

func parseVolume(volume, number string) *int {
	for _, raw := range []string{volume, number} {
		if raw == "" {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return &n
		}
	}
	return nil
}

func zeroPad(s string) string {
	if n, err := strconv.Atoi(s); err == nil {
		return fmt.Sprintf("%02d", n)
	}
	return s
}
