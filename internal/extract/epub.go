package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
)

type epubContainer struct {
	Rootfile struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
}

type opfMetadata struct {
	Titles      []string         `xml:"title"`
	Creators    []opfCreator     `xml:"creator"`
	Subjects    []string         `xml:"subject"`
	Description string           `xml:"description"`
	Language    string           `xml:"language"`
	Publisher   string           `xml:"publisher"`
	Date        string           `xml:"date"`
	Identifiers []opfIdentifier  `xml:"identifier"`
	Metas       []opfMeta        `xml:"meta"`
}

type opfCreator struct {
	Name string `xml:",chardata"`
	Role string `xml:"role,attr"`
}

type opfIdentifier struct {
	Value  string `xml:",chardata"`
	Scheme string `xml:"scheme,attr"`
}

type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type opfManifest struct {
	Items []opfItem `xml:"item"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// EPUB extracts title/author/description/ISBN/genres and cover art from
// an already-structurally-validated .epub file.
func EPUB(path string) (Result, error) {
	var result Result

	zr, err := zip.OpenReader(path)
	if err != nil {
		return result, fmt.Errorf("extract epub: open %q: %w", path, err)
	}
	defer zr.Close()

	opfPath, err := readContainer(&zr.Reader)
	if err != nil {
		return result, nil
	}

	pkg, err := readPackage(&zr.Reader, opfPath)
	if err != nil {
		return result, nil
	}

	result.Metadata = mapOPFMetadata(pkg.Metadata)
	result.MetadataExtracted = true

	if cover := extractEPUBCover(&zr.Reader, opfPath, pkg); cover != nil {
		result.Cover = cover
		result.CoverExtracted = true
	}

	return result, nil
}

func readContainer(zr *zip.Reader) (string, error) {
	for _, f := range zr.File {
		if f.Name != "META-INF/container.xml" {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return "", err
		}
		var c epubContainer
		if err := xml.Unmarshal(data, &c); err != nil || c.Rootfile.FullPath == "" {
			return "", fmt.Errorf("no rootfile in container.xml")
		}
		return c.Rootfile.FullPath, nil
	}
	return "", fmt.Errorf("container.xml not found")
}

func readPackage(zr *zip.Reader, opfPath string) (opfPackage, error) {
	for _, f := range zr.File {
		if f.Name != opfPath {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return opfPackage{}, err
		}
		var pkg opfPackage
		if err := xml.Unmarshal(data, &pkg); err != nil {
			return opfPackage{}, err
		}
		return pkg, nil
	}
	return opfPackage{}, fmt.Errorf("opf %q not found", opfPath)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func mapOPFMetadata(meta opfMetadata) Metadata {
	m := Metadata{
		Description: strings.TrimSpace(meta.Description),
		Publisher:   strings.TrimSpace(meta.Publisher),
		Language:    strings.TrimSpace(meta.Language),
		ISBN:        findISBN(meta.Identifiers),
	}
	if len(meta.Titles) > 0 {
		m.Title = strings.TrimSpace(meta.Titles[0])
	}
	if meta.Date != "" {
		m.PublicationDate = meta.Date
	}

	var authors []string
	for _, c := range meta.Creators {
		if c.Role != "" && c.Role != "aut" {
			continue
		}
		if name := strings.TrimSpace(c.Name); name != "" {
			authors = append(authors, name)
		}
	}
	m.Author = strings.Join(authors, ", ")

	for _, s := range meta.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			m.Genres = append(m.Genres, s)
		}
	}

	return m
}

var (
	isbnPrefixPattern = regexp.MustCompile(`(?i)(?:urn:isbn:|isbn:|isbn)\s*([0-9\-]{10,17})`)
	isbn13Pattern     = regexp.MustCompile(`\b(97[89][0-9]{10})\b`)
	nonDigitPattern   = regexp.MustCompile(`[^0-9Xx]`)
)

// findISBN applies the spec's three-rule ISBN detection (§4.4) across
// every dc:identifier and returns the first hit.
func findISBN(identifiers []opfIdentifier) string {
	for _, id := range identifiers {
		value := strings.TrimSpace(id.Value)
		if value == "" {
			continue
		}

		if strings.Contains(strings.ToLower(id.Scheme), "isbn") {
			digits := nonDigitPattern.ReplaceAllString(value, "")
			if len(digits) == 10 || len(digits) == 13 {
				return digits
			}
		}

		if m := isbnPrefixPattern.FindStringSubmatch(value); m != nil {
			digits := strings.ReplaceAll(m[1], "-", "")
			if len(digits) >= 10 {
				return digits
			}
		}

		if m := isbn13Pattern.FindString(value); m != "" {
			return m
		}
	}
	return ""
}

func extractEPUBCover(zr *zip.Reader, opfPath string, pkg opfPackage) *Cover {
	opfDir := filepath.ToSlash(filepath.Dir(opfPath))
	if opfDir == "." {
		opfDir = ""
	}

	var coverItemID string
	for _, m := range pkg.Metadata.Metas {
		if strings.EqualFold(m.Name, "cover") && m.Content != "" {
			coverItemID = m.Content
			break
		}
	}

	var href, mediaType string
	if coverItemID != "" {
		for _, item := range pkg.Manifest.Items {
			if item.ID == coverItemID {
				href, mediaType = item.Href, item.MediaType
				break
			}
		}
	}
	if href == "" {
		for _, item := range pkg.Manifest.Items {
			if strings.Contains(item.Properties, "cover-image") {
				href, mediaType = item.Href, item.MediaType
				break
			}
		}
	}
	if href == "" {
		return nil
	}

	var file *zip.File
	if opfDir != "" {
		file = findZipFile(zr, opfDir+"/"+href)
	}
	if file == nil {
		file = findZipFile(zr, href)
	}
	if file == nil {
		return nil
	}

	data, err := readZipFile(file)
	if err != nil {
		return nil
	}

	ext := extFromMediaType(mediaType)
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(href))
	}
	if ext == "" {
		ext = ".jpg"
	}

	return &Cover{Data: data, Ext: ext}
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func extFromMediaType(mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
