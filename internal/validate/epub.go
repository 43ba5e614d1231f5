package validate

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type epubContainer struct {
	Rootfile struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// EPUB validates a .epub file against the container.xml/OPF contract.
// It must open as a ZIP, carry a mimetype entry with the exact EPUB
// content type, a parseable META-INF/container.xml pointing at a
// rootfile, and that rootfile must exist in the archive.
func EPUB(path string) (*Result, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fail("not a valid zip archive")
	}
	defer zr.Close()

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	mt, ok := entries["mimetype"]
	if !ok {
		return fail("missing mimetype entry")
	}
	content, err := readAll(mt)
	if err != nil {
		return fail("missing mimetype entry")
	}
	const wantMIME = "application/epub+zip"
	if strings.TrimSpace(string(content)) != wantMIME {
		return fail(fmt.Sprintf("mismatched mimetype: found %q", string(content)))
	}

	container, ok := entries["META-INF/container.xml"]
	if !ok {
		return fail("missing META-INF/container.xml")
	}
	raw, err := readAll(container)
	if err != nil {
		return fail("missing META-INF/container.xml")
	}
	var c epubContainer
	if err := xml.Unmarshal(raw, &c); err != nil || c.Rootfile.FullPath == "" {
		return fail("missing rootfile path in container.xml")
	}

	if _, ok := entries[c.Rootfile.FullPath]; !ok {
		return fail(fmt.Sprintf("missing content.opf: expected %q", c.Rootfile.FullPath))
	}

	return &Result{Valid: true}, nil
}

func readAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
