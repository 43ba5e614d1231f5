// Package extract reads structural metadata and cover art out of an
// already-validated EPUB/CBZ/CBR file (spec §4.4). An archive that cannot
// be opened, or an unsupported extension, is returned as an error; once
// the archive is open, metadata and cover extraction each succeed or fail
// independently, and the overall result is successful if either did.
package extract

// Metadata is the set of fields an extractor can recover directly from
// the archive itself, before any external-source enrichment.
type Metadata struct {
	Title           string
	Author          string
	Description     string
	Publisher       string
	Language         string
	PublicationDate string
	ISBN            string
	Series          string
	Volume          *int
	Genres          []string
}

// Cover is an extracted cover image: its raw bytes and the file
// extension (lower-cased, dot-prefixed) to persist it under.
type Cover struct {
	Data []byte
	Ext  string
}

// Result is the outcome of extracting a single file. MetadataExtracted
// and CoverExtracted are independent; Success is their OR.
type Result struct {
	Metadata          Metadata
	MetadataExtracted bool
	Cover             *Cover
	CoverExtracted    bool
}

// Success reports whether either metadata or a cover was recovered.
func (r Result) Success() bool {
	return r.MetadataExtracted || r.CoverExtracted
}
