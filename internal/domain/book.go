// Package domain contains the core business entities for the shelfwatch
// ingestion pipeline.
package domain

import (
	"strings"
	"time"
)

// ContentType classifies a book by the shape of its metadata domain.
type ContentType string

const (
	ContentTypeBook  ContentType = "book"
	ContentTypeManga ContentType = "manga"
)

// ContentTypeFromExtension derives the content type from a file extension
// (with or without leading dot, case-insensitive).
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "epub":
		return ContentTypeBook
	case "cbz", "cbr":
		return ContentTypeManga
	default:
		return ""
	}
}

// FileType identifies the on-disk archive format of a book.
type FileType string

const (
	FileTypeEpub FileType = "epub"
	FileTypeCbz  FileType = "cbz"
	FileTypeCbr  FileType = "cbr"
)

// FileTypeFromExtension derives the file type from an extension
// (with or without leading dot, case-insensitive). Returns "" if
// unsupported.
func FileTypeFromExtension(ext string) FileType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "epub":
		return FileTypeEpub
	case "cbz":
		return FileTypeCbz
	case "cbr":
		return FileTypeCbr
	default:
		return ""
	}
}

// Status is the book row's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusEnriched   Status = "enriched"
	StatusQuarantine Status = "quarantine"
)

// Book is the single persistent entity the pipeline produces and mutates.
// Field population follows the non-overwriting rule: extractors and
// enrichers only ever fill a currently-empty field (domain invariant 4).
type Book struct {
	ID              int64      `json:"id"`
	FilePath        string     `json:"file_path"`
	Filename        string     `json:"filename"`
	Extension       string     `json:"extension"`
	ContentType     ContentType `json:"content_type"`
	FileType        FileType   `json:"file_type"`
	Status          Status     `json:"status"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	Title           string     `json:"title,omitempty"`
	Author          string     `json:"author,omitempty"`
	Description     string     `json:"description,omitempty"`
	Publisher       string     `json:"publisher,omitempty"`
	Language        string     `json:"language,omitempty"`
	ISBN            string     `json:"isbn,omitempty"`
	PublicationDate string     `json:"publication_date,omitempty"`
	Series          string     `json:"series,omitempty"`
	Volume          *int       `json:"volume,omitempty"`
	Genres          []string   `json:"genres,omitempty"`
	CoverPath       string     `json:"cover_path,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Touch bumps UpdatedAt to now. Called by the store on every update.
func (b *Book) Touch() {
	b.UpdatedAt = time.Now()
}

// HasCover reports whether the book already has a persisted cover.
func (b *Book) HasCover() bool {
	return b.CoverPath != ""
}

// HasGenres reports whether the book's genre list is populated, for the
// purposes of the non-overwriting enrichment rule (empty counts as unset).
func (b *Book) HasGenres() bool {
	return len(b.Genres) > 0
}

// FieldUpdate describes a single field change applied by a store Update
// call, used for "fieldsUpdated" event payloads.
type FieldUpdate struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}
