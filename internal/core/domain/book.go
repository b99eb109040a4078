package domain

import (
	"time"
	"unicode/utf8"
)

// Format identifies a supported document container format.
type Format string

// Supported document formats.
const (
	FormatPDF   Format = "pdf"
	FormatEPUB  Format = "epub"
	FormatPlain Format = "txt"
)

// Status describes where a book is in the ingest lifecycle.
type Status string

// Book processing states.
const (
	// StatusPending means the book was discovered but not yet processed.
	StatusPending Status = "pending"

	// StatusProcessed means the full pipeline completed successfully.
	StatusProcessed Status = "processed"

	// StatusFailed means a pipeline step failed; Error holds the reason.
	StatusFailed Status = "failed"
)

// Book represents one ingested document file with its extracted
// metadata, classification and processing state.
type Book struct {
	// ID is the unique identifier. It is stable across re-ingests
	// of the same path.
	ID string

	// Path is the absolute location of the file on disk.
	Path string

	// Fingerprint is the SHA-256 hash of the file bytes. A changed
	// fingerprint triggers re-processing.
	Fingerprint string

	// Format is the container format tag (pdf, epub, txt).
	Format Format

	// Bibliographic metadata. Optional fields are zero-valued when unknown.
	Title       string
	Author      string
	ISBN        string
	Publisher   string
	Year        int
	Language    string
	Description string

	// Category and Subcategory are assigned by the classifier.
	// Category is always set once Status is StatusProcessed.
	Category    string
	Subcategory string

	// Summary is the derived display text for the book.
	Summary string

	// Text is the extracted content, truncated to the configured limit.
	Text string

	// OCRPerformed reports whether the text came from the OCR fallback.
	OCRPerformed bool

	// PageCount is the number of pages, zero when unknown.
	PageCount int

	// FileSize is the size of the file in bytes.
	FileSize int64

	// CoverPath is the location of the rendered cover image, empty when
	// no cover could be produced.
	CoverPath string

	// Status is the processing state.
	Status Status

	// Error holds the failure reason when Status is StatusFailed.
	Error string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasText reports whether the book carries any indexable content.
func (b *Book) HasText() bool {
	return b.Text != "" || b.Summary != ""
}

// RepresentativeText returns the text used for embedding: title and
// author joined with the leading content, so that short or scanned
// books still index on their metadata. The limit is in bytes; the cut
// backs up so a multi-byte rune is never split.
func (b *Book) RepresentativeText(limit int) string {
	text := b.Title + " " + b.Author + " " + b.Text
	if limit > 0 && len(text) > limit {
		for limit > 0 && !utf8.RuneStart(text[limit]) {
			limit--
		}
		text = text[:limit]
	}
	return text
}
