package driven

import "context"

// Extraction is the result of extracting metadata and text from a file.
// Optional metadata fields are zero-valued when the container does not
// carry them; the pipeline defaults the title from the filename.
type Extraction struct {
	Title       string
	Author      string
	ISBN        string
	Publisher   string
	Year        int
	Language    string
	Description string

	// Text is the best-effort extracted text. May be empty for
	// image-only documents.
	Text string

	// PageCount is the number of pages, zero for formats without pages.
	PageCount int
}

// PageImage is one rendered page, ready for OCR.
type PageImage struct {
	// Page is the zero-based page number.
	Page int

	// Data is the encoded image bytes (PNG).
	Data []byte
}

// Extractor extracts metadata and text from a specific document format.
// One implementation exists per supported format, selected by the
// ExtractorRegistry on file extension.
type Extractor interface {
	// Extensions returns the lower-case file extensions this extractor
	// handles, including the leading dot.
	Extensions() []string

	// Extract parses the file and returns metadata plus best-effort text.
	Extract(ctx context.Context, path string) (*Extraction, error)

	// RenderPages rasterises up to maxPages pages for OCR. Formats
	// without a page model return domain.ErrOCRUnavailable.
	RenderPages(ctx context.Context, path string, maxPages int) ([]PageImage, error)
}

// ExtractorRegistry selects the extractor for a file path.
type ExtractorRegistry interface {
	// Register adds an extractor to the registry.
	Register(e Extractor)

	// ForPath returns the extractor handling the path's extension, or
	// domain.ErrUnsupportedFormat.
	ForPath(path string) (Extractor, error)

	// SupportedExtensions returns every registered extension.
	SupportedExtensions() []string
}
