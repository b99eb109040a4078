package driven

import "context"

// OCRService recognises text in page images.
// Backed by Tesseract. Calls may fail per page; the pipeline skips
// failed pages rather than aborting the document.
type OCRService interface {
	// Recognize runs OCR over one image and returns the recognised
	// text. The language hint is a Tesseract language string such as
	// "eng" or "eng+chi_sim".
	Recognize(ctx context.Context, image []byte, language string) (string, error)

	// Close releases resources.
	Close() error
}
