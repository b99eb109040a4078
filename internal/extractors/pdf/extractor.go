// Package pdf extracts metadata and text from PDF files using docconv,
// and rasterises pages through pdftoppm for the OCR fallback.
package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"code.sajari.com/docconv"

	"github.com/yexubai/BookBrain/internal/core/ports/driven"
	"github.com/yexubai/BookBrain/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// renderDPI is the rasterisation resolution for OCR. 150 DPI keeps
// Tesseract accurate without producing huge page images.
const renderDPI = 150

// Extractor handles PDF documents.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".pdf"}
}

// Extract parses the PDF and returns metadata plus the text layer.
// An empty text body is not an error: image-only PDFs legitimately
// have no text layer and are handled by the OCR fallback.
func (e *Extractor) Extract(ctx context.Context, path string) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := docconv.ConvertPath(path)
	if err != nil {
		return nil, fmt.Errorf("pdf: converting %s: %w", filepath.Base(path), err)
	}

	out := &driven.Extraction{
		Text: strings.TrimSpace(res.Body),
	}
	if res.Meta != nil {
		out.Title = strings.TrimSpace(res.Meta["Title"])
		out.Author = strings.TrimSpace(res.Meta["Author"])
		out.Description = strings.TrimSpace(res.Meta["Subject"])
		if pages, err := strconv.Atoi(strings.TrimSpace(res.Meta["Pages"])); err == nil {
			out.PageCount = pages
		}
		out.Year = parseYear(res.Meta["CreationDate"])
	}

	return out, nil
}

// RenderPages rasterises up to maxPages pages to PNG via pdftoppm.
// docconv itself shells out to poppler for text, so the render path
// carries the same runtime dependency.
func (e *Extractor) RenderPages(ctx context.Context, path string, maxPages int) ([]driven.PageImage, error) {
	if maxPages <= 0 {
		return nil, nil
	}

	tmpDir, err := os.MkdirTemp("", "bookbrain-pages-")
	if err != nil {
		return nil, fmt.Errorf("pdf: creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(renderDPI),
		"-f", "1",
		"-l", strconv.Itoa(maxPages),
		path, prefix)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdf: pdftoppm %s: %w (%s)",
			filepath.Base(path), err, strings.TrimSpace(string(output)))
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("pdf: reading rendered pages: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".png") {
			names = append(names, entry.Name())
		}
	}
	// pdftoppm zero-pads page numbers, so lexicographic order is page order.
	sort.Strings(names)

	images := make([]driven.PageImage, 0, len(names))
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			logger.Warn("Skipping unreadable rendered page %s: %v", name, err)
			continue
		}
		images = append(images, driven.PageImage{Page: i, Data: data})
	}

	logger.Debug("Rendered %d pages of %s", len(images), filepath.Base(path))
	return images, nil
}

// parseYear pulls a four-digit year out of a PDF date string. PDF
// dates come as "D:YYYYMMDDHHmmSS" or occasionally as a plain
// timestamp; only the year is worth keeping.
func parseYear(date string) int {
	date = strings.TrimPrefix(strings.TrimSpace(date), "D:")
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year < 1000 || year > 9999 {
		return 0
	}
	return year
}
