// Package plaintext handles bare text files. There is no metadata to
// parse, so the title falls back to the file name.
package plaintext

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// maxTextBytes bounds how much is read from a single file; the
// pipeline truncates further per configuration.
const maxTextBytes = 1 << 20

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".txt"}
}

// Extract reads the file body and derives the title from the file name.
func (e *Extractor) Extract(ctx context.Context, path string) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plaintext: opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxTextBytes))
	if err != nil {
		return nil, fmt.Errorf("plaintext: reading %s: %w", filepath.Base(path), err)
	}

	name := filepath.Base(path)
	title := strings.TrimSuffix(name, filepath.Ext(name))

	return &driven.Extraction{
		Title: title,
		Text:  strings.TrimSpace(string(data)),
	}, nil
}

// RenderPages is unsupported: text files have nothing to OCR.
func (e *Extractor) RenderPages(_ context.Context, _ string, _ int) ([]driven.PageImage, error) {
	return nil, domain.ErrOCRUnavailable
}
