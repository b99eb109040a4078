package extractors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
)

type stubExtractor struct {
	exts []string
}

func (s *stubExtractor) Extensions() []string { return s.exts }

func (s *stubExtractor) Extract(context.Context, string) (*driven.Extraction, error) {
	return &driven.Extraction{}, nil
}

func (s *stubExtractor) RenderPages(context.Context, string, int) ([]driven.PageImage, error) {
	return nil, domain.ErrOCRUnavailable
}

func TestRegistryForPath(t *testing.T) {
	r := NewRegistry()
	pdf := &stubExtractor{exts: []string{".pdf"}}
	epub := &stubExtractor{exts: []string{".epub"}}
	r.Register(pdf)
	r.Register(epub)

	got, err := r.ForPath("/library/some book.PDF")
	require.NoError(t, err)
	assert.Same(t, driven.Extractor(pdf), got)

	got, err = r.ForPath("novel.epub")
	require.NoError(t, err)
	assert.Same(t, driven.Extractor(epub), got)
}

func TestRegistryUnsupportedExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubExtractor{exts: []string{".pdf"}})

	_, err := r.ForPath("notes.docx")
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFormat))
}

func TestRegistrySupportedExtensions(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubExtractor{exts: []string{".txt"}})
	r.Register(&stubExtractor{exts: []string{".pdf", ".epub"}})

	assert.Equal(t, []string{".epub", ".pdf", ".txt"}, r.SupportedExtensions())
}
