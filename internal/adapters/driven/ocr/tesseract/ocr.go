// Package tesseract provides an OCR adapter backed by the Tesseract
// engine via gosseract. Requires libtesseract and the language data
// packs at runtime.
package tesseract

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
)

// Ensure Service implements the interface.
var _ driven.OCRService = (*Service)(nil)

// Service recognises page images with Tesseract. The underlying
// gosseract client is not safe for concurrent use, so calls are
// serialised; page images are small enough that this is not the
// pipeline bottleneck.
type Service struct {
	mu     sync.Mutex
	client *gosseract.Client
	closed bool
}

// New creates a Tesseract-backed OCR service.
func New() *Service {
	return &Service{client: gosseract.NewClient()}
}

// Recognize runs OCR over one PNG image. The context deadline is
// honoured while recognition is in flight: a timed-out call returns
// early and its eventual result is discarded.
func (s *Service) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}
	return recognizeBounded(ctx, func() (string, error) {
		return s.recognize(image, language)
	})
}

// recognize drives the engine under the serialising mutex.
func (s *Service) recognize(image []byte, language string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("%w: service closed", domain.ErrOCRUnavailable)
	}

	if language != "" {
		if err := s.client.SetLanguage(language); err != nil {
			return "", fmt.Errorf("%w: language %q: %v", domain.ErrOCRUnavailable, language, err)
		}
	}
	if err := s.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("tesseract: setting image: %w", err)
	}

	text, err := s.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: recognising text: %w", err)
	}
	return text, nil
}

// recognizeBounded runs fn on its own goroutine and returns as soon as
// the context expires. Tesseract has no cancellation hook, so a stuck
// call is abandoned and left to finish on its own; later calls queue
// behind it on the mutex but still honour their own deadlines.
func recognizeBounded(ctx context.Context, fn func() (string, error)) (string, error) {
	type result struct {
		text string
		err  error
	}

	done := make(chan result, 1)
	go func() {
		text, err := fn()
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.text, r.err
	}
}

// Close releases the Tesseract client.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
