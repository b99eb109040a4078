package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
	"github.com/yexubai/BookBrain/internal/core/ports/driving"
	"github.com/yexubai/BookBrain/internal/logger"
)

// Ensure Search implements the interface.
var _ driving.SearchService = (*Search)(nil)

// defaultSearchK applies when the caller asks for zero results.
const defaultSearchK = 10

// Search answers semantic queries: the query text is embedded and
// matched against the book vectors, then hits are resolved back to
// repository records.
type Search struct {
	store    driven.BookStore
	embedder driven.EmbeddingService
	index    driven.VectorIndex
}

// NewSearch creates the search service.
func NewSearch(store driven.BookStore, embedder driven.EmbeddingService, index driven.VectorIndex) *Search {
	return &Search{store: store, embedder: embedder, index: index}
}

// Search returns up to k books ranked by similarity to the query.
func (s *Search) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = defaultSearchK
	}

	if s.embedder == nil || s.index == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := s.index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		book, err := s.store.GetByID(ctx, hit.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Stale vector entry; the next ingest or rebuild
				// reconciles it.
				logger.Debug("Search hit %s has no record", hit.ID)
				continue
			}
			return nil, fmt.Errorf("resolving hit %s: %w", hit.ID, err)
		}
		results = append(results, domain.SearchResult{
			Book:  *book,
			Score: hit.Similarity,
		})
	}
	return results, nil
}
