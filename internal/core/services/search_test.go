package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yexubai/BookBrain/internal/adapters/driven/storage/memory"
	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
)

// cannedIndex returns a fixed hit list regardless of the query.
type cannedIndex struct {
	fakeIndex
	hits []driven.VectorHit
}

func (c *cannedIndex) Search(_ context.Context, _ []float32, k int) ([]driven.VectorHit, error) {
	if k < len(c.hits) {
		return c.hits[:k], nil
	}
	return c.hits, nil
}

func seedBook(t *testing.T, store *memory.BookStore, id, title string) {
	t.Helper()
	require.NoError(t, store.Upsert(context.Background(), &domain.Book{
		ID:     id,
		Path:   "/library/" + id + ".pdf",
		Format: domain.FormatPDF,
		Title:  title,
		Status: domain.StatusProcessed,
	}))
}

func TestSearchResolvesHits(t *testing.T) {
	store := memory.NewBookStore()
	seedBook(t, store, "id-1", "Distributed Systems")
	seedBook(t, store, "id-2", "Database Internals")

	index := &cannedIndex{hits: []driven.VectorHit{
		{ID: "id-2", Similarity: 0.91},
		{ID: "id-1", Similarity: 0.74},
	}}

	svc := NewSearch(store, &fakeEmbedder{}, index)
	results, err := svc.Search(context.Background(), "how databases store data", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Database Internals", results[0].Book.Title)
	assert.InDelta(t, 0.91, results[0].Score, 1e-9)
	assert.Equal(t, "Distributed Systems", results[1].Book.Title)
}

func TestSearchSkipsStaleHits(t *testing.T) {
	store := memory.NewBookStore()
	seedBook(t, store, "id-1", "Kept Book")

	index := &cannedIndex{hits: []driven.VectorHit{
		{ID: "deleted-id", Similarity: 0.95},
		{ID: "id-1", Similarity: 0.80},
	}}

	svc := NewSearch(store, &fakeEmbedder{}, index)
	results, err := svc.Search(context.Background(), "anything", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Kept Book", results[0].Book.Title)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := NewSearch(memory.NewBookStore(), &fakeEmbedder{}, &cannedIndex{})
	_, err := svc.Search(context.Background(), "   ", 5)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSearchWithoutEmbedder(t *testing.T) {
	svc := NewSearch(memory.NewBookStore(), nil, nil)
	_, err := svc.Search(context.Background(), "query", 5)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
}

func TestSearchEmbeddingFailure(t *testing.T) {
	svc := NewSearch(memory.NewBookStore(), &fakeEmbedder{fail: true}, &cannedIndex{})
	_, err := svc.Search(context.Background(), "query", 5)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
}

func TestSearchDefaultsK(t *testing.T) {
	store := memory.NewBookStore()
	index := &cannedIndex{}
	for i := 0; i < 15; i++ {
		id := string(rune('a' + i))
		seedBook(t, store, id, "Book "+id)
		index.hits = append(index.hits, driven.VectorHit{ID: id, Similarity: 0.5})
	}

	svc := NewSearch(store, &fakeEmbedder{}, index)
	results, err := svc.Search(context.Background(), "query", 0)
	require.NoError(t, err)
	assert.Len(t, results, defaultSearchK)
}
