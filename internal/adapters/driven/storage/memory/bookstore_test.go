package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

func newBook(title, category string) *domain.Book {
	return &domain.Book{
		ID:       uuid.NewString(),
		Path:     "/library/" + uuid.NewString() + ".pdf",
		Format:   domain.FormatPDF,
		Title:    title,
		Category: category,
		Status:   domain.StatusProcessed,
	}
}

func TestBookStoreCRUD(t *testing.T) {
	store := NewBookStore()
	ctx := context.Background()

	book := newBook("SICP", "Programming")
	require.NoError(t, store.Upsert(ctx, book))

	got, err := store.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "SICP", got.Title)

	got, err = store.GetByPath(ctx, book.Path)
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)

	require.NoError(t, store.Delete(ctx, book.ID))
	_, err = store.GetByID(ctx, book.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, book.ID), domain.ErrNotFound))
}

func TestBookStoreListFilters(t *testing.T) {
	store := NewBookStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, newBook("Learning Go", "Programming")))
	require.NoError(t, store.Upsert(ctx, newBook("Calculus", "Mathematics")))

	books, total, err := store.List(ctx, domain.ListOptions{Category: "Programming"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Learning Go", books[0].Title)

	books, total, err = store.List(ctx, domain.ListOptions{Query: "calc"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Calculus", books[0].Title)

	_, total, err = store.List(ctx, domain.ListOptions{Offset: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestBookStoreCategoriesAndStats(t *testing.T) {
	store := NewBookStore()
	ctx := context.Background()

	a := newBook("A", "Programming")
	a.Subcategory = "Go"
	a.FileSize = 100
	b := newBook("B", "Programming")
	b.Subcategory = "Go"
	b.FileSize = 200
	c := newBook("C", "Mathematics")
	c.FileSize = 300
	require.NoError(t, store.Upsert(ctx, a))
	require.NoError(t, store.Upsert(ctx, b))
	require.NoError(t, store.Upsert(ctx, c))

	tree, err := store.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "Mathematics", tree[0].Name)
	assert.Equal(t, "Programming", tree[1].Name)
	assert.Equal(t, 2, tree[1].Count)
	require.Len(t, tree[1].Subcategories, 1)
	assert.Equal(t, domain.SubcategoryCount{Name: "Go", Count: 2}, tree[1].Subcategories[0])

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBooks)
	assert.Equal(t, int64(600), stats.TotalSizeBytes)
	assert.Equal(t, 2, stats.CategoryCount)
}
