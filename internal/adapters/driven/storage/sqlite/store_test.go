package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testBook(mutate func(*domain.Book)) *domain.Book {
	b := &domain.Book{
		ID:          uuid.NewString(),
		Path:        "/library/" + uuid.NewString() + ".pdf",
		Fingerprint: "abc123",
		Format:      domain.FormatPDF,
		Title:       "Clean Architecture",
		Author:      "Robert Martin",
		Category:    "Programming",
		Subcategory: "Software Design",
		Text:        "some extracted text",
		FileSize:    2048,
		Status:      domain.StatusProcessed,
	}
	if mutate != nil {
		mutate(b)
	}
	return b
}

func TestUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	book := testBook(nil)
	require.NoError(t, store.Upsert(ctx, book))
	assert.False(t, book.CreatedAt.IsZero())

	got, err := store.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.Title, got.Title)
	assert.Equal(t, book.Path, got.Path)
	assert.Equal(t, domain.StatusProcessed, got.Status)

	got, err = store.GetByPath(ctx, book.Path)
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)
}

func TestUpsertUpdatesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	book := testBook(nil)
	require.NoError(t, store.Upsert(ctx, book))

	book.Title = "Updated Title"
	book.Status = domain.StatusFailed
	book.Error = "extraction failed"
	require.NoError(t, store.Upsert(ctx, book))

	got, err := store.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated Title", got.Title)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "extraction failed", got.Error)

	_, total, err := store.List(ctx, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestUpsertRequiresID(t *testing.T) {
	store := newTestStore(t)
	err := store.Upsert(context.Background(), &domain.Book{Path: "/x.pdf"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = store.GetByPath(ctx, "/nowhere.pdf")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	book := testBook(nil)
	require.NoError(t, store.Upsert(ctx, book))
	require.NoError(t, store.Delete(ctx, book.ID))

	_, err := store.GetByID(ctx, book.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	assert.True(t, errors.Is(store.Delete(ctx, book.ID), domain.ErrNotFound))
}

func TestListFiltersAndPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testBook(func(b *domain.Book) {
		b.Title = "Learning Go"
		b.Category = "Programming"
	})))
	require.NoError(t, store.Upsert(ctx, testBook(func(b *domain.Book) {
		b.Title = "Linear Algebra"
		b.Category = "Mathematics"
	})))
	require.NoError(t, store.Upsert(ctx, testBook(func(b *domain.Book) {
		b.Title = "Go Web Programming"
		b.Category = "Programming"
		b.Format = domain.FormatEPUB
		b.Path = "/library/gowp.epub"
	})))

	books, total, err := store.List(ctx, domain.ListOptions{Category: "Programming"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, books, 2)

	books, total, err = store.List(ctx, domain.ListOptions{Format: domain.FormatEPUB})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Go Web Programming", books[0].Title)

	books, total, err = store.List(ctx, domain.ListOptions{Query: "algebra"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Linear Algebra", books[0].Title)

	// Pagination: total is pre-pagination, page has one record.
	books, total, err = store.List(ctx, domain.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, books, 1)
}

func TestListSorting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testBook(func(b *domain.Book) {
		b.Title = "B Book"
		b.Year = 2010
	})))
	require.NoError(t, store.Upsert(ctx, testBook(func(b *domain.Book) {
		b.Title = "A Book"
		b.Year = 2020
	})))

	books, _, err := store.List(ctx, domain.ListOptions{SortBy: "year", SortDesc: true})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, 2020, books[0].Year)

	// Unknown sort key falls back to title ascending.
	books, _, err = store.List(ctx, domain.ListOptions{SortBy: "evil; DROP TABLE books"})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "A Book", books[0].Title)
}

func TestListAllPaths(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testBook(nil)
	b := testBook(nil)
	require.NoError(t, store.Upsert(ctx, a))
	require.NoError(t, store.Upsert(ctx, b))

	paths, err := store.ListAllPaths(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.Contains(t, paths, a.Path)
	assert.Contains(t, paths, b.Path)
}

func TestListProcessed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testBook(nil)))
	require.NoError(t, store.Upsert(ctx, testBook(func(b *domain.Book) {
		b.Status = domain.StatusFailed
	})))

	books, err := store.ListProcessed(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.Equal(t, domain.StatusProcessed, books[0].Status)
}

func TestCategories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	add := func(category, subcategory string) {
		require.NoError(t, store.Upsert(ctx, testBook(func(b *domain.Book) {
			b.Category = category
			b.Subcategory = subcategory
		})))
	}
	add("Programming", "Go")
	add("Programming", "Go")
	add("Programming", "Python")
	add("Mathematics", "")

	tree, err := store.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)

	assert.Equal(t, "Mathematics", tree[0].Name)
	assert.Equal(t, 1, tree[0].Count)
	assert.Empty(t, tree[0].Subcategories)

	assert.Equal(t, "Programming", tree[1].Name)
	assert.Equal(t, 3, tree[1].Count)
	require.Len(t, tree[1].Subcategories, 2)
	assert.Equal(t, domain.SubcategoryCount{Name: "Go", Count: 2}, tree[1].Subcategories[0])
	assert.Equal(t, domain.SubcategoryCount{Name: "Python", Count: 1}, tree[1].Subcategories[1])
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testBook(func(b *domain.Book) {
		b.FileSize = 1000
	})))
	require.NoError(t, store.Upsert(ctx, testBook(func(b *domain.Book) {
		b.Format = domain.FormatEPUB
		b.Category = "Mathematics"
		b.FileSize = 500
	})))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalBooks)
	assert.Equal(t, int64(1500), stats.TotalSizeBytes)
	assert.Equal(t, 2, stats.CategoryCount)
	assert.Equal(t, 1, stats.Formats[domain.FormatPDF])
	assert.Equal(t, 1, stats.Formats[domain.FormatEPUB])
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), testBook(nil)))
	require.NoError(t, store.Close())

	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	_, total, err := store.List(context.Background(), domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
