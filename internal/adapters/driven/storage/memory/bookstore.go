// Package memory provides in-memory store implementations for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
)

var _ driven.BookStore = (*BookStore)(nil)

// BookStore is an in-memory implementation of driven.BookStore.
// Safe for concurrent use.
type BookStore struct {
	mu    sync.RWMutex
	books map[string]domain.Book
}

// NewBookStore creates an empty in-memory book store.
func NewBookStore() *BookStore {
	return &BookStore{books: make(map[string]domain.Book)}
}

// Upsert stores or updates a book, keyed by ID.
func (s *BookStore) Upsert(_ context.Context, book *domain.Book) error {
	if book.ID == "" {
		return fmt.Errorf("%w: book ID is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now
	s.books[book.ID] = *book
	return nil
}

// GetByID retrieves a book by its identifier.
func (s *BookStore) GetByID(_ context.Context, id string) (*domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &book, nil
}

// GetByPath retrieves a book by its absolute file path.
func (s *BookStore) GetByPath(_ context.Context, path string) (*domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, book := range s.books {
		if book.Path == path {
			b := book
			return &b, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Delete removes a book record.
func (s *BookStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.books, id)
	return nil
}

// List returns books matching the options plus the total count.
func (s *BookStore) List(_ context.Context, opts domain.ListOptions) ([]domain.Book, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Book
	for _, book := range s.books {
		if opts.Category != "" && book.Category != opts.Category {
			continue
		}
		if opts.Format != "" && book.Format != opts.Format {
			continue
		}
		if opts.Query != "" && !matchesQuery(book, opts.Query) {
			continue
		}
		matched = append(matched, book)
	}

	sortBooks(matched, opts.SortBy, opts.SortDesc)
	total := len(matched)

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return matched, total, nil
}

// ListAllPaths returns the set of every known file path.
func (s *BookStore) ListAllPaths(_ context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make(map[string]struct{}, len(s.books))
	for _, book := range s.books {
		paths[book.Path] = struct{}{}
	}
	return paths, nil
}

// ListProcessed returns all books in processed status.
func (s *BookStore) ListProcessed(_ context.Context) ([]domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var books []domain.Book
	for _, book := range s.books {
		if book.Status == domain.StatusProcessed {
			books = append(books, book)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

// Categories returns the category tree with book counts.
func (s *BookStore) Categories(_ context.Context) ([]domain.CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]map[string]int)
	for _, book := range s.books {
		if book.Status != domain.StatusProcessed || book.Category == "" {
			continue
		}
		if counts[book.Category] == nil {
			counts[book.Category] = make(map[string]int)
		}
		counts[book.Category][book.Subcategory]++
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	tree := make([]domain.CategoryCount, 0, len(names))
	for _, name := range names {
		node := domain.CategoryCount{Name: name}
		subs := make([]string, 0, len(counts[name]))
		for sub := range counts[name] {
			subs = append(subs, sub)
		}
		sort.Strings(subs)
		for _, sub := range subs {
			count := counts[name][sub]
			node.Count += count
			if sub != "" {
				node.Subcategories = append(node.Subcategories,
					domain.SubcategoryCount{Name: sub, Count: count})
			}
		}
		tree = append(tree, node)
	}
	return tree, nil
}

// Stats returns collection-wide statistics.
func (s *BookStore) Stats(_ context.Context) (*domain.LibraryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.LibraryStats{Formats: make(map[domain.Format]int)}
	categories := make(map[string]struct{})
	for _, book := range s.books {
		stats.TotalBooks++
		stats.TotalSizeBytes += book.FileSize
		stats.Formats[book.Format]++
		if book.Category != "" {
			categories[book.Category] = struct{}{}
		}
	}
	stats.CategoryCount = len(categories)
	return stats, nil
}

// Len returns the number of stored books.
func (s *BookStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books)
}

func matchesQuery(book domain.Book, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(book.Title), q) ||
		strings.Contains(strings.ToLower(book.Author), q) ||
		strings.Contains(strings.ToLower(book.Description), q)
}

func sortBooks(books []domain.Book, sortBy string, desc bool) {
	less := func(a, b domain.Book) bool { return a.Title < b.Title }
	switch sortBy {
	case "author":
		less = func(a, b domain.Book) bool { return a.Author < b.Author }
	case "year":
		less = func(a, b domain.Book) bool { return a.Year < b.Year }
	case "file_size":
		less = func(a, b domain.Book) bool { return a.FileSize < b.FileSize }
	case "created_at":
		less = func(a, b domain.Book) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	sort.SliceStable(books, func(i, j int) bool {
		if desc {
			return less(books[j], books[i])
		}
		return less(books[i], books[j])
	})
}
