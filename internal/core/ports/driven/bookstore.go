package driven

import (
	"context"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

// BookStore persists book records.
// Backed by SQLite for metadata storage; the core never assumes a
// particular storage engine.
type BookStore interface {
	// Upsert stores or updates a book, keyed by ID.
	Upsert(ctx context.Context, book *domain.Book) error

	// GetByID retrieves a book by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Book, error)

	// GetByPath retrieves a book by its absolute file path.
	// Returns domain.ErrNotFound when no record exists for the path.
	GetByPath(ctx context.Context, path string) (*domain.Book, error)

	// Delete removes a book record. The file on disk is untouched.
	Delete(ctx context.Context, id string) error

	// List returns books matching the options plus the total count
	// before pagination.
	List(ctx context.Context, opts domain.ListOptions) ([]domain.Book, int, error)

	// ListAllPaths returns the set of every known file path.
	ListAllPaths(ctx context.Context) (map[string]struct{}, error)

	// ListProcessed returns all books in processed status. Used by
	// index rebuilds.
	ListProcessed(ctx context.Context) ([]domain.Book, error)

	// Categories returns the category tree with book counts.
	Categories(ctx context.Context) ([]domain.CategoryCount, error)

	// Stats returns collection-wide statistics.
	Stats(ctx context.Context) (*domain.LibraryStats, error)
}
