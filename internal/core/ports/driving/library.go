package driving

import (
	"context"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

// BookUpdate carries the user-editable book fields. Nil pointers leave
// the stored value unchanged.
type BookUpdate struct {
	Title       *string
	Author      *string
	ISBN        *string
	Publisher   *string
	Year        *int
	Language    *string
	Description *string
	Category    *string
	Subcategory *string
}

// Library exposes read/write access to the book collection for the
// REST and CLI surfaces.
type Library interface {
	// List returns books matching the options plus the total count.
	List(ctx context.Context, opts domain.ListOptions) ([]domain.Book, int, error)

	// Get retrieves one book by ID.
	Get(ctx context.Context, id string) (*domain.Book, error)

	// Update applies a partial metadata update.
	Update(ctx context.Context, id string, update BookUpdate) (*domain.Book, error)

	// Delete removes the record and its vector entry. The file on
	// disk is untouched.
	Delete(ctx context.Context, id string) error

	// Categories returns the category tree with counts.
	Categories(ctx context.Context) ([]domain.CategoryCount, error)

	// Stats returns collection statistics.
	Stats(ctx context.Context) (*domain.LibraryStats, error)

	// RebuildIndex re-embeds every processed book and replaces the
	// vector index contents.
	RebuildIndex(ctx context.Context) error
}
