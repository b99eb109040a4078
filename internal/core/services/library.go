package services

import (
	"context"
	"fmt"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
	"github.com/yexubai/BookBrain/internal/core/ports/driving"
	"github.com/yexubai/BookBrain/internal/logger"
)

// Ensure Library implements the interface.
var _ driving.Library = (*Library)(nil)

// Library manages the book collection on behalf of the REST and CLI
// surfaces.
type Library struct {
	store           driven.BookStore
	embedder        driven.EmbeddingService
	index           driven.VectorIndex
	embedTextLength int
}

// NewLibrary creates the library service. The embedder and index are
// optional; nil disables re-embedding on update and index rebuilds.
func NewLibrary(store driven.BookStore, embedder driven.EmbeddingService, index driven.VectorIndex, embedTextLength int) *Library {
	return &Library{
		store:           store,
		embedder:        embedder,
		index:           index,
		embedTextLength: embedTextLength,
	}
}

// List returns books matching the options plus the total count.
func (l *Library) List(ctx context.Context, opts domain.ListOptions) ([]domain.Book, int, error) {
	return l.store.List(ctx, opts)
}

// Get retrieves one book by ID.
func (l *Library) Get(ctx context.Context, id string) (*domain.Book, error) {
	return l.store.GetByID(ctx, id)
}

// Update applies a partial metadata update and re-embeds the book when
// a field feeding the vector changed.
func (l *Library) Update(ctx context.Context, id string, update driving.BookUpdate) (*domain.Book, error) {
	book, err := l.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	reembed := false
	setString := func(dst *string, src *string, affectsVector bool) {
		if src != nil && *src != *dst {
			*dst = *src
			if affectsVector {
				reembed = true
			}
		}
	}

	setString(&book.Title, update.Title, true)
	setString(&book.Author, update.Author, true)
	setString(&book.ISBN, update.ISBN, false)
	setString(&book.Publisher, update.Publisher, false)
	setString(&book.Language, update.Language, false)
	setString(&book.Description, update.Description, false)
	setString(&book.Category, update.Category, false)
	setString(&book.Subcategory, update.Subcategory, false)
	if update.Year != nil {
		book.Year = *update.Year
	}

	if err := l.store.Upsert(ctx, book); err != nil {
		return nil, fmt.Errorf("saving update: %w", err)
	}

	if reembed && l.embedder != nil && l.index != nil && book.HasText() {
		vector, err := l.embedder.Embed(ctx, book.RepresentativeText(l.embedTextLength))
		if err != nil {
			logger.Warn("Re-embedding %s after update: %v", id, err)
		} else if err := l.index.Upsert(ctx, book.ID, vector); err != nil {
			logger.Warn("Updating vector for %s: %v", id, err)
		}
	}

	return book, nil
}

// Delete removes the record and its vector entry. The file on disk is
// untouched.
func (l *Library) Delete(ctx context.Context, id string) error {
	if err := l.store.Delete(ctx, id); err != nil {
		return err
	}
	if l.index != nil {
		if err := l.index.Remove(ctx, id); err != nil {
			logger.Debug("Removing vector for %s: %v", id, err)
		}
	}
	return nil
}

// Categories returns the category tree with counts.
func (l *Library) Categories(ctx context.Context) ([]domain.CategoryCount, error) {
	return l.store.Categories(ctx)
}

// Stats returns collection statistics.
func (l *Library) Stats(ctx context.Context) (*domain.LibraryStats, error) {
	return l.store.Stats(ctx)
}

// RebuildIndex re-embeds every processed book and atomically replaces
// the vector index contents. The path to run after changing the
// embedding model.
func (l *Library) RebuildIndex(ctx context.Context) error {
	if l.embedder == nil || l.index == nil {
		return domain.ErrEmbeddingUnavailable
	}

	books, err := l.store.ListProcessed(ctx)
	if err != nil {
		return fmt.Errorf("listing books: %w", err)
	}

	entries := make([]driven.VectorEntry, 0, len(books))
	for i := range books {
		book := &books[i]
		if !book.HasText() {
			continue
		}
		vector, err := l.embedder.Embed(ctx, book.RepresentativeText(l.embedTextLength))
		if err != nil {
			return fmt.Errorf("embedding %s: %w", book.ID, err)
		}
		entries = append(entries, driven.VectorEntry{ID: book.ID, Embedding: vector})
	}

	if err := l.index.Rebuild(ctx, entries); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	if err := l.index.Save(); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}

	logger.Info("Index rebuilt: %d vectors", len(entries))
	return nil
}
