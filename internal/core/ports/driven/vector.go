package driven

import "context"

// VectorIndex provides cosine similarity search over book embeddings.
// Mutations are serialized relative to each other and to searches;
// concurrent searches are safe against each other.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for the given book ID.
	Upsert(ctx context.Context, id string, embedding []float32) error

	// Remove deletes a vector from the index. Removed IDs are never
	// returned from Search, even before compaction.
	Remove(ctx context.Context, id string) error

	// Search finds the k nearest neighbours to the query vector,
	// best first, ties broken by ascending ID. Returns at most the
	// number of live entries.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Rebuild replaces the entire index contents. Required after the
	// embedding model changes and the recovery path when the index is
	// suspected inconsistent with the repository.
	Rebuild(ctx context.Context, entries []VectorEntry) error

	// Len returns the number of live (non-tombstoned) entries.
	Len() int

	// ModelName returns the embedding model identifier recorded for
	// this index.
	ModelName() string

	// Save persists the index and its ID mapping.
	Save() error

	// Load restores persisted state. Returns
	// domain.ErrIndexModelMismatch when the recorded model or
	// dimensionality does not match the active configuration.
	Load() error

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ID is the matched book.
	ID string

	// Similarity is the cosine similarity score in [0,1].
	Similarity float64
}

// VectorEntry pairs a book ID with its embedding, used by Rebuild.
type VectorEntry struct {
	ID        string
	Embedding []float32
}
