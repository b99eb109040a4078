package driving

import (
	"context"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

// SearchService answers semantic queries against the indexed library.
type SearchService interface {
	// Search embeds the query and returns up to k hits resolved to
	// full book records, best first. Hits whose record no longer
	// exists are dropped silently.
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}
