package driven

import (
	"context"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

// Classifier assigns a category and optional subcategory to a document.
// Implementations are deterministic for a fixed rule table and input in
// the rule tier; only the similarity fallback depends on the embedding
// service.
type Classifier interface {
	// Classify evaluates the rule tier first and falls back to
	// embedding similarity when no rule clears the minimum score.
	Classify(ctx context.Context, input domain.ClassifierInput) (*domain.Classification, error)
}
