package domain

// Uncategorized is the reserved category assigned when neither the
// rule tier nor the similarity fallback produces a confident match.
const Uncategorized = "Uncategorized"

// ClassificationTier records which tier of the classifier produced a
// result, so callers and tests can distinguish provenance.
type ClassificationTier string

// Classification provenance values.
const (
	// TierRuled means the deterministic rule tier matched.
	TierRuled ClassificationTier = "ruled"

	// TierMLFallback means the embedding-similarity fallback matched.
	TierMLFallback ClassificationTier = "ml_fallback"

	// TierUncategorized means no tier cleared its threshold.
	TierUncategorized ClassificationTier = "uncategorized"
)

// Classification is the result of classifying a document.
type Classification struct {
	// Category is the assigned category, Uncategorized when no match.
	Category string

	// Subcategory is optional and scoped to Category.
	Subcategory string

	// Confidence is the normalized match strength in [0,1].
	Confidence float64

	// Tier records which tier produced the result.
	Tier ClassificationTier
}

// ClassifierInput carries the text and metadata evaluated by the
// classifier. Path segments participate in rule matching alongside
// title and author.
type ClassifierInput struct {
	Title  string
	Author string
	Path   string
	Text   string
}
