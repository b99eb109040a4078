package classify

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
	"github.com/yexubai/BookBrain/internal/logger"
)

// Ensure Classifier implements the interface.
var _ driven.Classifier = (*Classifier)(nil)

// excerptLength is how much document text participates in matching.
// Keywords relevant to a book's subject cluster at the front matter.
const excerptLength = 5000

// mlExcerptLength is how much text is embedded by the fallback tier.
const mlExcerptLength = 1000

// Config holds classifier thresholds.
type Config struct {
	// RuleMinScore is the minimum weighted score for the rule tier to
	// produce a match.
	RuleMinScore float64

	// MLFloor is the minimum cosine similarity for the fallback tier.
	MLFloor float64
}

// Classifier is the two-tier document classifier. The rule tier is
// cheap, deterministic and auditable; the similarity tier is a costly,
// lower-precision safety net, invoked only on rule-tier misses.
type Classifier struct {
	table    *RuleTable
	embedder driven.EmbeddingService // nil disables the fallback tier
	cfg      Config

	// Label embeddings are computed lazily on the first fallback and
	// cached for the classifier's lifetime.
	labelOnce sync.Once
	labelErr  error
	labels    []label
}

// label pairs a category/subcategory with its description embedding.
type label struct {
	category    string
	subcategory string
	vector      []float32
}

// New creates a classifier over the given rule table. The embedding
// service may be nil, in which case rule misses go straight to
// Uncategorized.
func New(table *RuleTable, embedder driven.EmbeddingService, cfg Config) *Classifier {
	return &Classifier{table: table, embedder: embedder, cfg: cfg}
}

// Classify evaluates the rule tier first and falls back to embedding
// similarity when no rule clears the minimum score.
func (c *Classifier) Classify(ctx context.Context, input domain.ClassifierInput) (*domain.Classification, error) {
	if result := c.ruleClassify(input); result != nil {
		logger.Debug("Rule-classified %q as %s/%s (%.2f)",
			input.Title, result.Category, result.Subcategory, result.Confidence)
		return result, nil
	}

	if c.embedder != nil {
		result, err := c.mlClassify(ctx, input)
		if err != nil {
			// A fallback-tier failure is never fatal: the document
			// lands in Uncategorized instead.
			logger.Warn("Similarity classification failed for %q: %v", input.Title, err)
		} else if result != nil {
			logger.Debug("Similarity-classified %q as %s/%s (%.2f)",
				input.Title, result.Category, result.Subcategory, result.Confidence)
			return result, nil
		}
	}

	return &domain.Classification{
		Category: domain.Uncategorized,
		Tier:     domain.TierUncategorized,
	}, nil
}

// ruleClassify scores every (category, subcategory) matcher set against
// the document and returns the best match above the threshold, or nil.
// Ties resolve to the first-declared entry for reproducibility.
func (c *Classifier) ruleClassify(input domain.ClassifierInput) *domain.Classification {
	excerpt := clip(input.Text, excerptLength)
	haystack := strings.ToLower(
		input.Title + " " + input.Author + " " + input.Path + " " + excerpt)

	var (
		best      *domain.Classification
		bestScore float64
	)

	for _, cat := range c.table.Categories {
		for _, sub := range cat.Subcategories {
			score := scoreSubcategory(&sub, haystack)
			if score <= bestScore {
				continue // strict inequality keeps first-declared on ties
			}
			bestScore = score
			confidence := 1.0
			if maxScore := sub.maxScore(); maxScore > 0 && score < maxScore {
				confidence = score / maxScore
			}
			best = &domain.Classification{
				Category:    cat.Name,
				Subcategory: sub.Name,
				Confidence:  confidence,
				Tier:        domain.TierRuled,
			}
		}
	}

	if best == nil || bestScore < c.cfg.RuleMinScore {
		return nil
	}
	return best
}

// scoreSubcategory counts weighted matcher occurrences in the haystack.
func scoreSubcategory(sub *Subcategory, haystack string) float64 {
	var score float64
	for _, kw := range sub.Keywords {
		count := strings.Count(haystack, strings.ToLower(kw))
		if count > occurrenceCap {
			count = occurrenceCap
		}
		score += sub.Weight * float64(count)
	}
	for _, re := range sub.compiled {
		count := len(re.FindAllStringIndex(haystack, occurrenceCap))
		score += sub.Weight * float64(count)
	}
	return score
}

// mlClassify embeds the document text and picks the category label with
// the highest cosine similarity. Below the floor threshold it returns
// nil and the caller assigns Uncategorized.
func (c *Classifier) mlClassify(ctx context.Context, input domain.ClassifierInput) (*domain.Classification, error) {
	if err := c.ensureLabels(ctx); err != nil {
		return nil, err
	}

	text := clip(input.Title+" "+input.Author+" "+input.Text, mlExcerptLength)

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding document text: %w", err)
	}

	var (
		best     *label
		bestSim  float64
		haveBest bool
	)
	for i := range c.labels {
		sim := cosine(vec, c.labels[i].vector)
		if !haveBest || sim > bestSim {
			best, bestSim, haveBest = &c.labels[i], sim, true
		}
	}

	if !haveBest || bestSim < c.cfg.MLFloor {
		return nil, nil
	}

	return &domain.Classification{
		Category:    best.category,
		Subcategory: best.subcategory,
		Confidence:  bestSim,
		Tier:        domain.TierMLFallback,
	}, nil
}

// ensureLabels computes the label embeddings exactly once. Each label
// text combines the category description with the subcategory name so
// that "Data Science / NLP" and "Data Science / Statistics" separate.
func (c *Classifier) ensureLabels(ctx context.Context) error {
	c.labelOnce.Do(func() {
		var texts []string
		var labels []label
		for _, cat := range c.table.Categories {
			for _, sub := range cat.Subcategories {
				texts = append(texts, cat.Name+" / "+sub.Name+". "+cat.Description)
				labels = append(labels, label{category: cat.Name, subcategory: sub.Name})
			}
		}

		logger.Debug("Embedding %d classification labels", len(texts))
		vectors, err := c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			c.labelErr = fmt.Errorf("embedding labels: %w", err)
			return
		}
		if len(vectors) != len(labels) {
			c.labelErr = fmt.Errorf("embedding labels: got %d vectors for %d labels",
				len(vectors), len(labels))
			return
		}
		for i := range labels {
			labels[i].vector = vectors[i]
		}
		c.labels = labels
	})
	return c.labelErr
}

// clip caps s at limit bytes, backing up so a multi-byte rune is
// never split.
func clip(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// cosine computes cosine similarity between two vectors.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
