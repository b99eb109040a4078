package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

// fakeEmbedder returns a fixed vector per recognised term so cosine
// similarities are predictable in tests.
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	return embedText(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedText(t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int   { return 3 }
func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Close() error      { return nil }

// embedText maps text to a 3-dimensional vector along crude topic
// axes. Text touching none of the axes embeds to the zero vector, so
// its similarity against every label is zero.
func embedText(text string) []float32 {
	lower := strings.ToLower(text)
	vec := []float32{0, 0, 0}
	if strings.Contains(lower, "physics") || strings.Contains(lower, "science") {
		vec[0] = 1
	}
	if strings.Contains(lower, "finance") || strings.Contains(lower, "business") {
		vec[1] = 1
	}
	if strings.Contains(lower, "history") || strings.Contains(lower, "literature") {
		vec[2] = 1
	}
	return vec
}

func testTable(t *testing.T) *RuleTable {
	t.Helper()
	table, err := DefaultRules()
	require.NoError(t, err)
	return table
}

func TestDefaultRules(t *testing.T) {
	table := testTable(t)
	require.NotEmpty(t, table.Categories)
	assert.Equal(t, "Programming", table.Categories[0].Name)
	for _, cat := range table.Categories {
		assert.NotEmpty(t, cat.Description, "category %s needs a description for the fallback tier", cat.Name)
		assert.NotEmpty(t, cat.Subcategories)
	}
}

func TestLoadRules_Invalid(t *testing.T) {
	_, err := LoadRules([]byte("categories: []"))
	assert.Error(t, err)

	_, err = LoadRules([]byte("categories:\n  - name: X\n    subcategories:\n      - name: Y\n        patterns: ['[']\n"))
	assert.Error(t, err)
}

func TestClassify_RuleTier(t *testing.T) {
	c := New(testTable(t), nil, Config{RuleMinScore: 3, MLFloor: 0.3})

	result, err := c.Classify(context.Background(), domain.ClassifierInput{
		Title: "Fluent Python",
		Text:  "Learn python the pythonic way. Covers django and flask web frameworks, pandas for data work.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Programming", result.Category)
	assert.Equal(t, "Python", result.Subcategory)
	assert.Equal(t, domain.TierRuled, result.Tier)
	assert.Greater(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
}

func TestClassify_PathSegmentsMatch(t *testing.T) {
	c := New(testTable(t), nil, Config{RuleMinScore: 3, MLFloor: 0.3})

	result, err := c.Classify(context.Background(), domain.ClassifierInput{
		Title: "Untitled Scan 0042",
		Path:  "/library/docker/kubernetes/devops-handbook.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "Programming", result.Category)
	assert.Equal(t, "DevOps", result.Subcategory)
}

func TestClassify_Deterministic(t *testing.T) {
	c := New(testTable(t), nil, Config{RuleMinScore: 3, MLFloor: 0.3})
	input := domain.ClassifierInput{
		Title: "Machine Learning Yearning",
		Text:  "machine learning deep learning neural network tensorflow",
	}

	first, err := c.Classify(context.Background(), input)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.Classify(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestClassify_TieBreaksToFirstDeclared(t *testing.T) {
	rules := `
categories:
  - name: First
    description: first category
    subcategories:
      - name: A
        keywords: [shared]
  - name: Second
    description: second category
    subcategories:
      - name: B
        keywords: [shared]
`
	table, err := LoadRules([]byte(rules))
	require.NoError(t, err)

	c := New(table, nil, Config{RuleMinScore: 1})
	result, err := c.Classify(context.Background(), domain.ClassifierInput{
		Text: "shared shared shared",
	})
	require.NoError(t, err)
	assert.Equal(t, "First", result.Category)
}

func TestClassify_OccurrenceCap(t *testing.T) {
	rules := `
categories:
  - name: Spam
    description: spam
    subcategories:
      - name: Only
        keywords: [repeat]
`
	table, err := LoadRules([]byte(rules))
	require.NoError(t, err)

	// 100 occurrences, but the cap limits the score to 5, below the
	// threshold of 6.
	c := New(table, nil, Config{RuleMinScore: 6})
	result, err := c.Classify(context.Background(), domain.ClassifierInput{
		Text: strings.Repeat("repeat ", 100),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Uncategorized, result.Category)
}

func TestClassify_MLFallback(t *testing.T) {
	embedder := &fakeEmbedder{}
	c := New(testTable(t), embedder, Config{RuleMinScore: 3, MLFloor: 0.3})

	// No rule keywords present; the text aligns with the Science axis.
	result, err := c.Classify(context.Background(), domain.ClassifierInput{
		Title: "A Brief Treatise",
		Text:  "an exploration of physics and the natural world",
	})
	require.NoError(t, err)

	assert.Equal(t, "Science", result.Category)
	assert.Equal(t, domain.TierMLFallback, result.Tier)
	assert.GreaterOrEqual(t, result.Confidence, 0.3)
}

func TestClassify_MLBelowFloorIsUncategorized(t *testing.T) {
	embedder := &fakeEmbedder{}
	c := New(testTable(t), embedder, Config{RuleMinScore: 3, MLFloor: 0.99})

	result, err := c.Classify(context.Background(), domain.ClassifierInput{
		Text: "wholly unrelated mumbling about nothing in particular",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Uncategorized, result.Category)
	assert.Equal(t, domain.TierUncategorized, result.Tier)
	assert.Zero(t, result.Confidence)
}

func TestClassify_EmbedderErrorFallsBackToUncategorized(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("connection refused")}
	c := New(testTable(t), embedder, Config{RuleMinScore: 3, MLFloor: 0.3})

	result, err := c.Classify(context.Background(), domain.ClassifierInput{
		Text: "no keywords here",
	})
	require.NoError(t, err, "fallback failure must not be fatal")
	assert.Equal(t, domain.Uncategorized, result.Category)
}

func TestClassify_NoEmbedderSkipsFallback(t *testing.T) {
	c := New(testTable(t), nil, Config{RuleMinScore: 3, MLFloor: 0.3})

	result, err := c.Classify(context.Background(), domain.ClassifierInput{
		Text: "nothing matching any rule",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Uncategorized, result.Category)
	assert.Equal(t, domain.TierUncategorized, result.Tier)
}

func TestClipKeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("汉字", 2000) // three bytes per rune

	for _, limit := range []int{mlExcerptLength, excerptLength, 10, 11} {
		out := clip(s, limit)
		assert.True(t, utf8.ValidString(out), "limit %d split a rune", limit)
		assert.LessOrEqual(t, len(out), limit)
	}
	assert.Equal(t, s, clip(s, len(s)))
}

func TestClassify_LabelEmbeddingsComputedOnce(t *testing.T) {
	embedder := &fakeEmbedder{}
	c := New(testTable(t), embedder, Config{RuleMinScore: 3, MLFloor: 0.1})

	input := domain.ClassifierInput{Text: "physics physics but not a keyword match for rules"}
	_, err := c.Classify(context.Background(), input)
	require.NoError(t, err)
	callsAfterFirst := embedder.calls

	_, err = c.Classify(context.Background(), input)
	require.NoError(t, err)

	// Second call embeds only the document, not the label set again.
	assert.Equal(t, callsAfterFirst+1, embedder.calls)
}
