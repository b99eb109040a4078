// Package classify assigns categories to documents using a two-tier
// strategy: a deterministic weighted-keyword rule table, then an
// embedding-similarity fallback for documents no rule recognises.
package classify

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// occurrenceCap bounds how often a single keyword can score, so one
// repeated term cannot dominate a document's classification.
const occurrenceCap = 5

// Subcategory is one weighted matcher set within a category.
type Subcategory struct {
	Name string `yaml:"name"`

	// Keywords are matched literally, case-insensitive.
	Keywords []string `yaml:"keywords"`

	// Patterns are matched as regular expressions.
	Patterns []string `yaml:"patterns,omitempty"`

	// Weight scales every match for this subcategory. Defaults to 1.
	Weight float64 `yaml:"weight,omitempty"`

	compiled []*regexp.Regexp
}

// Category is a rule table entry. Declaration order is significant:
// score ties resolve to the first-declared category.
type Category struct {
	Name string `yaml:"name"`

	// Description is the natural-language label embedded for the
	// similarity fallback tier.
	Description string `yaml:"description"`

	Subcategories []Subcategory `yaml:"subcategories"`
}

// RuleTable is the static classification rule set. Loaded once at
// startup and immutable thereafter.
type RuleTable struct {
	Categories []Category `yaml:"categories"`
}

// LoadRules parses a YAML rule table and compiles its patterns.
func LoadRules(data []byte) (*RuleTable, error) {
	var table RuleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("classify: parsing rules: %w", err)
	}
	if len(table.Categories) == 0 {
		return nil, fmt.Errorf("classify: rule table has no categories")
	}

	for ci := range table.Categories {
		cat := &table.Categories[ci]
		if cat.Name == "" {
			return nil, fmt.Errorf("classify: category %d has no name", ci)
		}
		for si := range cat.Subcategories {
			sub := &cat.Subcategories[si]
			if sub.Weight == 0 {
				sub.Weight = 1
			}
			for _, p := range sub.Patterns {
				re, err := regexp.Compile("(?i)" + p)
				if err != nil {
					return nil, fmt.Errorf("classify: pattern %q in %s/%s: %w",
						p, cat.Name, sub.Name, err)
				}
				sub.compiled = append(sub.compiled, re)
			}
		}
	}

	return &table, nil
}

// DefaultRules loads the rule table embedded in the binary.
func DefaultRules() (*RuleTable, error) {
	return LoadRules(defaultRulesYAML)
}

// maxScore returns the highest score this subcategory can produce,
// used to normalise confidence.
func (s *Subcategory) maxScore() float64 {
	return s.Weight * occurrenceCap * float64(len(s.Keywords)+len(s.compiled))
}
