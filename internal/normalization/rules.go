package normalization

import (
	"fmt"
	"strings"

	"customer-segment-lab/internal/domain"
)

// CategoryRule maps any of its keywords to a category.
type CategoryRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// CategoryRules is an ordered keyword table. The first rule with a keyword
// contained in the product name or URL wins.
type CategoryRules struct {
	rules []CategoryRule
}

// DefaultRules returns the built-in category table.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{Category: "electronics", Keywords: []string{"electronics", "tech", "computer", "phone"}},
		{Category: "groceries", Keywords: []string{"grocery", "mart", "food", "market"}},
		{Category: "fashion", Keywords: []string{"fashion", "clothing", "apparel", "boutique"}},
		{Category: "home", Keywords: []string{"home", "furnish", "decor", "garden"}},
		{Category: "dining", Keywords: []string{"restaurant", "cafe", "dining"}},
		{Category: "health", Keywords: []string{"pharmacy", "drug", "health"}},
		{Category: "travel", Keywords: []string{"travel", "airline", "hotel"}},
		{Category: "entertainment", Keywords: []string{"entertainment", "movie", "game"}},
	}
}

// NewCategoryRules validates and lowercases a rule table.
func NewCategoryRules(rules []CategoryRule) (*CategoryRules, error) {
	out := make([]CategoryRule, 0, len(rules))
	for i, r := range rules {
		category := strings.ToLower(strings.TrimSpace(r.Category))
		if category == "" {
			return nil, fmt.Errorf("category rule %d: empty category", i)
		}
		var keywords []string
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("category rule %q: no keywords", category)
		}
		out = append(out, CategoryRule{Category: category, Keywords: keywords})
	}
	return &CategoryRules{rules: out}, nil
}

// MustDefaultCategoryRules returns the built-in table.
func MustDefaultCategoryRules() *CategoryRules {
	r, err := NewCategoryRules(DefaultRules())
	if err != nil {
		panic(err)
	}
	return r
}

// Categorize returns the category for a product sold at url.
func (c *CategoryRules) Categorize(productName, url string) string {
	text := strings.ToLower(productName + " " + url)
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(text, k) {
				return r.Category
			}
		}
	}
	return domain.CategoryOther
}

// Categories lists every category the table can produce, in rule order, followed by "other".
func (c *CategoryRules) Categories() []string {
	out := make([]string, 0, len(c.rules)+1)
	seen := make(map[string]bool)
	for _, r := range c.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	if !seen[domain.CategoryOther] {
		out = append(out, domain.CategoryOther)
	}
	return out
}
