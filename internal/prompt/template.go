package prompt

import (
	"hash/fnv"
	"strings"

	"easel/internal/config"
	"easel/internal/services"
)

// fallbackDescription seeds a prompt when neither the vision model nor the
// caption produced usable text.
const fallbackDescription = "an abstract digital composition with flowing geometric forms"

// Template turns an image description into a branded generation prompt. The
// transform is deterministic: the same description and brand settings always
// produce the same prompt.
type Template struct {
	brand config.Brand
}

func New(brand config.Brand) (*Template, error) {
	if strings.TrimSpace(brand.BaseStyle) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "prompting", "new template", "brand base_style is empty", nil)
	}
	return &Template{brand: brand}, nil
}

// Build composes the final prompt from the description, the brand base
// style, and one theme picked deterministically from the description text.
func (t *Template) Build(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		description = fallbackDescription
	}
	parts := []string{
		"a reimagined artwork inspired by " + description,
		t.brand.BaseStyle,
	}
	if theme := t.pickTheme(description); theme != "" {
		parts = append(parts, theme)
	}
	parts = append(parts, "highly detailed digital art")
	return strings.Join(parts, ", ")
}

// Negative joins the brand's negative terms for models that accept a
// negative prompt. Empty when no terms are configured.
func (t *Template) Negative() string {
	terms := make([]string, 0, len(t.brand.NegativeTerms))
	for _, term := range t.brand.NegativeTerms {
		term = strings.TrimSpace(term)
		if term != "" {
			terms = append(terms, term)
		}
	}
	return strings.Join(terms, ", ")
}

// pickTheme hashes the description so a given source image always lands on
// the same theme while the catalog still spreads across the theme list.
func (t *Template) pickTheme(description string) string {
	if len(t.brand.Themes) == 0 {
		return ""
	}
	h := fnv.New32a()
	h.Write([]byte(description))
	return strings.TrimSpace(t.brand.Themes[int(h.Sum32())%len(t.brand.Themes)])
}
