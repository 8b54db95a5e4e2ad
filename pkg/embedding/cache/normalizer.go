package cache

import (
	"regexp"
	"strings"
)

// TextNormalizer preprocesses source text so that trivially different
// spellings of the same input share a cache identity.
type TextNormalizer interface {
	Normalize(text string) string
}

// DefaultTextNormalizer lower-cases, trims, and collapses internal
// whitespace. It deliberately does not strip punctuation or stop words:
// embedding inputs are full phrases and dropping tokens would change
// what the provider was actually asked to embed.
type DefaultTextNormalizer struct {
	whitespaceRegex *regexp.Regexp
}

// NewTextNormalizer creates the default normalizer.
func NewTextNormalizer() TextNormalizer {
	return &DefaultTextNormalizer{
		whitespaceRegex: regexp.MustCompile(`\s+`),
	}
}

// Normalize returns the canonical form of the text.
func (n *DefaultTextNormalizer) Normalize(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	return n.whitespaceRegex.ReplaceAllString(normalized, " ")
}
