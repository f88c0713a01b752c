package categorize

import (
	"regexp"
	"strings"

	"github.com/bluejay-tic/certdiscovery/models"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	acronymPattern    = regexp.MustCompile(`\b[A-Z]{2,}\b`)
	wordPattern       = regexp.MustCompile(`\b\w{4,}\b`)
)

// genericBodyWords are institution nouns too common to signal relevance.
var genericBodyWords = map[string]struct{}{
	"authority":      {},
	"administration": {},
	"department":     {},
	"ministry":       {},
	"agency":         {},
}

// PageText assembles the analyzable text for a page: title, description,
// body, and extraction metadata, normalized to lowercase with collapsed
// whitespace.
func PageText(page *models.DiscoveredPage) string {
	parts := make([]string, 0, 6)
	if page.Title != "" {
		parts = append(parts, page.Title)
	}
	if page.Description != "" {
		parts = append(parts, page.Description)
	}
	if page.Markdown != "" {
		parts = append(parts, page.Markdown)
	}
	if page.HTML != "" {
		parts = append(parts, StripTags(page.HTML))
	}
	if title, ok := page.Metadata["title"]; ok {
		parts = append(parts, title)
	}
	if description, ok := page.Metadata["description"]; ok {
		parts = append(parts, description)
	}
	return normalize(strings.Join(parts, " "))
}

// StripTags removes HTML markup, leaving the text content.
func StripTags(html string) string {
	return tagPattern.ReplaceAllString(html, " ")
}

// Acronyms extracts all-caps tokens of two or more letters, e.g. "OSHA"
// from "Occupational Safety and Health Administration (OSHA)".
func Acronyms(s string) []string {
	return acronymPattern.FindAllString(s, -1)
}

// LongWords extracts words of four or more characters, skipping generic
// institution nouns that carry no relevance signal.
func LongWords(s string) []string {
	words := wordPattern.FindAllString(s, -1)
	out := words[:0]
	for _, word := range words {
		if _, generic := genericBodyWords[strings.ToLower(word)]; generic {
			continue
		}
		out = append(out, word)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " ")))
}

func contains(text, token string) bool {
	if token == "" {
		return false
	}
	return strings.Contains(text, token)
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if contains(text, token) {
			return true
		}
	}
	return false
}
