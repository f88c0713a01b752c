package mapper

import (
	"strings"

	"github.com/bluejay-tic/certdiscovery/categorize"
	"github.com/bluejay-tic/certdiscovery/models"
)

// maxSearchTerms caps how many terms a query expands into.
const maxSearchTerms = 10

// commonTerms are always worth searching for on a certification site.
var commonTerms = []string{"certification", "license", "apply", "requirements"}

// SearchTerms expands a query into the search terms used to narrow the map
// pass: the certification name and its significant words, the issuing
// body's acronyms and distinctive words, the region, and a few terms every
// certification site shares. Order reflects specificity; the full name
// comes first.
func SearchTerms(query *models.CertificationQuery) []string {
	if query == nil {
		return nil
	}

	terms := make([]string, 0, maxSearchTerms)
	seen := make(map[string]struct{}, maxSearchTerms)
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || len(terms) >= maxSearchTerms {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	add(query.Name)
	for _, word := range strings.Fields(query.Name) {
		if len(word) > 2 {
			add(word)
		}
	}
	for _, acronym := range categorize.Acronyms(query.IssuingBody) {
		add(acronym)
	}
	for _, word := range categorize.LongWords(query.IssuingBody) {
		add(word)
	}
	add(query.Region)
	for _, term := range commonTerms {
		add(term)
	}
	return terms
}
