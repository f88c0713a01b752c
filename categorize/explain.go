package categorize

import "github.com/bluejay-tic/certdiscovery/models"

// Explanation reports the raw scoring basis behind a categorization
// decision. It is diagnostic only and never alters the outcome.
type Explanation struct {
	Winner     models.Category         `json:"winner"`
	Confidence float64                 `json:"confidence"`
	Scores     map[models.Category]int `json:"scores"`
	TextLength int                     `json:"text_length"`

	PatternHits map[models.Category]int `json:"pattern_hits"`
	KeywordHits map[models.Category]int `json:"keyword_hits"`
	URLHits     map[models.Category]int `json:"url_hits"`
	TitleHits   map[models.Category]int `json:"title_hits"`
	Relevance   int                     `json:"relevance"`
	TypeScore   int                     `json:"type_score"`
}

// Explain recomputes the per-category signal counts for a page so the
// decision can be inspected in tests and debugging sessions.
func (c *Categorizer) Explain(page *models.DiscoveredPage, query models.CertificationQuery) Explanation {
	text := PageText(page)
	urlPath := normalize(page.URL)
	title := normalize(page.Title)

	e := Explanation{
		Scores:      c.score(page, query),
		TextLength:  len(text),
		PatternHits: make(map[models.Category]int, len(profiles)),
		KeywordHits: make(map[models.Category]int, len(profiles)),
		URLHits:     make(map[models.Category]int, len(profiles)),
		TitleHits:   make(map[models.Category]int, len(profiles)),
		Relevance:   RelevanceScore(text, query),
	}
	for _, group := range typeIndicators {
		if containsAny(text, group.tokens) {
			e.TypeScore += group.weight
		}
	}
	for _, p := range profiles {
		for _, pattern := range p.patterns {
			if pattern.MatchString(text) {
				e.PatternHits[p.category]++
			}
			if pattern.MatchString(urlPath) {
				e.URLHits[p.category]++
			}
			if pattern.MatchString(title) {
				e.TitleHits[p.category]++
			}
		}
		for _, keyword := range p.keywords {
			if contains(text, keyword) {
				e.KeywordHits[p.category]++
			}
		}
	}
	e.Winner, e.Confidence = c.decide(e.Scores)
	return e
}
