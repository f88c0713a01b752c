// Package quality computes the weighted composite quality assessment for a
// discovery run.
package quality

import (
	"fmt"
	"net/url"
	"time"

	"github.com/bluejay-tic/certdiscovery/categorize"
	"github.com/bluejay-tic/certdiscovery/models"
)

// Weights distributes the four sub-scores into the overall score. They must
// sum to 1.
type Weights struct {
	Relevance     float64
	Completeness  float64
	Freshness     float64
	Accessibility float64
}

// DefaultWeights returns the calibrated weight split.
func DefaultWeights() Weights {
	return Weights{
		Relevance:     0.35,
		Completeness:  0.30,
		Freshness:     0.20,
		Accessibility: 0.15,
	}
}

const (
	// minBodyRunes is the body length below which a page does not count as
	// a content-quality indicator for completeness.
	minBodyRunes = 100

	// neutralFreshness is assigned when a page carries no usable timestamp.
	neutralFreshness = 50

	// structuralBonus rewards a structure built from a successful,
	// non-degraded crawl.
	structuralBonus = 10

	weakThreshold   = 50
	strongThreshold = 85
)

// Scorer assesses categorized discovery output.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// Option customizes a Scorer.
type Option func(*Scorer)

// WithWeights overrides the sub-score weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithClock injects the time source used for freshness tiers.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScorer builds a Scorer with the default weights.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		weights: DefaultWeights(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assess computes the four sub-scores, the weighted overall score, and the
// rule-based insights. It never fails: missing inputs score 0.
func (s *Scorer) Assess(structure *models.WebsiteStructure, content map[models.Category][]*models.DiscoveredPage, query models.CertificationQuery) *models.QualityAssessment {
	a := &models.QualityAssessment{
		Relevance:     s.relevance(content, query),
		Completeness:  s.completeness(content),
		Freshness:     s.freshness(content),
		Accessibility: s.accessibility(structure, content),
		Coverage:      s.coverage(content),
		Depth:         s.depth(content),
	}
	a.Overall = clamp(a.Relevance*s.weights.Relevance +
		a.Completeness*s.weights.Completeness +
		a.Freshness*s.weights.Freshness +
		a.Accessibility*s.weights.Accessibility)

	s.annotate(a, structure, content)
	return a
}

// relevance averages per-page certification relevance within each category
// first, then across categories, so a populous category cannot dominate.
func (s *Scorer) relevance(content map[models.Category][]*models.DiscoveredPage, query models.CertificationQuery) float64 {
	total := 0.0
	categories := 0
	for _, category := range models.Categories() {
		pages := content[category]
		if len(pages) == 0 {
			continue
		}
		sum := 0.0
		for _, page := range pages {
			sum += categorize.RelevancePercent(categorize.PageText(page), query)
		}
		total += sum / float64(len(pages))
		categories++
	}
	if categories == 0 {
		return 0
	}
	return clamp(total / float64(categories))
}

// completeness grants an equal share per expected category that has at
// least one page with a content-quality indicator.
func (s *Scorer) completeness(content map[models.Category][]*models.DiscoveredPage) float64 {
	expected := models.Categories()
	share := 100.0 / float64(len(expected))
	total := 0.0
	for _, category := range expected {
		if hasQualityIndicator(content[category]) {
			total += share
		}
	}
	return clamp(total)
}

func hasQualityIndicator(pages []*models.DiscoveredPage) bool {
	for _, page := range pages {
		if len([]rune(page.Markdown)) >= minBodyRunes || len(page.Metadata) > 0 {
			return true
		}
	}
	return false
}

// freshness tiers each page by extraction recency; pages without a
// timestamp score the neutral mid-value.
func (s *Scorer) freshness(content map[models.Category][]*models.DiscoveredPage) float64 {
	total := 0.0
	pages := 0
	now := s.now()
	for _, list := range content {
		for _, page := range list {
			total += pageFreshness(page, now)
			pages++
		}
	}
	if pages == 0 {
		return 0
	}
	return clamp(total / float64(pages))
}

func pageFreshness(page *models.DiscoveredPage, now time.Time) float64 {
	if page.FetchedAt.IsZero() {
		return neutralFreshness
	}
	age := now.Sub(page.FetchedAt)
	switch {
	case age <= 24*time.Hour:
		return 100
	case age <= 7*24*time.Hour:
		return 90
	case age <= 30*24*time.Hour:
		return 80
	case age <= 90*24*time.Hour:
		return 70
	case age <= 365*24*time.Hour:
		return 60
	default:
		return 50
	}
}

// accessibility combines the HTTPS fraction, non-empty content fraction,
// and metadata completeness fraction, plus a structural bonus when the
// structure came from a successful crawl.
func (s *Scorer) accessibility(structure *models.WebsiteStructure, content map[models.Category][]*models.DiscoveredPage) float64 {
	https, withContent, withMetadata, pages := 0, 0, 0, 0
	for _, list := range content {
		for _, page := range list {
			pages++
			if parsed, err := url.Parse(page.URL); err == nil && parsed.Scheme == "https" {
				https++
			}
			if page.HasContent() {
				withContent++
			}
			if page.Title != "" && len(page.Metadata) > 0 {
				withMetadata++
			}
		}
	}
	if pages == 0 {
		return 0
	}

	n := float64(pages)
	score := float64(https)/n*40 + float64(withContent)/n*30 + float64(withMetadata)/n*20
	if structure != nil && !structure.Degraded {
		score += structuralBonus
	}
	return clamp(score)
}

func (s *Scorer) coverage(content map[models.Category][]*models.DiscoveredPage) float64 {
	expected := models.Categories()
	found := 0
	for _, category := range expected {
		if len(content[category]) > 0 {
			found++
		}
	}
	return float64(found) / float64(len(expected)) * 100
}

// depth scores how richly populated the present categories are.
func (s *Scorer) depth(content map[models.Category][]*models.DiscoveredPage) float64 {
	total := 0.0
	categories := 0
	for _, category := range models.Categories() {
		pages := content[category]
		if len(pages) == 0 {
			continue
		}
		categories++
		switch {
		case len(pages) >= 5:
			total += 100
		case len(pages) >= 3:
			total += 80
		case len(pages) >= 2:
			total += 60
		default:
			total += 40
		}
	}
	if categories == 0 {
		return 0
	}
	return total / float64(categories)
}

// annotate derives the rule-based insights and recommendations. The rules
// are deterministic given the numeric inputs.
func (s *Scorer) annotate(a *models.QualityAssessment, structure *models.WebsiteStructure, content map[models.Category][]*models.DiscoveredPage) {
	subs := []struct {
		name           string
		score          float64
		weakness       string
		recommendation string
		strength       string
	}{
		{
			name:           "relevance",
			score:          a.Relevance,
			weakness:       "discovered content aligns poorly with the certification",
			recommendation: "Review and refine search terms and categorization for better relevance",
			strength:       "discovered content aligns strongly with the certification",
		},
		{
			name:           "completeness",
			score:          a.Completeness,
			weakness:       "several expected content categories are missing or thin",
			recommendation: "Increase crawl depth and page limits to discover missing content categories",
			strength:       "all expected content categories are well populated",
		},
		{
			name:           "freshness",
			score:          a.Freshness,
			weakness:       "extracted content carries little recency signal",
			recommendation: "Re-run discovery regularly to keep extracted content fresh",
			strength:       "extracted content is recent",
		},
		{
			name:           "accessibility",
			score:          a.Accessibility,
			weakness:       "pages are hard to reach or missing content and metadata",
			recommendation: "Check for website access restrictions or technical issues",
			strength:       "pages are reachable with complete content and metadata",
		},
	}

	for _, sub := range subs {
		if sub.score < weakThreshold {
			a.Insights.Weaknesses = append(a.Insights.Weaknesses,
				fmt.Sprintf("Low %s score (%.1f): %s", sub.name, sub.score, sub.weakness))
			a.Recommendations = append(a.Recommendations, sub.recommendation)
		}
		if sub.score > strongThreshold {
			a.Insights.Strengths = append(a.Insights.Strengths,
				fmt.Sprintf("High %s score (%.1f): %s", sub.name, sub.score, sub.strength))
		}
	}

	for _, category := range models.Categories() {
		if len(content[category]) == 0 {
			a.Insights.Opportunities = append(a.Insights.Opportunities,
				fmt.Sprintf("No pages found for %s; targeted mapping may surface them", category))
		}
	}

	if structure != nil && structure.Degraded {
		a.Insights.Threats = append(a.Insights.Threats,
			"Structure was built from map results only after a failed crawl; coverage may be incomplete")
	}
	if totalPages(content) == 0 {
		a.Insights.Threats = append(a.Insights.Threats,
			"No content extracted; the website may have changed or blocked access")
	}
}

func totalPages(content map[models.Category][]*models.DiscoveredPage) int {
	total := 0
	for _, pages := range content {
		total += len(pages)
	}
	return total
}

// Validate ensures the weights form a proper distribution.
func (w Weights) Validate() error {
	sum := w.Relevance + w.Completeness + w.Freshness + w.Accessibility
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("quality weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
