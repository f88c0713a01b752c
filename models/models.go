// Package models defines the data structures shared across the discovery
// pipeline.
package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// CertificationQuery describes the certification a discovery run targets.
// It is immutable input; Validate is called once at orchestration start.
type CertificationQuery struct {
	Name         string `json:"name"`
	IssuingBody  string `json:"issuing_body"`
	Region       string `json:"region"`
	OfficialLink string `json:"official_link"`
}

// Validate ensures the descriptor carries everything discovery needs.
func (q CertificationQuery) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return fmt.Errorf("certification name cannot be empty")
	}
	if strings.TrimSpace(q.IssuingBody) == "" {
		return fmt.Errorf("issuing body cannot be empty")
	}
	if strings.TrimSpace(q.Region) == "" {
		return fmt.Errorf("region cannot be empty")
	}
	if strings.TrimSpace(q.OfficialLink) == "" {
		return fmt.Errorf("official link cannot be empty")
	}
	parsed, err := url.Parse(q.OfficialLink)
	if err != nil {
		return fmt.Errorf("invalid official link: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("official link must include a host")
	}
	return nil
}

// DiscoveredPage is a single page found during structure discovery. Content
// fields are filled during extraction; Category and Confidence only after
// categorization.
type DiscoveredPage struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Markdown    string            `json:"markdown,omitempty"`
	HTML        string            `json:"html,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	FetchedAt   time.Time         `json:"fetched_at,omitzero"`
	Category    Category          `json:"category,omitempty"`
	Confidence  float64           `json:"confidence,omitempty"`
}

const excerptRunes = 200

// Excerpt returns the first portion of the page body for export summaries.
func (p *DiscoveredPage) Excerpt() string {
	body := p.Markdown
	if body == "" {
		body = p.Description
	}
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= excerptRunes {
		return body
	}
	return string(runes[:excerptRunes]) + "..."
}

// HasContent reports whether extraction produced a non-trivial body.
func (p *DiscoveredPage) HasContent() bool {
	return strings.TrimSpace(p.Markdown) != "" || strings.TrimSpace(p.HTML) != ""
}

// WebsiteStructure is the deduplicated page inventory for one site.
type WebsiteStructure struct {
	OfficialURL     string                `json:"official_url"`
	Domain          string                `json:"domain"`
	TotalPages      int                   `json:"total_pages"`
	Pages           []*DiscoveredPage     `json:"pages"`
	PagesByCategory map[Category][]string `json:"pages_by_category,omitempty"`

	// Degraded is set when the crawl phase failed and the structure was
	// built from map results only.
	Degraded bool `json:"degraded,omitempty"`
}

// Validate checks the structure invariants: the page count matches the
// deduplicated list and every categorized URL exists in the page list.
func (s *WebsiteStructure) Validate() error {
	if s.TotalPages != len(s.Pages) {
		return fmt.Errorf("total_pages %d does not match page list length %d", s.TotalPages, len(s.Pages))
	}
	known := make(map[string]struct{}, len(s.Pages))
	for _, p := range s.Pages {
		known[p.URL] = struct{}{}
	}
	for category, urls := range s.PagesByCategory {
		for _, u := range urls {
			if _, ok := known[u]; !ok {
				return fmt.Errorf("category %s references unknown url %s", category, u)
			}
		}
	}
	return nil
}

// Insights groups the rule-generated quality observations.
type Insights struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// QualityAssessment is the weighted composite quality view of one run.
// All scores are on a 0-100 scale.
type QualityAssessment struct {
	Relevance       float64  `json:"relevance"`
	Completeness    float64  `json:"completeness"`
	Freshness       float64  `json:"freshness"`
	Accessibility   float64  `json:"accessibility"`
	Overall         float64  `json:"overall"`
	Coverage        float64  `json:"coverage_percentage"`
	Depth           float64  `json:"depth_score"`
	Insights        Insights `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// RunMetadata captures per-run diagnostics surfaced with the result.
type RunMetadata struct {
	Duration        time.Duration `json:"duration_ns"`
	TotalPages      int           `json:"total_pages_discovered"`
	PagesFetched    int           `json:"pages_fetched"`
	DroppedFetches  int           `json:"dropped_fetches"`
	CategoriesFound int           `json:"content_categories_found"`
	Degraded        bool          `json:"degraded"`
	Truncated       bool          `json:"truncated"`
}

// DiscoveryResult aggregates everything a discovery run produced. It is
// immutable after compilation.
type DiscoveryResult struct {
	Query     CertificationQuery             `json:"query"`
	Structure *WebsiteStructure              `json:"website_structure"`
	Content   map[Category][]*DiscoveredPage `json:"discovered_content"`
	Quality   *QualityAssessment             `json:"quality_metrics"`
	Timestamp time.Time                      `json:"discovery_timestamp"`
	Metadata  RunMetadata                    `json:"metadata"`
}

// Summary condenses a result for logging and CLI output.
type Summary struct {
	Certification string           `json:"certification"`
	IssuingBody   string           `json:"issuing_body"`
	Region        string           `json:"region"`
	TotalPages    int              `json:"total_pages"`
	PagesFetched  int              `json:"pages_fetched"`
	CategoryCount map[Category]int `json:"category_counts"`
	OverallScore  float64          `json:"overall_score"`
	Degraded      bool             `json:"degraded"`
	Truncated     bool             `json:"truncated"`
}

// Summarize builds the condensed view of the result.
func (r *DiscoveryResult) Summarize() Summary {
	counts := make(map[Category]int, len(r.Content))
	for category, pages := range r.Content {
		counts[category] = len(pages)
	}
	s := Summary{
		Certification: r.Query.Name,
		IssuingBody:   r.Query.IssuingBody,
		Region:        r.Query.Region,
		PagesFetched:  r.Metadata.PagesFetched,
		CategoryCount: counts,
		Degraded:      r.Metadata.Degraded,
		Truncated:     r.Metadata.Truncated,
	}
	if r.Structure != nil {
		s.TotalPages = r.Structure.TotalPages
	}
	if r.Quality != nil {
		s.OverallScore = r.Quality.Overall
	}
	return s
}
