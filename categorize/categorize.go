// Package categorize assigns discovered pages to certification content
// categories using weighted multi-signal scoring.
package categorize

import (
	"regexp"

	"github.com/bluejay-tic/certdiscovery/models"
)

// Signal weights. URL structure is the most reliable categorical cue, so it
// carries the highest single weight. These are heuristic tuning values; keep
// them in one place so they can be recalibrated against labeled data.
const (
	patternWeight = 3
	keywordWeight = 5
	urlWeight     = 8
	titleWeight   = 6

	nameWeight     = 5
	acronymWeight  = 3
	bodyWordWeight = 1
	regionWeight   = 2

	// defaultThreshold is exclusive: a best score must exceed it or the
	// page falls back to uncategorized.
	defaultThreshold = 10

	// defaultCeiling saturates confidence normalization: scores at or above
	// it report 100.
	defaultCeiling = 60

	// relevanceCeiling rescales the certification-relevance sub-score to a
	// percentage for quality scoring.
	relevanceCeiling = 15
)

type profile struct {
	category models.Category
	patterns []*regexp.Regexp
	keywords []string
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(expr))
	}
	return out
}

// profiles lists the category vocabularies in tie-break priority order.
var profiles = []profile{
	{
		category: models.CategoryMainCertification,
		patterns: compile(
			`certif`, `licen`, `regist`, `approv`, `accred`,
			`standar`, `complian`, `regulat`, `requir`, `overview`,
			`introduction`, `about`, `what.*is`, `definition`,
		),
		keywords: []string{
			"certification", "license", "registration", "approval", "accreditation",
			"standard", "compliance", "regulation", "requirement", "overview",
		},
	},
	{
		category: models.CategoryApplicationForms,
		patterns: compile(
			`form`, `applic`, `submi`, `enroll`, `download`,
			`fill`, `complete`, `apply`, `application.*process`,
		),
		keywords: []string{
			"form", "application", "submit", "enrollment",
			"download", "fill", "complete", "apply", "process",
		},
	},
	{
		category: models.CategoryAuditGuidelines,
		patterns: compile(
			`audit`, `inspect`, `assess`, `evaluat`, `review`,
			`check`, `verif`, `validat`, `procedure`, `guideline`,
			`checklist`, `inspection.*process`, `audit.*procedure`,
		),
		keywords: []string{
			"audit", "inspection", "assessment", "evaluation", "review",
			"check", "verification", "validation", "procedure",
		},
	},
	{
		category: models.CategoryTrainingMaterials,
		patterns: compile(
			`train`, `educat`, `learn`, `course`, `workshop`,
			`seminar`, `qualif`, `skill`, `training.*program`,
			`learning.*material`, `qualification.*requirement`,
		),
		keywords: []string{
			"training", "education", "learn", "course", "workshop",
			"seminar", "qualification", "skill", "program",
		},
	},
	{
		category: models.CategoryFeeStructures,
		patterns: compile(
			`fee`, `cost`, `price`, `charg`, `payment`,
			`billing`, `tariff`, `rate`, `fee.*schedule`,
			`payment.*method`, `cost.*breakdown`,
		),
		keywords: []string{
			"fee", "cost", "price", "charge", "payment", "billing",
			"tariff", "rate", "amount", "schedule",
		},
	},
	{
		category: models.CategoryRegionalOffices,
		patterns: compile(
			`office`, `branch`, `locat`, `address`, `contact`,
			`region`, `state`, `city`, `contact.*information`,
			`office.*location`, `regional.*office`,
		),
		keywords: []string{
			"office", "branch", "location", "address", "contact",
			"region", "state", "city", "area",
		},
	},
}

// typeIndicators score document-type cues. Each group contributes its weight
// once when any token is present; the sum applies to every category.
var typeIndicators = []struct {
	weight int
	tokens []string
}{
	{4, []string{"form", "application", "submit", "fill", "complete"}},
	{3, []string{".pdf", "pdf", "document", "download"}},
	{3, []string{"guideline", "procedure", "manual", "instruction"}},
	{2, []string{"contact", "address", "phone", "email"}},
	{2, []string{"overview", "introduction", "about", "what is", "definition"}},
	{2, []string{"schedule", "timetable"}},
}

// Categorizer scores pages against the fixed category set.
type Categorizer struct {
	threshold int
	ceiling   int
}

// Option customizes a Categorizer.
type Option func(*Categorizer)

// WithThreshold overrides the exclusive assignment threshold.
func WithThreshold(n int) Option {
	return func(c *Categorizer) { c.threshold = n }
}

// WithConfidenceCeiling overrides the confidence saturation ceiling.
func WithConfidenceCeiling(n int) Option {
	return func(c *Categorizer) {
		if n > 0 {
			c.ceiling = n
		}
	}
}

// New builds a Categorizer with the default heuristic constants.
func New(opts ...Option) *Categorizer {
	c := &Categorizer{
		threshold: defaultThreshold,
		ceiling:   defaultCeiling,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categorize picks the best-scoring category for a page, or uncategorized
// when no score clears the threshold. The returned confidence is the winning
// score normalized against the saturation ceiling, in [0, 100].
// Categorization is deterministic: identical input yields identical output.
func (c *Categorizer) Categorize(page *models.DiscoveredPage, query models.CertificationQuery) (models.Category, float64) {
	scores := c.score(page, query)
	return c.decide(scores)
}

func (c *Categorizer) score(page *models.DiscoveredPage, query models.CertificationQuery) map[models.Category]int {
	text := PageText(page)
	urlPath := normalize(page.URL)
	title := normalize(page.Title)

	typeScore := 0
	for _, group := range typeIndicators {
		if containsAny(text, group.tokens) {
			typeScore += group.weight
		}
	}
	relScore := RelevanceScore(text, query)

	scores := make(map[models.Category]int, len(profiles))
	for _, p := range profiles {
		score := typeScore + relScore
		for _, pattern := range p.patterns {
			if pattern.MatchString(text) {
				score += patternWeight
			}
			if pattern.MatchString(urlPath) {
				score += urlWeight
			}
			if pattern.MatchString(title) {
				score += titleWeight
			}
		}
		for _, keyword := range p.keywords {
			if contains(text, keyword) {
				score += keywordWeight
			}
		}
		scores[p.category] = score
	}
	return scores
}

// decide picks the maximum score in fixed priority order; ties keep the
// earlier category so the outcome is deterministic.
func (c *Categorizer) decide(scores map[models.Category]int) (models.Category, float64) {
	best := models.CategoryUncategorized
	bestScore := -1
	for _, category := range models.Categories() {
		if score, ok := scores[category]; ok && score > bestScore {
			best = category
			bestScore = score
		}
	}
	confidence := c.confidence(bestScore)
	if bestScore <= c.threshold {
		return models.CategoryUncategorized, confidence
	}
	return best, confidence
}

func (c *Categorizer) confidence(score int) float64 {
	if score <= 0 {
		return 0
	}
	confidence := float64(score) * 100 / float64(c.ceiling)
	if confidence > 100 {
		return 100
	}
	return confidence
}

// RelevanceScore measures how strongly the text ties to the queried
// certification: name match 5, issuing-body acronym 3 each, issuing-body
// keyword 1 each, region 2. Applied as a cross-cutting bonus to every
// category and reused by quality scoring.
func RelevanceScore(text string, query models.CertificationQuery) int {
	score := 0
	if name := normalize(query.Name); name != "" && contains(text, name) {
		score += nameWeight
	}
	for _, acronym := range Acronyms(query.IssuingBody) {
		if contains(text, normalize(acronym)) {
			score += acronymWeight
		}
	}
	for _, word := range LongWords(query.IssuingBody) {
		if contains(text, normalize(word)) {
			score += bodyWordWeight
		}
	}
	if region := normalize(query.Region); region != "" && contains(text, region) {
		score += regionWeight
	}
	return score
}

// RelevancePercent rescales RelevanceScore to [0, 100] against the
// saturation ceiling used by quality scoring.
func RelevancePercent(text string, query models.CertificationQuery) float64 {
	percent := float64(RelevanceScore(text, query)) * 100 / relevanceCeiling
	if percent > 100 {
		return 100
	}
	return percent
}
