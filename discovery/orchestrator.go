// Package discovery orchestrates the certification content pipeline:
// structure discovery, content extraction, categorization, quality
// assessment, and compilation of the final result.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bluejay-tic/certdiscovery/categorize"
	"github.com/bluejay-tic/certdiscovery/config"
	"github.com/bluejay-tic/certdiscovery/mapper"
	"github.com/bluejay-tic/certdiscovery/models"
	"github.com/bluejay-tic/certdiscovery/quality"
	"github.com/bluejay-tic/certdiscovery/scrape"
)

// Orchestrator drives complete discovery runs. Safe for concurrent use;
// every run carries its own state.
type Orchestrator struct {
	cfg         *config.Config
	scraper     scrape.Scraper
	mapper      *mapper.Mapper
	categorizer *categorize.Categorizer
	scorer      *quality.Scorer
	logger      *slog.Logger
	metrics     *Metrics
	now         func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithCategorizer overrides the default categorizer.
func WithCategorizer(c *categorize.Categorizer) Option {
	return func(o *Orchestrator) { o.categorizer = c }
}

// WithScorer overrides the default quality scorer.
func WithScorer(s *quality.Scorer) Option {
	return func(o *Orchestrator) { o.scorer = s }
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an Orchestrator around a validated config and a scraping
// capability. logger may be nil.
func New(cfg *config.Config, scraper scrape.Scraper, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if scraper == nil {
		return nil, fmt.Errorf("scraper cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		cfg:         cfg,
		scraper:     scraper,
		categorizer: categorize.New(),
		scorer:      quality.NewScorer(),
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	m, err := mapper.New(cfg, scraper, logger)
	if err != nil {
		return nil, err
	}
	o.mapper = m
	return o, nil
}

// Discover executes a full run for one certification query. The overall
// timeout is enforced between phases: an expired deadline stops further
// network work but the result is still compiled from whatever earlier
// phases produced, marked truncated. Discover fails outright only when the
// query is invalid or structure discovery finds nothing at all.
func (o *Orchestrator) Discover(ctx context.Context, query models.CertificationQuery) (*models.DiscoveryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, ErrInvalidQuery{Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	run := newRun(query, o.now)
	logger := o.logger.With("certification", query.Name, "domain", query.OfficialLink)
	logger.Info("discovery run starting")

	structure, err := o.discoverStructure(runCtx, &query)
	if err != nil {
		run.enter(PhaseFailed)
		o.metrics.IncRun("failed")
		return nil, err
	}

	fetched := make(map[string]struct{})
	if o.pastDeadline(runCtx, logger, PhaseExtraction) {
		run.markTruncated()
	} else {
		fetched = o.extractContent(runCtx, run, structure, logger)
		if runCtx.Err() != nil {
			logger.Warn("run deadline fired during extraction, result is partial")
			run.markTruncated()
		}
	}

	run.enter(PhaseCategorize)
	content := o.categorizeContent(structure, query, fetched)

	run.enter(PhaseQuality)
	assessment := o.assessQuality(structure, content, query)

	run.enter(PhaseCompile)
	result := o.compile(run, structure, content, assessment)

	run.enter(PhaseDone)
	o.metrics.IncRun("done")
	logger.Info("discovery run complete",
		"pages", result.Metadata.TotalPages,
		"fetched", result.Metadata.PagesFetched,
		"overall_score", result.Quality.Overall,
		"truncated", result.Metadata.Truncated,
		"duration", result.Metadata.Duration)
	return result, nil
}

func (o *Orchestrator) discoverStructure(ctx context.Context, query *models.CertificationQuery) (*models.WebsiteStructure, error) {
	start := o.now()
	defer func() { o.metrics.ObservePhase(PhaseStructure, o.now().Sub(start)) }()

	structure, err := o.mapper.MapStructure(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := structure.Validate(); err != nil {
		return nil, ErrInvariant{Err: err}
	}
	return structure, nil
}

// extractContent fetches page bodies with a bounded worker pool and returns
// the URLs that were fetched successfully. Fetch failures drop individual
// pages, never the run.
func (o *Orchestrator) extractContent(ctx context.Context, run *Run, structure *models.WebsiteStructure, logger *slog.Logger) map[string]struct{} {
	run.enter(PhaseExtraction)
	start := o.now()
	defer func() { o.metrics.ObservePhase(PhaseExtraction, o.now().Sub(start)) }()

	fetched := make(map[string]struct{}, len(structure.Pages))
	var mu sync.Mutex
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentJobs)

	for _, page := range structure.Pages {
		page := page
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(groupCtx, o.cfg.FetchTimeout)
			defer cancel()

			content, err := o.scraper.Fetch(fetchCtx, page.URL,
				[]string{scrape.FormatMarkdown, scrape.FormatHTML})
			if err != nil {
				logger.Warn("fetch failed, dropping page", "url", page.URL, "error", err)
				run.recordDrop()
				o.metrics.IncDrop()
				return nil
			}

			mu.Lock()
			page.Markdown = content.Markdown
			page.HTML = content.HTML
			page.FetchedAt = content.FetchedAt
			if page.Metadata == nil {
				page.Metadata = content.Metadata
			} else {
				for k, v := range content.Metadata {
					page.Metadata[k] = v
				}
			}
			if page.Title == "" {
				page.Title = content.Metadata["title"]
			}
			if page.Description == "" {
				page.Description = content.Metadata["description"]
			}
			fetched[page.URL] = struct{}{}
			mu.Unlock()

			run.recordFetch()
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = g.Wait()
	return fetched
}

// categorizeContent assigns each fetched page to a category and groups the
// result. Pages whose fetch failed are dropped from further processing:
// they stay in the structure as uncategorized but never reach the content
// map. Uncategorized pages are likewise excluded so downstream scoring sees
// only confident assignments.
func (o *Orchestrator) categorizeContent(structure *models.WebsiteStructure, query models.CertificationQuery, fetched map[string]struct{}) map[models.Category][]*models.DiscoveredPage {
	start := o.now()
	defer func() { o.metrics.ObservePhase(PhaseCategorize, o.now().Sub(start)) }()

	content := make(map[models.Category][]*models.DiscoveredPage)
	byCategory := make(map[models.Category][]string)
	for _, page := range structure.Pages {
		if _, ok := fetched[page.URL]; !ok {
			page.Category = models.CategoryUncategorized
			byCategory[page.Category] = append(byCategory[page.Category], page.URL)
			continue
		}
		category, confidence := o.categorizer.Categorize(page, query)
		page.Category = category
		page.Confidence = confidence
		byCategory[category] = append(byCategory[category], page.URL)
		if category != models.CategoryUncategorized {
			content[category] = append(content[category], page)
		}
	}
	structure.PagesByCategory = byCategory
	return content
}

func (o *Orchestrator) assessQuality(structure *models.WebsiteStructure, content map[models.Category][]*models.DiscoveredPage, query models.CertificationQuery) *models.QualityAssessment {
	start := o.now()
	defer func() { o.metrics.ObservePhase(PhaseQuality, o.now().Sub(start)) }()

	return o.scorer.Assess(structure, content, query)
}

func (o *Orchestrator) compile(run *Run, structure *models.WebsiteStructure, content map[models.Category][]*models.DiscoveredPage, assessment *models.QualityAssessment) *models.DiscoveryResult {
	fetched, dropped, truncated := run.counters()
	finished := o.now()

	return &models.DiscoveryResult{
		Query:     run.Query,
		Structure: structure,
		Content:   content,
		Quality:   assessment,
		Timestamp: finished.UTC(),
		Metadata: models.RunMetadata{
			Duration:        finished.Sub(run.Started),
			TotalPages:      structure.TotalPages,
			PagesFetched:    fetched,
			DroppedFetches:  dropped,
			CategoriesFound: len(content),
			Degraded:        structure.Degraded,
			Truncated:       truncated,
		},
	}
}

// pastDeadline reports whether the run's deadline expired before the named
// phase could start.
func (o *Orchestrator) pastDeadline(ctx context.Context, logger *slog.Logger, next Phase) bool {
	if ctx.Err() == nil {
		return false
	}
	logger.Warn("run deadline reached, skipping phase", "phase", string(next))
	return true
}
