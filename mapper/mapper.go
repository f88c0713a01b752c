// Package mapper discovers the URL structure of a certification authority's
// website. It combines a broad map pass with an optional deeper crawl pass
// and merges both into one deduplicated structure.
package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bluejay-tic/certdiscovery/config"
	"github.com/bluejay-tic/certdiscovery/models"
	"github.com/bluejay-tic/certdiscovery/scrape"
)

// crawlExcludeTokens filters out site chrome and editorial sections that
// never hold certification content.
var crawlExcludeTokens = []string{
	"blog", "news", "about", "contact", "privacy", "terms",
	"career", "event", "press", "sitemap", "login",
}

// crawlIncludeTokens steer the crawl toward certification material. Kept as
// prefixes so both "license" and "licensing" match.
var crawlIncludeTokens = []string{
	"certif", "licen", "apply", "application", "audit", "inspect",
	"training", "course", "exam", "fee", "cost", "payment",
	"accredit", "regist", "office", "branch", "location",
}

// Mapper runs structure discovery against the scraping capability.
type Mapper struct {
	cfg     *config.Config
	scraper scrape.Scraper
	logger  *slog.Logger
}

// New builds a Mapper. logger may be nil.
func New(cfg *config.Config, scraper scrape.Scraper, logger *slog.Logger) (*Mapper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if scraper == nil {
		return nil, fmt.Errorf("scraper cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{cfg: cfg, scraper: scraper, logger: logger}, nil
}

// MapStructure discovers the page set under the query's official link. The
// broad map pass always runs; when crawling is enabled a deeper filtered
// pass follows and its richer page metadata wins on overlap. A failed crawl
// degrades the result to map-only rather than failing the run; an error is
// returned only when no pass produced any pages.
func (m *Mapper) MapStructure(ctx context.Context, query *models.CertificationQuery) (*models.WebsiteStructure, error) {
	official, err := url.Parse(query.OfficialLink)
	if err != nil || official.Host == "" {
		return nil, fmt.Errorf("invalid official link %q", query.OfficialLink)
	}

	merger, err := newPageMerger(m.cfg.MaxPages)
	if err != nil {
		return nil, err
	}

	mapped, mapErr := m.mapPass(ctx, query)
	if mapErr != nil {
		m.logger.Warn("map pass failed", "url", query.OfficialLink, "error", mapErr)
	}
	merger.addAll(mapped)

	degraded := false
	if m.cfg.CrawlEnabled {
		crawled, crawlErr := m.crawlPass(ctx, query)
		if crawlErr != nil {
			m.logger.Warn("crawl pass failed, continuing with map results only",
				"url", query.OfficialLink, "error", crawlErr)
			degraded = mapErr == nil
		}
		merger.addAll(crawled)
	}

	pages := merger.pages()
	if len(pages) == 0 {
		if mapErr != nil {
			return nil, mapErr
		}
		return nil, scrape.ErrMapping{Err: fmt.Errorf("no pages discovered under %s", query.OfficialLink)}
	}

	structure := &models.WebsiteStructure{
		OfficialURL: query.OfficialLink,
		Domain:      official.Host,
		TotalPages:  len(pages),
		Pages:       pages,
		Degraded:    degraded,
	}
	m.logger.Info("structure discovery complete",
		"domain", structure.Domain,
		"pages", structure.TotalPages,
		"degraded", structure.Degraded)
	return structure, nil
}

// mapPass runs the broad shallow pass: one unfiltered map, then one
// narrowed by the strongest search term when that adds anything.
func (m *Mapper) mapPass(ctx context.Context, query *models.CertificationQuery) ([]scrape.PageSummary, error) {
	pages, err := m.scraper.Map(ctx, query.OfficialLink, "")
	if err != nil {
		return nil, err
	}

	terms := SearchTerms(query)
	if len(terms) > 0 {
		narrowed, err := m.scraper.Map(ctx, query.OfficialLink, terms[0])
		if err != nil {
			m.logger.Debug("narrowed map pass failed", "term", terms[0], "error", err)
		} else {
			pages = append(pages, narrowed...)
		}
	}
	return pages, nil
}

// crawlPass runs the deeper filtered traversal under its own timeout.
func (m *Mapper) crawlPass(ctx context.Context, query *models.CertificationQuery) ([]scrape.PageSummary, error) {
	crawlCtx, cancel := context.WithTimeout(ctx, m.cfg.CrawlTimeout)
	defer cancel()

	return m.scraper.Crawl(crawlCtx, query.OfficialLink, scrape.CrawlOptions{
		Limit:        m.cfg.MaxPages,
		MaxDepth:     m.cfg.MaxDepth,
		IncludePaths: crawlIncludeTokens,
		ExcludePaths: crawlExcludeTokens,
	})
}

// pageMerger accumulates page summaries from both passes, deduplicating on
// the normalized URL. Later entries with richer metadata override earlier
// ones, so crawl results win over map results.
type pageMerger struct {
	index *lru.Cache[string, int]
	list  []*models.DiscoveredPage
	limit int
}

func newPageMerger(limit int) (*pageMerger, error) {
	// The index is sized past the page limit so eviction never forgets a
	// URL that is still in the list.
	index, err := lru.New[string, int](limit * 2)
	if err != nil {
		return nil, fmt.Errorf("create dedup index: %w", err)
	}
	return &pageMerger{index: index, limit: limit}, nil
}

func (pm *pageMerger) addAll(summaries []scrape.PageSummary) {
	for _, summary := range summaries {
		pm.add(summary)
	}
}

func (pm *pageMerger) add(summary scrape.PageSummary) {
	key := NormalizeURL(summary.URL)
	if key == "" {
		return
	}
	if i, ok := pm.index.Get(key); ok {
		if summary.Title != "" {
			pm.list[i].Title = summary.Title
		}
		if summary.Description != "" {
			pm.list[i].Description = summary.Description
		}
		return
	}
	if len(pm.list) >= pm.limit {
		return
	}
	// Category stays zero-valued here; assignment happens during the
	// categorization phase.
	pm.index.Add(key, len(pm.list))
	pm.list = append(pm.list, &models.DiscoveredPage{
		URL:         summary.URL,
		Title:       summary.Title,
		Description: summary.Description,
	})
}

func (pm *pageMerger) pages() []*models.DiscoveredPage {
	return pm.list
}

// NormalizeURL canonicalizes a URL for deduplication: lowercase scheme and
// host, no trailing slash, query and fragment dropped.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return ""
	}
	path := strings.TrimSuffix(parsed.Path, "/")
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host) + path
}
