package mapper

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/bluejay-tic/certdiscovery/config"
	"github.com/bluejay-tic/certdiscovery/models"
	"github.com/bluejay-tic/certdiscovery/scrape"
)

type stubScraper struct {
	mapPages   []scrape.PageSummary
	mapErr     error
	crawlPages []scrape.PageSummary
	crawlErr   error

	mapCalls   int
	crawlCalls int
	crawlOpts  scrape.CrawlOptions
}

func (s *stubScraper) Map(ctx context.Context, rootURL, search string) ([]scrape.PageSummary, error) {
	s.mapCalls++
	if search != "" {
		return nil, nil
	}
	return s.mapPages, s.mapErr
}

func (s *stubScraper) Crawl(ctx context.Context, rootURL string, opts scrape.CrawlOptions) ([]scrape.PageSummary, error) {
	s.crawlCalls++
	s.crawlOpts = opts
	return s.crawlPages, s.crawlErr
}

func (s *stubScraper) Fetch(ctx context.Context, pageURL string, formats []string) (*scrape.PageContent, error) {
	return nil, errors.New("fetch not supported by stub")
}

func testQuery() *models.CertificationQuery {
	return &models.CertificationQuery{
		Name:         "Pressure Equipment License",
		IssuingBody:  "National Inspection and Safety Board (NISB)",
		Region:       "Ontario",
		OfficialLink: "https://nisb.test",
	}
}

func newTestMapper(t *testing.T, cfg *config.Config, s scrape.Scraper) *Mapper {
	t.Helper()
	m, err := New(cfg, s, slog.Default())
	if err != nil {
		t.Fatalf("new mapper: %v", err)
	}
	return m
}

func TestMapStructureDeduplicatesAcrossPasses(t *testing.T) {
	stub := &stubScraper{
		mapPages: []scrape.PageSummary{
			{URL: "https://nisb.test/license", Title: "License"},
			{URL: "https://nisb.test/license/", Title: "License"},
			{URL: "https://NISB.test/license?utm=1", Title: "License"},
			{URL: "https://nisb.test/fees", Title: "Fees"},
		},
		crawlPages: []scrape.PageSummary{
			{URL: "https://nisb.test/license", Title: "License"},
			{URL: "https://nisb.test/training", Title: "Training"},
		},
	}
	m := newTestMapper(t, config.DefaultConfig(), stub)

	structure, err := m.MapStructure(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("map structure: %v", err)
	}

	if structure.TotalPages != 3 {
		t.Fatalf("total pages = %d, want 3 (license, fees, training)", structure.TotalPages)
	}
	if structure.TotalPages != len(structure.Pages) {
		t.Fatalf("total pages %d does not match list length %d", structure.TotalPages, len(structure.Pages))
	}
	if structure.Degraded {
		t.Fatalf("structure should not be degraded")
	}
	if structure.Domain != "nisb.test" {
		t.Fatalf("domain = %q", structure.Domain)
	}
	for _, page := range structure.Pages {
		if page.Category != "" {
			t.Fatalf("page %s carries category %q before categorization", page.URL, page.Category)
		}
	}
}

func TestMapStructureIdempotentDedup(t *testing.T) {
	stub := &stubScraper{
		mapPages: []scrape.PageSummary{
			{URL: "https://nisb.test/apply"},
			{URL: "https://nisb.test/apply"},
			{URL: "https://nisb.test/apply/"},
		},
	}
	cfg := config.DefaultConfig()
	cfg.CrawlEnabled = false
	m := newTestMapper(t, cfg, stub)

	structure, err := m.MapStructure(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("map structure: %v", err)
	}
	if structure.TotalPages != 1 {
		t.Fatalf("total pages = %d, want 1", structure.TotalPages)
	}
	if stub.crawlCalls != 0 {
		t.Fatalf("crawl was called with crawling disabled")
	}
}

func TestMapStructureCrawlOverridesMetadata(t *testing.T) {
	stub := &stubScraper{
		mapPages: []scrape.PageSummary{
			{URL: "https://nisb.test/license", Title: ""},
		},
		crawlPages: []scrape.PageSummary{
			{URL: "https://nisb.test/license", Title: "Pressure Equipment License", Description: "Apply here"},
		},
	}
	m := newTestMapper(t, config.DefaultConfig(), stub)

	structure, err := m.MapStructure(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("map structure: %v", err)
	}
	if structure.TotalPages != 1 {
		t.Fatalf("total pages = %d, want 1", structure.TotalPages)
	}
	page := structure.Pages[0]
	if page.Title != "Pressure Equipment License" {
		t.Fatalf("title = %q, crawl metadata should win", page.Title)
	}
	if page.Description != "Apply here" {
		t.Fatalf("description = %q", page.Description)
	}
}

func TestMapStructureDegradesOnCrawlFailure(t *testing.T) {
	stub := &stubScraper{
		mapPages: []scrape.PageSummary{
			{URL: "https://nisb.test/license", Title: "License"},
		},
		crawlErr: scrape.ErrCrawl{Err: context.DeadlineExceeded},
	}
	m := newTestMapper(t, config.DefaultConfig(), stub)

	structure, err := m.MapStructure(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("map structure: %v", err)
	}
	if !structure.Degraded {
		t.Fatalf("structure should be marked degraded after crawl failure")
	}
	if structure.TotalPages != 1 {
		t.Fatalf("total pages = %d, want map results preserved", structure.TotalPages)
	}
}

func TestMapStructureFailsWhenBothPassesFail(t *testing.T) {
	stub := &stubScraper{
		mapErr:   scrape.ErrMapping{Err: errors.New("blocked")},
		crawlErr: scrape.ErrCrawl{Err: errors.New("blocked")},
	}
	m := newTestMapper(t, config.DefaultConfig(), stub)

	_, err := m.MapStructure(context.Background(), testQuery())
	if err == nil {
		t.Fatalf("expected error when both passes fail")
	}
	var mapping scrape.ErrMapping
	if !errors.As(err, &mapping) {
		t.Fatalf("error = %T (%v), want ErrMapping", err, err)
	}
}

func TestMapStructureCrawlFilterTokens(t *testing.T) {
	stub := &stubScraper{
		mapPages: []scrape.PageSummary{{URL: "https://nisb.test/"}},
	}
	m := newTestMapper(t, config.DefaultConfig(), stub)

	if _, err := m.MapStructure(context.Background(), testQuery()); err != nil {
		t.Fatalf("map structure: %v", err)
	}
	if len(stub.crawlOpts.IncludePaths) == 0 {
		t.Fatalf("crawl should receive include path tokens")
	}
	excluded := make(map[string]struct{}, len(stub.crawlOpts.ExcludePaths))
	for _, token := range stub.crawlOpts.ExcludePaths {
		excluded[token] = struct{}{}
	}
	for _, want := range []string{"blog", "news", "privacy"} {
		if _, ok := excluded[want]; !ok {
			t.Fatalf("exclude tokens missing %q: %v", want, stub.crawlOpts.ExcludePaths)
		}
	}
}

func TestSearchTerms(t *testing.T) {
	terms := SearchTerms(testQuery())
	if len(terms) == 0 {
		t.Fatalf("expected search terms")
	}
	if len(terms) > maxSearchTerms {
		t.Fatalf("terms=%d, want at most %d", len(terms), maxSearchTerms)
	}
	if terms[0] != "pressure equipment license" {
		t.Fatalf("first term = %q, want full certification name", terms[0])
	}

	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			t.Fatalf("duplicate term %q", term)
		}
		seen[term] = struct{}{}
	}
	if _, ok := seen["nisb"]; !ok {
		t.Fatalf("issuing body acronym missing from terms: %v", terms)
	}
	if _, ok := seen["ontario"]; !ok {
		t.Fatalf("region missing from terms: %v", terms)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "trailing slash", raw: "https://nisb.test/license/", want: "https://nisb.test/license"},
		{name: "query dropped", raw: "https://nisb.test/license?utm=1", want: "https://nisb.test/license"},
		{name: "fragment dropped", raw: "https://nisb.test/license#fees", want: "https://nisb.test/license"},
		{name: "host lowered", raw: "https://NISB.test/License", want: "https://nisb.test/License"},
		{name: "invalid", raw: "://not-a-url", want: ""},
		{name: "no host", raw: "/relative/path", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.raw); got != tt.want {
				t.Fatalf("NormalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
