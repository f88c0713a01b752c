package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bluejay-tic/certdiscovery/config"
	"github.com/bluejay-tic/certdiscovery/models"
	"github.com/bluejay-tic/certdiscovery/scrape"
)

type fakeScraper struct {
	mapSummaries   []scrape.PageSummary
	crawlSummaries []scrape.PageSummary
	crawlErr       error
	fetchErr       error
	slow           map[string]bool
	content        map[string]*scrape.PageContent
}

func (f *fakeScraper) Map(ctx context.Context, rootURL, search string) ([]scrape.PageSummary, error) {
	if search != "" {
		return nil, nil
	}
	return f.mapSummaries, nil
}

func (f *fakeScraper) Crawl(ctx context.Context, rootURL string, opts scrape.CrawlOptions) ([]scrape.PageSummary, error) {
	if f.crawlErr != nil {
		return nil, f.crawlErr
	}
	return f.crawlSummaries, nil
}

func (f *fakeScraper) Fetch(ctx context.Context, pageURL string, formats []string) (*scrape.PageContent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.slow[pageURL] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if content, ok := f.content[pageURL]; ok {
		return content, nil
	}
	return &scrape.PageContent{
		URL:       pageURL,
		Metadata:  map[string]string{},
		FetchedAt: time.Now(),
	}, nil
}

func testQuery() models.CertificationQuery {
	return models.CertificationQuery{
		Name:         "Pressure Equipment License",
		IssuingBody:  "National Inspection and Safety Board (NISB)",
		Region:       "Ontario",
		OfficialLink: "https://nisb.test",
	}
}

func certSiteScraper() *fakeScraper {
	return &fakeScraper{
		mapSummaries: []scrape.PageSummary{
			{URL: "https://nisb.test/", Title: "National Inspection and Safety Board"},
			{URL: "https://nisb.test/license/apply", Title: "Apply for a Pressure Equipment License"},
			{URL: "https://nisb.test/fees", Title: "Fee Schedule"},
		},
		crawlSummaries: []scrape.PageSummary{
			{URL: "https://nisb.test/license/apply", Title: "Apply for a Pressure Equipment License", Description: "Application form and submission process"},
		},
		content: map[string]*scrape.PageContent{
			"https://nisb.test/license/apply": {
				URL:      "https://nisb.test/license/apply",
				Markdown: "Download the application form, fill it in and submit it to apply for enrollment. The completed form covers the pressure equipment license issued by the National Inspection and Safety Board for Ontario operators.",
				Metadata: map[string]string{
					"title": "Apply for a Pressure Equipment License",
				},
				FetchedAt: time.Now(),
			},
			"https://nisb.test/fees": {
				URL:      "https://nisb.test/fees",
				Markdown: "Payment of the certification fee costs 200 dollars. The fee schedule lists rates, billing terms and the tariff for each license class along with accepted payment methods.",
				Metadata: map[string]string{
					"title": "Fee Schedule",
				},
				FetchedAt: time.Now(),
			},
		},
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, s scrape.Scraper) *Orchestrator {
	t.Helper()
	o, err := New(cfg, s, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func TestDiscoverHappyPath(t *testing.T) {
	o := newTestOrchestrator(t, config.DefaultConfig(), certSiteScraper())

	result, err := o.Discover(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	if result.Structure.TotalPages != 3 {
		t.Fatalf("total pages = %d, want 3", result.Structure.TotalPages)
	}
	if result.Metadata.PagesFetched != 3 {
		t.Fatalf("pages fetched = %d, want 3", result.Metadata.PagesFetched)
	}
	if result.Metadata.DroppedFetches != 0 {
		t.Fatalf("dropped = %d, want 0", result.Metadata.DroppedFetches)
	}
	if result.Metadata.Truncated {
		t.Fatalf("run should not be truncated")
	}
	if err := result.Structure.Validate(); err != nil {
		t.Fatalf("structure invariant: %v", err)
	}

	apply := findPage(result, "https://nisb.test/license/apply")
	if apply == nil {
		t.Fatalf("apply page missing from structure")
	}
	if apply.Category != models.CategoryApplicationForms {
		t.Fatalf("apply page category = %s, want %s", apply.Category, models.CategoryApplicationForms)
	}
	if apply.Confidence <= 0 || apply.Confidence > 100 {
		t.Fatalf("confidence = %f, want (0,100]", apply.Confidence)
	}

	fees := findPage(result, "https://nisb.test/fees")
	if fees == nil || fees.Category != models.CategoryFeeStructures {
		t.Fatalf("fees page should be categorized as %s: %+v", models.CategoryFeeStructures, fees)
	}

	if len(result.Content[models.CategoryApplicationForms]) == 0 {
		t.Fatalf("content map missing application forms")
	}
	if result.Quality == nil || result.Quality.Overall < 0 || result.Quality.Overall > 100 {
		t.Fatalf("overall quality out of range: %+v", result.Quality)
	}
	if result.Metadata.CategoriesFound != len(result.Content) {
		t.Fatalf("categories found = %d, content map has %d", result.Metadata.CategoriesFound, len(result.Content))
	}
}

func TestDiscoverAllFetchesFail(t *testing.T) {
	s := certSiteScraper()
	s.fetchErr = scrape.ErrFetch{URL: "any", Err: errors.New("blocked")}
	o := newTestOrchestrator(t, config.DefaultConfig(), s)

	result, err := o.Discover(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("discover should compile a result even when every fetch fails: %v", err)
	}

	if result.Metadata.PagesFetched != 0 {
		t.Fatalf("pages fetched = %d, want 0", result.Metadata.PagesFetched)
	}
	if result.Metadata.DroppedFetches != result.Structure.TotalPages {
		t.Fatalf("dropped = %d, want %d", result.Metadata.DroppedFetches, result.Structure.TotalPages)
	}
	if result.Quality.Completeness != 0 {
		t.Fatalf("completeness = %f, want 0 with no extracted content", result.Quality.Completeness)
	}
	if len(result.Quality.Insights.Weaknesses) == 0 || len(result.Quality.Recommendations) == 0 {
		t.Fatalf("expected weaknesses and recommendations on a failed-extraction run")
	}
	if len(result.Content) != 0 {
		t.Fatalf("content map should be empty when no page was fetched, got %d categories", len(result.Content))
	}
	if result.Metadata.CategoriesFound != 0 {
		t.Fatalf("categories found = %d, want 0", result.Metadata.CategoriesFound)
	}
	for _, page := range result.Structure.Pages {
		if page.Category != models.CategoryUncategorized {
			t.Fatalf("unfetched page %s categorized as %q", page.URL, page.Category)
		}
	}
}

func TestDiscoverTimeoutDuringExtraction(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timeout = 300 * time.Millisecond
	cfg.CrawlTimeout = 100 * time.Millisecond
	cfg.MaxConcurrentJobs = 1

	s := certSiteScraper()
	s.slow = map[string]bool{"https://nisb.test/fees": true}
	o := newTestOrchestrator(t, cfg, s)

	result, err := o.Discover(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	if !result.Metadata.Truncated {
		t.Fatalf("deadline fired mid-extraction, run should be marked truncated")
	}
	if result.Metadata.PagesFetched != 2 {
		t.Fatalf("pages fetched = %d, want 2", result.Metadata.PagesFetched)
	}
	if result.Metadata.DroppedFetches != 1 {
		t.Fatalf("dropped = %d, want 1", result.Metadata.DroppedFetches)
	}
	for _, pages := range result.Content {
		for _, page := range pages {
			if page.URL == "https://nisb.test/fees" {
				t.Fatalf("page whose fetch timed out must not reach the content map")
			}
		}
	}
	if len(result.Content[models.CategoryApplicationForms]) == 0 {
		t.Fatalf("successfully fetched pages should be kept in the result")
	}
	fees := findPage(result, "https://nisb.test/fees")
	if fees == nil || fees.Category != models.CategoryUncategorized {
		t.Fatalf("timed-out page should remain uncategorized in the structure: %+v", fees)
	}
}

func TestDiscoverInvalidQuery(t *testing.T) {
	o := newTestOrchestrator(t, config.DefaultConfig(), certSiteScraper())

	query := testQuery()
	query.OfficialLink = ""
	_, err := o.Discover(context.Background(), query)
	var invalid ErrInvalidQuery
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %T (%v), want ErrInvalidQuery", err, err)
	}
}

func TestDiscoverTimeoutTruncatesRun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timeout = time.Nanosecond
	cfg.CrawlTimeout = time.Nanosecond
	o := newTestOrchestrator(t, cfg, certSiteScraper())

	result, err := o.Discover(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !result.Metadata.Truncated {
		t.Fatalf("run past its deadline should be marked truncated")
	}
	if result.Metadata.PagesFetched != 0 {
		t.Fatalf("extraction should be skipped after the deadline, fetched=%d", result.Metadata.PagesFetched)
	}
	if result.Quality == nil {
		t.Fatalf("truncated run should still carry a quality assessment")
	}
}

func TestDiscoverDegradedCrawlPropagates(t *testing.T) {
	s := certSiteScraper()
	s.crawlErr = scrape.ErrCrawl{Err: context.DeadlineExceeded}
	o := newTestOrchestrator(t, config.DefaultConfig(), s)

	result, err := o.Discover(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !result.Metadata.Degraded {
		t.Fatalf("degraded structure should surface in run metadata")
	}
	found := false
	for _, threat := range result.Quality.Insights.Threats {
		if threat != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("degraded run should produce a threat insight")
	}
}

func TestExportRoundTrip(t *testing.T) {
	o := newTestOrchestrator(t, config.DefaultConfig(), certSiteScraper())
	result, err := o.Discover(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "discovery.json")
	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := writer.Write(result); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var doc ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}

	if doc.CertificationName != "Pressure Equipment License" {
		t.Fatalf("certification_name = %q", doc.CertificationName)
	}
	if doc.IssuingBody != "National Inspection and Safety Board (NISB)" {
		t.Fatalf("issuing_body = %q", doc.IssuingBody)
	}
	if doc.WebsiteStructure.TotalPages != result.Structure.TotalPages {
		t.Fatalf("total_pages = %d, want %d", doc.WebsiteStructure.TotalPages, result.Structure.TotalPages)
	}
	if doc.QualityMetrics.OverallScore != result.Quality.Overall {
		t.Fatalf("overall_score = %f, want %f", doc.QualityMetrics.OverallScore, result.Quality.Overall)
	}
	breakdown := doc.QualityMetrics.ScoreBreakdown
	for _, key := range []string{"relevance", "completeness", "freshness", "accessibility"} {
		if _, ok := breakdown[key]; !ok {
			t.Fatalf("score_breakdown missing %q: %v", key, breakdown)
		}
	}
	forms := doc.DiscoveredContent[models.CategoryApplicationForms]
	if len(forms) == 0 {
		t.Fatalf("exported content missing application forms")
	}
	if forms[0].ContentExcerpt == "" {
		t.Fatalf("exported page missing content excerpt")
	}
}

func TestRunPhaseTransitions(t *testing.T) {
	o := newTestOrchestrator(t, config.DefaultConfig(), certSiteScraper())
	result, err := o.Discover(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if result.Metadata.Duration < 0 {
		t.Fatalf("duration = %v", result.Metadata.Duration)
	}

	run := newRun(testQuery(), nil)
	for _, phase := range []Phase{PhaseExtraction, PhaseCategorize, PhaseQuality, PhaseCompile, PhaseDone} {
		run.enter(phase)
	}
	transitions := run.Transitions()
	if len(transitions) != 6 {
		t.Fatalf("transitions = %d, want 6", len(transitions))
	}
	if transitions[0].Phase != PhaseStructure || transitions[5].Phase != PhaseDone {
		t.Fatalf("unexpected transition order: %+v", transitions)
	}
	for i := 1; i < len(transitions); i++ {
		if transitions[i].At.Before(transitions[i-1].At) {
			t.Fatalf("transition timestamps out of order: %+v", transitions)
		}
	}
}

func findPage(result *models.DiscoveryResult, url string) *models.DiscoveredPage {
	for _, page := range result.Structure.Pages {
		if page.URL == url {
			return page
		}
	}
	return nil
}
