package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/bluejay-tic/certdiscovery/config"
	"github.com/bluejay-tic/certdiscovery/ratelimit"
)

// maxBodyBytes caps how much of a fetched page is read into memory.
const maxBodyBytes = 2 << 20

// Client implements Scraper over plain HTTP: colly drives map and crawl
// traversal, goquery extracts metadata, and readability extracts the
// readable body text. Every outbound call is gated by the shared limiter.
type Client struct {
	cfg        *config.Config
	limiter    *ratelimit.Limiter
	metrics    *Metrics
	transport  http.RoundTripper
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTransport overrides the HTTP transport, used by tests to inject a
// mock.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) { c.transport = rt }
}

// WithMetrics attaches Prometheus collectors to the client.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a scrape client configured from cfg. All calls share
// limiter, which is the sole serialization point for outbound traffic.
func NewClient(cfg *config.Config, limiter *ratelimit.Limiter, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter cannot be nil")
	}

	c := &Client{
		cfg:     cfg,
		limiter: limiter,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = &http.Client{
		Timeout:   cfg.FetchTimeout,
		Transport: c.transport,
	}
	return c, nil
}

// Map visits the root page and harvests its same-domain links without
// following them. One rate-limited call, one HTTP request.
func (c *Client) Map(ctx context.Context, rootURL, search string) ([]PageSummary, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, ErrMapping{Err: err}
	}
	root, err := url.Parse(rootURL)
	if err != nil || root.Host == "" {
		return nil, ErrMapping{Err: fmt.Errorf("invalid root url %q", rootURL)}
	}

	c.metrics.IncCall("map")
	start := time.Now()
	defer func() { c.metrics.ObserveDuration(time.Since(start)) }()

	collector := c.newCollector(root.Host, 1, false)

	var rootSummary PageSummary
	seen := map[string]struct{}{rootURL: {}}
	pages := make([]PageSummary, 0, 32)

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		rootSummary = PageSummary{
			URL:         rootURL,
			Title:       strings.TrimSpace(e.ChildText("title")),
			Description: strings.TrimSpace(e.ChildAttr(`meta[name="description"]`, "content")),
		}
	})
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		parsed, err := url.Parse(link)
		if err != nil || parsed.Host != root.Host {
			return
		}
		if _, dup := seen[link]; dup || len(pages) >= c.cfg.MaxPages {
			return
		}
		title := strings.TrimSpace(e.Text)
		if search != "" && !matchesSearch(link, title, search) {
			return
		}
		seen[link] = struct{}{}
		pages = append(pages, PageSummary{URL: link, Title: title})
	})

	if err := collector.Visit(rootURL); err != nil {
		c.metrics.IncError(errorTypeLabel(ErrMapping{Err: err}))
		return nil, ErrMapping{Err: err}
	}
	collector.Wait()

	if search == "" || matchesSearch(rootURL, rootSummary.Title, search) {
		pages = append([]PageSummary{rootSummary}, pages...)
	}
	c.metrics.AddPages(len(pages))
	return pages, nil
}

// Crawl traverses the site up to the requested depth, visiting only links
// whose path passes the include/exclude token filters. One rate-limited
// call covering the whole traversal.
func (c *Client) Crawl(ctx context.Context, rootURL string, opts CrawlOptions) ([]PageSummary, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, ErrCrawl{Err: err}
	}
	root, err := url.Parse(rootURL)
	if err != nil || root.Host == "" {
		return nil, ErrCrawl{Err: fmt.Errorf("invalid root url %q", rootURL)}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = c.cfg.MaxPages
	}
	depth := opts.MaxDepth
	if depth <= 0 {
		depth = c.cfg.MaxDepth
	}
	include := lowerAll(opts.IncludePaths)
	exclude := lowerAll(opts.ExcludePaths)

	c.metrics.IncCall("crawl")
	start := time.Now()
	defer func() { c.metrics.ObserveDuration(time.Since(start)) }()

	collector := c.newCollector(root.Host, depth, true)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.cfg.MaxConcurrentJobs,
	}); err != nil {
		return nil, ErrCrawl{Err: fmt.Errorf("configure crawl limits: %w", err)}
	}

	var mu sync.Mutex
	pages := make([]PageSummary, 0, limit)
	seen := make(map[string]struct{}, limit)
	var firstErr error

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		mu.Lock()
		full := len(pages) >= limit
		mu.Unlock()
		if full {
			r.Abort()
		}
	})
	collector.OnHTML("html", func(e *colly.HTMLElement) {
		summary := PageSummary{
			URL:         e.Request.URL.String(),
			Title:       strings.TrimSpace(e.ChildText("title")),
			Description: strings.TrimSpace(e.ChildAttr(`meta[name="description"]`, "content")),
		}
		mu.Lock()
		if _, dup := seen[summary.URL]; !dup && len(pages) < limit {
			seen[summary.URL] = struct{}{}
			pages = append(pages, summary)
		}
		mu.Unlock()
	})
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || !pathAllowed(link, include, exclude) {
			return
		}
		// colly tracks visited URLs and depth; errors here are expected
		// for filtered or already-visited links.
		_ = e.Request.Visit(link)
	})
	collector.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	})

	if err := collector.Visit(rootURL); err != nil {
		c.metrics.IncError(errorTypeLabel(ErrCrawl{Err: err}))
		return nil, ErrCrawl{Err: err}
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		c.metrics.IncError("timeout")
		return nil, ErrCrawl{Err: err}
	}
	if len(pages) == 0 && firstErr != nil {
		c.metrics.IncError(errorTypeLabel(ErrCrawl{Err: firstErr}))
		return nil, ErrCrawl{Err: firstErr}
	}
	c.metrics.AddPages(len(pages))
	return pages, nil
}

// Fetch retrieves one page and extracts the requested formats: raw HTML
// and a readable text body standing in for markdown.
func (c *Client) Fetch(ctx context.Context, pageURL string, formats []string) (*PageContent, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, ErrFetch{URL: pageURL, Err: err}
	}

	c.metrics.IncCall("fetch")
	start := time.Now()
	defer func() { c.metrics.ObserveDuration(time.Since(start)) }()

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, ErrFetch{URL: pageURL, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, ErrFetch{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := classifyError(err, 0)
		c.metrics.IncError(errorTypeLabel(wrapFetch(pageURL, classified)))
		return nil, ErrFetch{URL: pageURL, Err: classified}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		classified := classifyError(nil, resp.StatusCode)
		c.metrics.IncError("fetch")
		return nil, ErrFetch{URL: pageURL, Err: classified}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.IncError("fetch")
		return nil, ErrFetch{URL: pageURL, Err: err}
	}
	raw := string(body)

	content := &PageContent{
		URL:       pageURL,
		Metadata:  make(map[string]string),
		FetchedAt: time.Now().UTC(),
	}
	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		content.Metadata["lastModified"] = lastModified
	}

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if docErr == nil {
		if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
			content.Metadata["title"] = title
		}
		if description := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", "")); description != "" {
			content.Metadata["description"] = description
		}
	}

	for _, format := range formats {
		switch format {
		case FormatHTML:
			content.HTML = raw
		case FormatMarkdown:
			if article, err := readability.FromReader(strings.NewReader(raw), parsed); err == nil {
				content.Markdown = strings.TrimSpace(article.TextContent)
				if article.SiteName != "" {
					content.Metadata["siteName"] = article.SiteName
				}
			}
			if content.Markdown == "" && docErr == nil {
				content.Markdown = strings.TrimSpace(doc.Find("body").Text())
			}
		}
	}
	return content, nil
}

func (c *Client) newCollector(host string, maxDepth int, async bool) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.AllowedDomains(host),
		colly.UserAgent(c.cfg.UserAgent),
	}
	if maxDepth > 0 {
		opts = append(opts, colly.MaxDepth(maxDepth))
	}
	if async {
		opts = append(opts, colly.Async(true))
	}
	collector := colly.NewCollector(opts...)
	collector.SetRequestTimeout(c.cfg.FetchTimeout)
	if c.transport != nil {
		collector.WithTransport(c.transport)
	}
	return collector
}

func matchesSearch(link, title, search string) bool {
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(link), search) ||
		strings.Contains(strings.ToLower(title), search)
}

// pathAllowed applies the include/exclude token filters to a link's path.
// An empty include list admits everything not excluded.
func pathAllowed(link string, include, exclude []string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	path := strings.ToLower(parsed.Path)
	for _, token := range exclude {
		if strings.Contains(path, token) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, token := range include {
		if strings.Contains(path, token) {
			return true
		}
	}
	return false
}

func lowerAll(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if token != "" {
			out = append(out, token)
		}
	}
	return out
}

func wrapFetch(url string, err error) error {
	return ErrFetch{URL: url, Err: err}
}
