// Package scrape defines the external scraping capability consumed by the
// discovery pipeline and provides an HTTP-backed implementation of it.
package scrape

import (
	"context"
	"time"
)

// Output formats a Fetch call can request.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// PageSummary is the shallow page record returned by Map and Crawl.
type PageSummary struct {
	URL         string
	Title       string
	Description string
}

// PageContent is the extracted content of a single page.
type PageContent struct {
	URL       string
	Markdown  string
	HTML      string
	Metadata  map[string]string
	FetchedAt time.Time
}

// CrawlOptions bounds a crawl call.
type CrawlOptions struct {
	Limit        int
	MaxDepth     int
	IncludePaths []string
	ExcludePaths []string
}

// Scraper is the scraping capability. Every call either returns a payload
// or a typed failure; implementations must be safe for concurrent use.
type Scraper interface {
	// Map performs a broad, shallow discovery of the site's URL set. An
	// optional search term narrows the result.
	Map(ctx context.Context, rootURL, search string) ([]PageSummary, error)

	// Crawl performs a deeper, path-filtered traversal bounded by depth
	// and page limits.
	Crawl(ctx context.Context, rootURL string, opts CrawlOptions) ([]PageSummary, error)

	// Fetch extracts the content of a single page in the requested
	// formats.
	Fetch(ctx context.Context, pageURL string, formats []string) (*PageContent, error)
}
