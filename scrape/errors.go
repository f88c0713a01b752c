package scrape

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrMapping indicates the map capability failed for a site.
type ErrMapping struct {
	Err error
}

func (e ErrMapping) Error() string {
	return fmt.Errorf("mapping: %w", e.Err).Error()
}

func (e ErrMapping) Unwrap() error {
	return e.Err
}

// ErrCrawl indicates the crawl capability failed or timed out.
type ErrCrawl struct {
	Err error
}

func (e ErrCrawl) Error() string {
	return fmt.Errorf("crawl: %w", e.Err).Error()
}

func (e ErrCrawl) Unwrap() error {
	return e.Err
}

// ErrFetch indicates content extraction failed for one page.
type ErrFetch struct {
	URL string
	Err error
}

func (e ErrFetch) Error() string {
	return fmt.Errorf("fetch %s: %w", e.URL, e.Err).Error()
}

func (e ErrFetch) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

func classifyError(err error, statusCode int) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	if statusCode >= 400 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		return wrapped
	}
	return err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var fetch ErrFetch
	if errors.As(err, &fetch) {
		return "fetch"
	}
	var crawl ErrCrawl
	if errors.As(err, &crawl) {
		return "crawl"
	}
	var mapping ErrMapping
	if errors.As(err, &mapping) {
		return "mapping"
	}
	return "other"
}
