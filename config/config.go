// Package config holds run configuration for the discovery pipeline. It is
// read once at orchestration start and immutable for the run's duration.
package config

import (
	"fmt"
	"time"
)

// Config holds discovery configuration.
type Config struct {
	MaxRequestsPerMinute int
	MaxConcurrentJobs    int
	MaxPages             int
	MaxDepth             int

	// Timeout bounds the whole run; it is checked between phases, not
	// preemptively mid-phase.
	Timeout      time.Duration
	CrawlTimeout time.Duration
	FetchTimeout time.Duration

	UserAgent    string
	OutputFile   string
	MetricsAddr  string
	CrawlEnabled bool
	Verbose      bool
}

// DefaultConfig returns conservative defaults sized for free-tier scraping
// quotas.
func DefaultConfig() *Config {
	return &Config{
		MaxRequestsPerMinute: 10,
		MaxConcurrentJobs:    3,
		MaxPages:             200,
		MaxDepth:             8,
		Timeout:              10 * time.Minute,
		CrawlTimeout:         2 * time.Minute,
		FetchTimeout:         15 * time.Second,
		UserAgent:            "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		OutputFile:           "output/discovery.json",
		CrawlEnabled:         true,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("max requests per minute must be positive")
	}
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("max concurrent jobs must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max depth must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.CrawlTimeout <= 0 {
		return fmt.Errorf("crawl timeout must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.CrawlTimeout > c.Timeout {
		return fmt.Errorf("crawl timeout (%s) cannot exceed overall timeout (%s)", c.CrawlTimeout, c.Timeout)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	return nil
}
