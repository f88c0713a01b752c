package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bluejay-tic/certdiscovery/config"
	"github.com/bluejay-tic/certdiscovery/discovery"
	"github.com/bluejay-tic/certdiscovery/models"
	"github.com/bluejay-tic/certdiscovery/ratelimit"
	"github.com/bluejay-tic/certdiscovery/scrape"
)

func main() {
	cfg := config.DefaultConfig()
	if err := config.LoadEnv(""); err != nil {
		fmt.Fprintf(os.Stderr, "load env: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.FromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "read environment: %v\n", err)
		os.Exit(1)
	}

	name := flag.String("name", "", "Certification name (required)")
	issuingBody := flag.String("issuing-body", "", "Certification issuing body (required)")
	region := flag.String("region", "", "Region the certification applies to (required)")
	officialLink := flag.String("url", "", "Official website of the issuing body (required)")

	maxPages := flag.Int("pages", cfg.MaxPages, "Maximum pages to discover per site")
	maxDepth := flag.Int("depth", cfg.MaxDepth, "Maximum crawl depth")
	jobs := flag.Int("jobs", cfg.MaxConcurrentJobs, "Number of concurrent extraction workers")
	rpm := flag.Int("rpm", cfg.MaxRequestsPerMinute, "Maximum scraping calls per minute")
	timeoutSec := flag.Int("timeout", int(cfg.Timeout.Seconds()), "Overall run timeout (seconds)")
	crawl := flag.Bool("crawl", cfg.CrawlEnabled, "Run the deep crawl pass after mapping")
	outputFile := flag.String("output", cfg.OutputFile, "Output file path")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg.MaxPages = *maxPages
	cfg.MaxDepth = *maxDepth
	cfg.MaxConcurrentJobs = *jobs
	cfg.MaxRequestsPerMinute = *rpm
	cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	cfg.CrawlEnabled = *crawl
	cfg.OutputFile = *outputFile
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	query := models.CertificationQuery{
		Name:         *name,
		IssuingBody:  *issuingBody,
		Region:       *region,
		OfficialLink: *officialLink,
	}
	if err := query.Validate(); err != nil {
		slog.Error("invalid query", slog.Any("error", err))
		flag.Usage()
		os.Exit(1)
	}

	limiter, err := ratelimit.NewLimiter(cfg.MaxRequestsPerMinute)
	if err != nil {
		slog.Error("initialising rate limiter", slog.Any("error", err))
		os.Exit(1)
	}

	scrapeMetrics := scrape.NewMetrics()
	client, err := scrape.NewClient(cfg, limiter, scrape.WithMetrics(scrapeMetrics))
	if err != nil {
		slog.Error("initialising scrape client", slog.Any("error", err))
		os.Exit(1)
	}

	runMetrics := discovery.NewMetrics()
	orchestrator, err := discovery.New(cfg, client, logger, discovery.WithMetrics(runMetrics))
	if err != nil {
		slog.Error("initialising orchestrator", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := discovery.NewJSONWriter(cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		gatherers := prometheus.Gatherers{scrapeMetrics.Registry, runMetrics.Registry}
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result, err := orchestrator.Discover(ctx, query)
	if err != nil {
		slog.Error("discovery failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Write(result); err != nil {
		slog.Error("writing result", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, writer.Path())
}

func printSummary(result *models.DiscoveryResult, outputFile string) {
	summary := result.Summarize()

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Discovery complete")
	fmt.Printf("  Certification: %s (%s, %s)\n", summary.Certification, summary.IssuingBody, summary.Region)
	fmt.Printf("  Pages found:   %d\n", summary.TotalPages)
	fmt.Printf("  Pages fetched: %d\n", summary.PagesFetched)
	for category, count := range summary.CategoryCount {
		fmt.Printf("    %-28s %d\n", category, count)
	}
	fmt.Printf("  Overall score: %.1f\n", summary.OverallScore)
	if summary.Degraded {
		fmt.Println("  Note: crawl failed, structure built from map results only")
	}
	if summary.Truncated {
		fmt.Println("  Note: run hit its deadline, result is partial")
	}
	fmt.Printf("  Duration:      %v\n", result.Metadata.Duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
