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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thepicksmart/wish-harvest/config"
	"github.com/thepicksmart/wish-harvest/models"
	"github.com/thepicksmart/wish-harvest/pipeline"
	"github.com/thepicksmart/wish-harvest/scraper"
)

func main() {
	// Credentials and overrides may live in a local .env file; a missing
	// file is fine.
	_ = godotenv.Load()

	defaultCfg := config.DefaultConfig()
	pagesDefault := defaultCfg.PageCount
	if value, ok, err := config.EnvInt("HARVEST_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid HARVEST_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	pageSizeDefault := defaultCfg.PageSize
	if value, ok, err := config.EnvInt("HARVEST_PAGE_SIZE"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid HARVEST_PAGE_SIZE: %v\n", err)
		os.Exit(1)
	} else if ok {
		pageSizeDefault = value
	}
	priceFloorDefault := defaultCfg.PriceFloor
	if value, ok, err := config.EnvFloat("HARVEST_PRICE_FLOOR"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid HARVEST_PRICE_FLOOR: %v\n", err)
		os.Exit(1)
	} else if ok {
		priceFloorDefault = value
	}
	outputDefault := defaultCfg.OutputDir
	if value, ok := config.EnvString("HARVEST_OUTPUT_DIR"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("HARVEST_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	pageCount := flag.Int("pages", pagesDefault, "Feed pages to fetch per category")
	pageSize := flag.Int("page-size", pageSizeDefault, "Items per feed page")
	priceFloor := flag.Float64("price-floor", priceFloorDefault, "Minimum variation price to keep")
	delaySec := flag.Int("delay", int(defaultCfg.DetailDelay/time.Second), "Delay between detail fetches (seconds)")
	backoffSec := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Second), "Backoff between retries of a failed request (seconds)")
	timeoutSec := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "Per-request timeout (seconds)")
	maxAttempts := flag.Int("max-attempts", defaultCfg.MaxAttempts, "Attempts per request before giving up (0 retries forever)")
	outputDir := flag.String("output", outputDefault, "Output directory for category files")
	categoriesFlag := flag.String("categories", "", "Category overrides as id=label,id=label (default: built-in set)")
	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Base URL of the target site")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.BaseURL = *baseURL
	cfg.PageCount = *pageCount
	cfg.PageSize = *pageSize
	cfg.PriceFloor = *priceFloor
	cfg.DetailDelay = time.Duration(*delaySec) * time.Second
	cfg.RetryBackoff = time.Duration(*backoffSec) * time.Second
	cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	cfg.MaxAttempts = *maxAttempts
	cfg.OutputDir = *outputDir
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	cfg.Email, _ = config.EnvString("HARVEST_EMAIL")
	cfg.Password, _ = config.EnvString("HARVEST_PASSWORD")
	if *categoriesFlag != "" {
		categories, err := config.ParseCategories(*categoriesFlag)
		if err != nil {
			slog.Error("invalid categories flag", slog.Any("error", err))
			os.Exit(1)
		}
		cfg.Categories = categories
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting harvest",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("categories", len(cfg.Categories)),
		slog.Int("pages", cfg.PageCount),
		slog.Int("page_size", cfg.PageSize),
		slog.Float64("price_floor", cfg.PriceFloor),
	)

	metrics := scraper.NewMetrics()
	client, err := scraper.NewClient(cfg, metrics)
	if err != nil {
		slog.Error("initialising client", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current item")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	session, err := client.AcquireAnonymousToken(ctx)
	if err != nil {
		slog.Error("anonymous token acquisition failed", slog.Any("error", err))
		os.Exit(1)
	}
	session, err = client.EstablishSession(ctx, cfg.Email, cfg.Password, session)
	if err != nil {
		slog.Error("session establishment failed", slog.Any("error", err))
		os.Exit(1)
	}

	runner, err := pipeline.NewRunner(cfg, client, metrics)
	if err != nil {
		slog.Error("initialising pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	result, err := runner.Run(ctx, session)
	if err != nil {
		slog.Error("harvest interrupted", slog.Any("error", err))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, cfg.OutputDir)
	if len(result.FailedCategories()) > 0 || err != nil {
		os.Exit(1)
	}
}

func printSummary(result *models.RunResult, outputDir string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Harvest complete")

	items, skipped, duplicates, pages := 0, 0, 0, 0
	for _, c := range result.Categories {
		items += c.ItemsSeen
		skipped += c.ItemsSkipped
		duplicates += c.Duplicates
		pages += c.PagesFetched
	}

	fmt.Printf("  Categories:    %d\n", len(result.Categories))
	fmt.Printf("  Pages:         %d\n", pages)
	fmt.Printf("  Items:         %d\n", items)
	fmt.Printf("  Skipped:       %d\n", skipped)
	fmt.Printf("  Duplicates:    %d\n", duplicates)
	fmt.Printf("  Records:       %d\n", result.TotalRecords())
	if failed := result.FailedCategories(); len(failed) > 0 {
		fmt.Printf("  Failed:        %v\n", failed)
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Second))
	fmt.Printf("  Output dir:    %s\n", outputDir)
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
