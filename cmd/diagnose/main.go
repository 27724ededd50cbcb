// Package main provides a CLI that checks the configured trend sources.
// Usage: rust-trends-diagnose [--sources FILE] [--store PATH] [--window N] [--output json]
//
// Every source is fetched once and its candidates are checked against the
// ledger, so the report shows what the next run would announce. Nothing is
// published or recorded.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/infra/adapter/persistence/sqlite"
	"rust-trends/internal/infra/db"
	"rust-trends/internal/infra/trend"
	"rust-trends/internal/observability/logging"
	"rust-trends/internal/pkg/config"
	"rust-trends/internal/usecase/announce"
	"rust-trends/internal/usecase/selection"
)

func main() {
	var (
		sourcesFile  string
		storePath    string
		windowDays   int
		timeout      time.Duration
		outputFormat string
	)

	flag.StringVar(&sourcesFile, "sources", config.LoadEnvString("TREND_SOURCES_FILE", ""), "YAML trend source list (default: GitHub search from GITHUB_*)")
	flag.StringVar(&storePath, "store", config.LoadEnvString("STORE_PATH", "rust-trends.db"), "Ledger store to check candidates against; skipped if missing")
	flag.IntVar(&windowDays, "window", entity.DefaultWindowDays, "Suppression window in days")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Timeout per source")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.Parse()

	if outputFormat != "text" && outputFormat != "json" {
		fmt.Fprintf(os.Stderr, "Error: Invalid output format '%s'. Use 'text' or 'json'.\n", outputFormat)
		os.Exit(1)
	}
	if windowDays < 1 {
		fmt.Fprintln(os.Stderr, "Error: --window must be at least 1")
		os.Exit(1)
	}

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	ctx := context.Background()

	sources, err := loadSources(sourcesFile)
	if err != nil {
		logger.Error("failed to load trend sources", slog.Any("error", logging.SanitizeError(err)))
		fmt.Fprintf(os.Stderr, "Error: Failed to load trend sources: %v\n", logging.SanitizeError(err))
		os.Exit(1)
	}

	ledger, closeStore := openLedger(ctx, logger, storePath)
	defer closeStore()

	diagnostics := diagnoseAll(ctx, sources, ledger, windowDays, time.Now(), timeout)

	switch outputFormat {
	case "json":
		err = writeJSONReport(os.Stdout, diagnostics)
	default:
		err = writeReport(os.Stdout, diagnostics, windowDays, time.Now())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to write report: %v\n", err)
		os.Exit(1)
	}

	if !anyHealthy(diagnostics) {
		closeStore()
		os.Exit(2)
	}
}

// loadSources builds one source per configured entry, without merging, so
// each is diagnosed on its own.
func loadSources(sourcesFile string) ([]announce.TrendSource, error) {
	client := trend.NewHTTPClient(trend.DefaultTimeout)

	if sourcesFile == "" {
		opts := []trend.GitHubOption{
			trend.WithQuery(config.LoadEnvString("GITHUB_QUERY", trend.DefaultGitHubQuery)),
		}
		if token := config.LoadEnvString("GITHUB_TOKEN", ""); token != "" {
			opts = append(opts, trend.WithGitHubToken(token))
		}
		apiURL := config.LoadEnvString("GITHUB_API_URL", trend.DefaultGitHubAPIURL)
		return []announce.TrendSource{trend.NewGitHubSearchSource(client, apiURL, opts...)}, nil
	}

	cfgs, err := trend.LoadSourcesFile(sourcesFile)
	if err != nil {
		return nil, err
	}
	sources := make([]announce.TrendSource, 0, len(cfgs))
	for i, cfg := range cfgs {
		src, err := trend.NewFromConfig(client, cfg)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// openLedger opens an existing store read-only. A missing store, or one whose
// schema this build does not understand, is reported and skipped: the
// diagnosis then treats every candidate as never announced. The store file is
// never created, initialized or migrated here.
func openLedger(ctx context.Context, logger *slog.Logger, path string) (selection.Ledger, func()) {
	noop := func() {}
	if path == "" {
		return nil, noop
	}

	store, err := db.OpenReadOnly(ctx, path)
	if errors.Is(err, entity.ErrNotFound) {
		logger.Warn("store not found, ledger check skipped", slog.String("path", path))
		return nil, noop
	}
	if err != nil {
		logger.Warn("failed to open store, ledger check skipped",
			slog.String("path", path),
			slog.Any("error", err))
		return nil, noop
	}

	version, err := store.CurrentVersion(ctx)
	if err == nil && version != store.ExpectedVersion() {
		err = fmt.Errorf("schema version %d, expected %d: %w", version, store.ExpectedVersion(), entity.ErrUnsupportedSchema)
	}
	if err != nil {
		logger.Warn("store not usable, ledger check skipped",
			slog.String("path", path),
			slog.Any("error", err))
		_ = store.Close()
		return nil, noop
	}

	var once bool
	return sqlite.NewLedgerRepo(store.DB()), func() {
		if once {
			return
		}
		once = true
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}
}
