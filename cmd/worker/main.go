package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"rust-trends/internal/config"
	"rust-trends/internal/infra/adapter/persistence/sqlite"
	"rust-trends/internal/infra/db"
	"rust-trends/internal/infra/publisher"
	"rust-trends/internal/infra/trend"
	workerPkg "rust-trends/internal/infra/worker"
	"rust-trends/internal/observability/logging"
	"rust-trends/internal/observability/metrics"
	"rust-trends/internal/observability/slo"
	"rust-trends/internal/usecase/announce"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("store_path", workerConfig.StorePath),
		slog.Int("window_days", workerConfig.WindowDays),
		slog.Int("max_posts_per_run", workerConfig.MaxPostsPerRun),
		slog.Int("prune_after_days", workerConfig.PruneAfterDays),
		slog.Duration("run_timeout", workerConfig.RunTimeout),
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Bool("dry_run", workerConfig.DryRun))

	store := initStore(ctx, logger, workerConfig)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}()

	source, err := createTrendSource(logger, workerConfig)
	if err != nil {
		logger.Error("failed to configure trend sources", slog.Any("error", logging.SanitizeError(err)))
		os.Exit(1)
	}

	pub, err := createPublisher(logger)
	if err != nil {
		logger.Error("failed to configure publisher", slog.Any("error", logging.SanitizeError(err)))
		os.Exit(1)
	}

	svc := announce.NewService(source, sqlite.NewLedgerRepo(store.DB()), pub, store, announce.Config{
		WindowDays:     workerConfig.WindowDays,
		MaxPosts:       workerConfig.MaxPostsPerRun,
		PruneAfterDays: workerConfig.PruneAfterDays,
		DryRun:         workerConfig.DryRun,
	})

	job := &runJob{
		logger:  logger,
		svc:     svc,
		cfg:     workerConfig,
		metrics: workerMetrics,
		slo:     slo.NewTracker(),
	}

	if !workerConfig.Scheduled() {
		if err := job.run(ctx); err != nil {
			_ = store.Close()
			os.Exit(1)
		}
		return
	}

	if err := startCronWorker(ctx, logger, job, workerConfig, pub); err != nil {
		logger.Error("worker stopped with error", slog.Any("error", err))
		_ = store.Close()
		os.Exit(1)
	}
}

// initStore opens the ledger store and brings its schema up to date.
// Any failure here is fatal: the worker must never publish without a ledger.
func initStore(ctx context.Context, logger *slog.Logger, cfg *workerPkg.WorkerConfig) *db.Store {
	store, err := db.Open(ctx, cfg.StorePath)
	if err != nil {
		logger.Error("failed to open store",
			slog.String("path", cfg.StorePath),
			slog.Any("error", err))
		os.Exit(1)
	}

	applied, err := store.MigrateIfNeeded(ctx)
	if err != nil {
		logger.Error("failed to migrate store", slog.Any("error", err))
		_ = store.Close()
		os.Exit(1)
	}

	version, err := store.CurrentVersion(ctx)
	if err != nil {
		logger.Error("failed to read schema version", slog.Any("error", err))
		_ = store.Close()
		os.Exit(1)
	}
	metrics.SetSchemaVersion(version)

	logger.Info("store ready",
		slog.String("path", cfg.StorePath),
		slog.Int("schema_version", version),
		slog.Int("migrations_applied", applied))
	return store
}

// createTrendSource builds the candidate source. A YAML source list takes
// precedence over the single GitHub search configured through GITHUB_*.
func createTrendSource(logger *slog.Logger, cfg *workerPkg.WorkerConfig) (announce.TrendSource, error) {
	client := trend.NewHTTPClient(trend.DefaultTimeout)

	if cfg.TrendSourcesFile != "" {
		sources, err := trend.LoadSourcesFile(cfg.TrendSourcesFile)
		if err != nil {
			return nil, err
		}
		source, err := trend.NewMultiFromConfigs(client, sources)
		if err != nil {
			return nil, err
		}
		logger.Info("trend sources loaded",
			slog.String("file", cfg.TrendSourcesFile),
			slog.String("source", source.Name()),
			slog.Int("count", len(sources)))
		return source, nil
	}

	opts := []trend.GitHubOption{trend.WithQuery(cfg.GitHubQuery)}
	if cfg.GitHubToken != "" {
		opts = append(opts, trend.WithGitHubToken(cfg.GitHubToken))
	}
	source := trend.NewGitHubSearchSource(client, cfg.GitHubAPIURL, opts...)
	logger.Info("GitHub search source initialized",
		slog.String("api_url", cfg.GitHubAPIURL),
		slog.String("query", cfg.GitHubQuery),
		slog.Bool("authenticated", cfg.GitHubToken != ""))
	return source, nil
}

// createPublisher builds the publisher selected by PUBLISHER_TYPE.
func createPublisher(logger *slog.Logger) (announce.Publisher, error) {
	pubConfig, err := config.LoadPublisherConfig()
	if err != nil {
		return nil, err
	}
	pub, err := publisher.New(*pubConfig)
	if err != nil {
		return nil, err
	}
	logger.Info("publisher initialized",
		slog.String("type", pubConfig.Type),
		slog.Bool("circuit_breaker", pubConfig.CircuitBreaker))
	return pub, nil
}

// startCronWorker runs the job on the configured schedule next to the health
// and metrics servers until ctx is cancelled or a server fails.
func startCronWorker(ctx context.Context, logger *slog.Logger, job *runJob, cfg *workerPkg.WorkerConfig, pub announce.Publisher) error {
	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), logger)
	job.health = healthServer

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreServerClosed(healthServer.Start(gctx))
	})
	if cfg.MetricsPort != 0 {
		g.Go(func() error {
			return ignoreServerClosed(startMetricsServer(gctx, logger, cfg.MetricsPort, pub))
		})
	}

	// SkipIfStillRunning keeps a single run on the store at any time.
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	entryID, err := c.AddFunc(cfg.CronSchedule, func() {
		_ = job.run(gctx)
	})
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	healthServer.SetNextRun(func() time.Time { return c.Entry(entryID).Next })
	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone))

	<-gctx.Done()
	healthServer.SetReady(false)
	logger.Info("worker shutting down, waiting for running job")
	<-c.Stop().Done()

	return g.Wait()
}

func ignoreServerClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// runJob executes announcement runs and reports their outcome to the worker
// metrics, the SLO tracker and, in cron mode, the health server.
type runJob struct {
	logger  *slog.Logger
	svc     *announce.Service
	cfg     *workerPkg.WorkerConfig
	metrics *workerPkg.WorkerMetrics
	slo     *slo.Tracker
	health  *workerPkg.HealthServer
}

// run executes one announcement run bounded by the run timeout.
// The service logs the run summary itself.
func (j *runJob) run(parent context.Context) error {
	if err := parent.Err(); err != nil {
		j.metrics.RecordRun("skipped")
		return err
	}

	ctx, cancel := context.WithTimeout(logging.WithLogger(parent, j.logger), j.cfg.RunTimeout)
	defer cancel()

	startTime := time.Now()
	stats, err := j.svc.Run(ctx)
	duration := time.Since(startTime)
	j.metrics.RecordRunDuration(duration.Seconds())

	outcome := slo.RunOutcome{Failed: err != nil, Duration: duration}
	if stats != nil {
		outcome.Published = stats.Published
		outcome.PublishFailed = stats.PublishFailed
		j.metrics.RecordPostsPublished(stats.Published)
	}
	j.slo.Observe(outcome)
	if j.health != nil {
		j.health.RecordRun(time.Now(), err)
	}

	if err != nil {
		j.metrics.RecordRun("failure")
		return err
	}
	j.metrics.RecordRun("success")
	j.metrics.RecordLastSuccess()
	return nil
}
