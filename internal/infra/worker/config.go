package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rust-trends/internal/domain/entity"
	"rust-trends/internal/pkg/config"
)

// WorkerConfig holds the configuration for the announcer worker.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// Every field has a default and a validation rule, so the worker can run
// even when the environment is partly wrong.
type WorkerConfig struct {
	// StorePath is the SQLite file holding the ledger.
	// Default: "rust-trends.db"
	StorePath string

	// WindowDays is the suppression window of the dedup ledger.
	// Range: 1-365
	// Default: 14
	WindowDays int

	// MaxPostsPerRun caps successful posts per run. 0 means no cap.
	// Range: 0-100
	// Default: 0
	MaxPostsPerRun int

	// PruneAfterDays removes ledger entries older than this at the end of a run.
	// 0 disables pruning.
	// Range: 0-3650
	// Default: 0
	PruneAfterDays int

	// RunTimeout bounds one announcement run.
	// Range: 1m-1h
	// Default: 10 minutes
	RunTimeout time.Duration

	// CronSchedule is the cron expression for scheduled runs.
	// Format: "minute hour day month weekday"
	// Empty means run once and exit.
	// Default: ""
	CronSchedule string

	// Timezone is the IANA timezone name for cron scheduling.
	// Default: "UTC"
	Timezone string

	// HealthPort is the port of the health check server in cron mode.
	// Range: 1024-65535 (avoid privileged ports)
	// Default: 9091
	HealthPort int

	// MetricsPort serves /metrics when non-zero.
	// Range: 0 or 1024-65535
	// Default: 0
	MetricsPort int

	// DryRun logs posts without publishing or recording them.
	// Default: false
	DryRun bool

	// TrendSourcesFile is a YAML source list. Empty means the GitHub search
	// source configured by the GITHUB_* variables.
	TrendSourcesFile string

	// GitHubAPIURL is the base URL of the GitHub REST API.
	// Default: "https://api.github.com"
	GitHubAPIURL string

	// GitHubToken authenticates search requests. Optional.
	GitHubToken string

	// GitHubQuery is the repository search query.
	// Default: "language:rust"
	GitHubQuery string
}

// DefaultConfig returns a WorkerConfig with default values: a single run
// against the public GitHub API with the standard 14-day window.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		StorePath:      "rust-trends.db",
		WindowDays:     entity.DefaultWindowDays,
		MaxPostsPerRun: 0,
		PruneAfterDays: 0,
		RunTimeout:     10 * time.Minute,
		CronSchedule:   "",
		Timezone:       "UTC",
		HealthPort:     9091,
		MetricsPort:    0,
		GitHubAPIURL:   "https://api.github.com",
		GitHubQuery:    "language:rust",
	}
}

// Scheduled reports whether the worker runs under cron rather than once.
func (c *WorkerConfig) Scheduled() bool {
	return c.CronSchedule != ""
}

// Location returns the scheduling timezone, falling back to UTC.
func (c *WorkerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks if the configuration values are valid.
// If multiple fields are invalid, all errors are collected and returned together.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if c.StorePath == "" {
		errs = append(errs, errors.New("store path: cannot be empty"))
	}

	if err := config.ValidateIntRange(c.WindowDays, 1, 365); err != nil {
		errs = append(errs, fmt.Errorf("window days: %w", err))
	}

	if err := config.ValidateIntRange(c.MaxPostsPerRun, 0, 100); err != nil {
		errs = append(errs, fmt.Errorf("max posts per run: %w", err))
	}

	if err := config.ValidateIntRange(c.PruneAfterDays, 0, 3650); err != nil {
		errs = append(errs, fmt.Errorf("prune after days: %w", err))
	}

	if err := validateRunTimeout(c.RunTimeout); err != nil {
		errs = append(errs, fmt.Errorf("run timeout: %w", err))
	}

	if err := validateOptionalCron(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}

	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}

	if err := validatePort(c.HealthPort); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if c.MetricsPort != 0 {
		if err := validatePort(c.MetricsPort); err != nil {
			errs = append(errs, fmt.Errorf("metrics port: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func validateRunTimeout(d time.Duration) error {
	return config.ValidateDuration(d, time.Minute, time.Hour)
}

func validateOptionalCron(schedule string) error {
	if schedule == "" {
		return nil
	}
	return config.ValidateCronSchedule(schedule)
}

func validatePort(port int) error {
	return config.ValidateIntRange(port, 1024, 65535)
}

func validateMetricsPort(port int) error {
	if port == 0 {
		return nil
	}
	return validatePort(port)
}

// LoadConfigFromEnv loads worker configuration from environment variables
// with validation and automatic fallback to default values on failure.
//
// This function implements the fail-open strategy:
//  1. Start with DefaultConfig() as base
//  2. Load each field from environment variables
//  3. If validation fails: use default value, log warning, increment metrics
//  4. Never return error - always return a valid configuration
//
// Environment variables:
//   - STORE_PATH, WINDOW_DAYS, MAX_POSTS_PER_RUN, PRUNE_AFTER_DAYS, RUN_TIMEOUT
//   - CRON_SCHEDULE, WORKER_TIMEZONE, HEALTH_PORT, METRICS_PORT, DRY_RUN
//   - TREND_SOURCES_FILE, GITHUB_API_URL, GITHUB_TOKEN, GITHUB_QUERY
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	apply := func(field, label string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", label),
				slog.String("warning", warning))
		}
	}

	cfg.StorePath = config.LoadEnvString("STORE_PATH", cfg.StorePath)

	result := config.LoadEnvInt("WINDOW_DAYS", cfg.WindowDays, func(v int) error {
		return config.ValidateIntRange(v, 1, 365)
	})
	cfg.WindowDays = result.Value.(int)
	apply("window_days", "WindowDays", result)

	result = config.LoadEnvInt("MAX_POSTS_PER_RUN", cfg.MaxPostsPerRun, func(v int) error {
		return config.ValidateIntRange(v, 0, 100)
	})
	cfg.MaxPostsPerRun = result.Value.(int)
	apply("max_posts_per_run", "MaxPostsPerRun", result)

	result = config.LoadEnvInt("PRUNE_AFTER_DAYS", cfg.PruneAfterDays, func(v int) error {
		return config.ValidateIntRange(v, 0, 3650)
	})
	cfg.PruneAfterDays = result.Value.(int)
	apply("prune_after_days", "PruneAfterDays", result)

	result = config.LoadEnvDuration("RUN_TIMEOUT", cfg.RunTimeout, validateRunTimeout)
	cfg.RunTimeout = result.Value.(time.Duration)
	apply("run_timeout", "RunTimeout", result)

	result = config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, validateOptionalCron)
	cfg.CronSchedule = result.Value.(string)
	apply("cron_schedule", "CronSchedule", result)

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	apply("timezone", "Timezone", result)

	result = config.LoadEnvInt("HEALTH_PORT", cfg.HealthPort, validatePort)
	cfg.HealthPort = result.Value.(int)
	apply("health_port", "HealthPort", result)

	result = config.LoadEnvInt("METRICS_PORT", cfg.MetricsPort, validateMetricsPort)
	cfg.MetricsPort = result.Value.(int)
	apply("metrics_port", "MetricsPort", result)

	result = config.LoadEnvBool("DRY_RUN", cfg.DryRun)
	cfg.DryRun = result.Value.(bool)
	apply("dry_run", "DryRun", result)

	cfg.TrendSourcesFile = config.LoadEnvString("TREND_SOURCES_FILE", "")
	cfg.GitHubAPIURL = config.LoadEnvString("GITHUB_API_URL", cfg.GitHubAPIURL)
	cfg.GitHubToken = config.LoadEnvString("GITHUB_TOKEN", "")
	cfg.GitHubQuery = config.LoadEnvString("GITHUB_QUERY", cfg.GitHubQuery)

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	// Always return valid config (fail-open strategy)
	return &cfg, nil
}
