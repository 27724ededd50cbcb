package worker

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// globalTestMetrics is a shared metrics instance for tests to avoid
// duplicate Prometheus registration errors. In production, metrics are
// created once at startup, so this simulates that behavior.
var globalTestMetrics = NewWorkerMetrics()

var workerEnvKeys = []string{
	"STORE_PATH", "WINDOW_DAYS", "MAX_POSTS_PER_RUN", "PRUNE_AFTER_DAYS", "RUN_TIMEOUT",
	"CRON_SCHEDULE", "WORKER_TIMEZONE", "HEALTH_PORT", "METRICS_PORT", "DRY_RUN",
	"TREND_SOURCES_FILE", "GITHUB_API_URL", "GITHUB_TOKEN", "GITHUB_QUERY",
}

// clearWorkerEnv blanks every worker variable for the duration of the test.
func clearWorkerEnv(t *testing.T) {
	t.Helper()
	for _, key := range workerEnvKeys {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.StorePath != "rust-trends.db" {
		t.Errorf("Expected StorePath 'rust-trends.db', got '%s'", config.StorePath)
	}
	if config.WindowDays != 14 {
		t.Errorf("Expected WindowDays 14, got %d", config.WindowDays)
	}
	if config.MaxPostsPerRun != 0 || config.PruneAfterDays != 0 {
		t.Errorf("Expected no post cap and no pruning by default, got %d / %d", config.MaxPostsPerRun, config.PruneAfterDays)
	}
	if config.RunTimeout != 10*time.Minute {
		t.Errorf("Expected RunTimeout 10m, got %v", config.RunTimeout)
	}
	if config.Scheduled() {
		t.Error("Expected run-once mode by default")
	}
	if config.Timezone != "UTC" {
		t.Errorf("Expected Timezone 'UTC', got '%s'", config.Timezone)
	}
	if config.HealthPort != 9091 {
		t.Errorf("Expected HealthPort 9091, got %d", config.HealthPort)
	}
	if config.GitHubQuery != "language:rust" {
		t.Errorf("Expected GitHubQuery 'language:rust', got '%s'", config.GitHubQuery)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}
}

func TestWorkerConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*WorkerConfig)
		wantError string
	}{
		{name: "defaults", mutate: func(*WorkerConfig) {}},
		{name: "scheduled", mutate: func(c *WorkerConfig) { c.CronSchedule = "0 */6 * * *" }},
		{name: "metrics enabled", mutate: func(c *WorkerConfig) { c.MetricsPort = 9090 }},
		{name: "boundaries", mutate: func(c *WorkerConfig) {
			c.WindowDays = 365
			c.MaxPostsPerRun = 100
			c.PruneAfterDays = 3650
			c.RunTimeout = time.Hour
			c.HealthPort = 65535
		}},
		{name: "empty store path", mutate: func(c *WorkerConfig) { c.StorePath = "" }, wantError: "store path"},
		{name: "window zero", mutate: func(c *WorkerConfig) { c.WindowDays = 0 }, wantError: "window days"},
		{name: "window too large", mutate: func(c *WorkerConfig) { c.WindowDays = 366 }, wantError: "window days"},
		{name: "negative max posts", mutate: func(c *WorkerConfig) { c.MaxPostsPerRun = -1 }, wantError: "max posts"},
		{name: "prune too large", mutate: func(c *WorkerConfig) { c.PruneAfterDays = 4000 }, wantError: "prune after days"},
		{name: "timeout too short", mutate: func(c *WorkerConfig) { c.RunTimeout = 30 * time.Second }, wantError: "run timeout"},
		{name: "invalid cron", mutate: func(c *WorkerConfig) { c.CronSchedule = "every day" }, wantError: "cron schedule"},
		{name: "invalid timezone", mutate: func(c *WorkerConfig) { c.Timezone = "Mars/Olympus" }, wantError: "timezone"},
		{name: "privileged health port", mutate: func(c *WorkerConfig) { c.HealthPort = 80 }, wantError: "health port"},
		{name: "privileged metrics port", mutate: func(c *WorkerConfig) { c.MetricsPort = 443 }, wantError: "metrics port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantError)
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantError, err)
			}
		})
	}
}

func TestWorkerConfig_Validate_MultipleErrors(t *testing.T) {
	config := DefaultConfig()
	config.WindowDays = 0
	config.Timezone = "Invalid/Zone"

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "window days") || !strings.Contains(err.Error(), "timezone") {
		t.Errorf("Expected both errors to be reported, got: %v", err)
	}
}

func TestWorkerConfig_Location(t *testing.T) {
	config := DefaultConfig()
	config.Timezone = "Europe/Berlin"
	if got := config.Location().String(); got != "Europe/Berlin" {
		t.Errorf("Expected Europe/Berlin, got %s", got)
	}

	config.Timezone = "Nowhere/Land"
	if got := config.Location(); got != time.UTC {
		t.Errorf("Expected UTC fallback, got %v", got)
	}
}

func TestLoadConfigFromEnv_AllEnvVarsValid(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("STORE_PATH", "/var/lib/rust-trends/ledger.db")
	t.Setenv("WINDOW_DAYS", "7")
	t.Setenv("MAX_POSTS_PER_RUN", "5")
	t.Setenv("PRUNE_AFTER_DAYS", "90")
	t.Setenv("RUN_TIMEOUT", "20m")
	t.Setenv("CRON_SCHEDULE", "0 9 * * *")
	t.Setenv("WORKER_TIMEZONE", "Asia/Tokyo")
	t.Setenv("HEALTH_PORT", "8081")
	t.Setenv("METRICS_PORT", "9100")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("TREND_SOURCES_FILE", "/etc/rust-trends/sources.yaml")
	t.Setenv("GITHUB_API_URL", "https://ghe.example.com/api/v3")
	t.Setenv("GITHUB_TOKEN", "ghp_x")
	t.Setenv("GITHUB_QUERY", "language:rust stars:>100")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	want := WorkerConfig{
		StorePath:        "/var/lib/rust-trends/ledger.db",
		WindowDays:       7,
		MaxPostsPerRun:   5,
		PruneAfterDays:   90,
		RunTimeout:       20 * time.Minute,
		CronSchedule:     "0 9 * * *",
		Timezone:         "Asia/Tokyo",
		HealthPort:       8081,
		MetricsPort:      9100,
		DryRun:           true,
		TrendSourcesFile: "/etc/rust-trends/sources.yaml",
		GitHubAPIURL:     "https://ghe.example.com/api/v3",
		GitHubToken:      "ghp_x",
		GitHubQuery:      "language:rust stars:>100",
	}
	if *config != want {
		t.Errorf("Config mismatch:\n got  %+v\n want %+v", *config, want)
	}

	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_MissingEnvVars(t *testing.T) {
	clearWorkerEnv(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if *config != DefaultConfig() {
		t.Errorf("Expected defaults, got %+v", *config)
	}
	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		envKey string
		value  string
		check  func(*WorkerConfig) bool
	}{
		{"WINDOW_DAYS", "0", func(c *WorkerConfig) bool { return c.WindowDays == 14 }},
		{"WINDOW_DAYS", "two weeks", func(c *WorkerConfig) bool { return c.WindowDays == 14 }},
		{"MAX_POSTS_PER_RUN", "1000", func(c *WorkerConfig) bool { return c.MaxPostsPerRun == 0 }},
		{"PRUNE_AFTER_DAYS", "-3", func(c *WorkerConfig) bool { return c.PruneAfterDays == 0 }},
		{"RUN_TIMEOUT", "5s", func(c *WorkerConfig) bool { return c.RunTimeout == 10*time.Minute }},
		{"CRON_SCHEDULE", "invalid cron", func(c *WorkerConfig) bool { return c.CronSchedule == "" }},
		{"WORKER_TIMEZONE", "Invalid/Zone", func(c *WorkerConfig) bool { return c.Timezone == "UTC" }},
		{"HEALTH_PORT", "80", func(c *WorkerConfig) bool { return c.HealthPort == 9091 }},
		{"METRICS_PORT", "99999", func(c *WorkerConfig) bool { return c.MetricsPort == 0 }},
		{"DRY_RUN", "maybe", func(c *WorkerConfig) bool { return !c.DryRun }},
	}

	for _, tt := range tests {
		t.Run(tt.envKey+"="+tt.value, func(t *testing.T) {
			clearWorkerEnv(t)
			t.Setenv(tt.envKey, tt.value)

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			config, err := LoadConfigFromEnv(logger, globalTestMetrics)
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if !tt.check(config) {
				t.Errorf("Expected default to be applied, got %+v", *config)
			}
			if !strings.Contains(buf.String(), "Configuration fallback applied") {
				t.Error("Expected fallback warning in logs")
			}
			if err := config.Validate(); err != nil {
				t.Errorf("Fail-open config must validate, got: %v", err)
			}
		})
	}
}

func TestLoadConfigFromEnv_PartiallyValid(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("CRON_SCHEDULE", "0 6 * * *")      // Valid
	t.Setenv("WORKER_TIMEZONE", "Invalid/Zone") // Invalid
	t.Setenv("WINDOW_DAYS", "30")               // Valid
	t.Setenv("RUN_TIMEOUT", "invalid")          // Invalid

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if config.CronSchedule != "0 6 * * *" {
		t.Errorf("Expected CronSchedule '0 6 * * *', got '%s'", config.CronSchedule)
	}
	if config.WindowDays != 30 {
		t.Errorf("Expected WindowDays 30, got %d", config.WindowDays)
	}
	if config.Timezone != DefaultConfig().Timezone {
		t.Errorf("Expected default Timezone, got '%s'", config.Timezone)
	}
	if config.RunTimeout != DefaultConfig().RunTimeout {
		t.Errorf("Expected default RunTimeout, got %v", config.RunTimeout)
	}

	warningCount := strings.Count(buf.String(), "Configuration fallback applied")
	if warningCount != 2 {
		t.Errorf("Expected 2 warnings, got %d", warningCount)
	}
}
