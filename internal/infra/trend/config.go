package trend

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"rust-trends/internal/usecase/announce"
)

// Source kinds accepted in SourceConfig.Type.
const (
	TypeGitHub   = "github"
	TypeFeed     = "feed"
	TypeTrending = "trending"
)

// SourceConfig describes one trend source.
type SourceConfig struct {
	Type string `yaml:"type"`
	// URL is the API base for github, the feed URL for feed, and the trending
	// root for trending. Empty selects the public default where one exists.
	URL string `yaml:"url"`

	// github
	Query         string        `yaml:"query"`
	PerPage       int           `yaml:"per_page"`
	CreatedWithin time.Duration `yaml:"created_within"`
	// TokenEnv names the environment variable holding the API token.
	// Tokens never live in the file itself.
	TokenEnv string `yaml:"token_env"`
	Token    string `yaml:"-"`

	// trending
	Language string `yaml:"language"`
	Since    string `yaml:"since"`
}

// SourcesFile is the layout of TREND_SOURCES_FILE.
type SourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSourcesFile reads and validates a source list.
// The path is expected to come from trusted configuration.
func LoadSourcesFile(path string) ([]SourceConfig, error) {
	// #nosec G304 -- path comes from operator configuration, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes a YAML source list. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func ParseSources(data []byte) ([]SourceConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file SourcesFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	if len(file.Sources) == 0 {
		return nil, errors.New("sources file lists no sources")
	}

	for i := range file.Sources {
		sc := &file.Sources[i]
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if sc.TokenEnv != "" {
			sc.Token = os.Getenv(sc.TokenEnv)
		}
	}
	return file.Sources, nil
}

// Validate checks the fields required by the source type.
func (c SourceConfig) Validate() error {
	switch c.Type {
	case TypeGitHub:
		if c.PerPage < 0 || c.PerPage > maxPerPage {
			return fmt.Errorf("per_page must be between 1 and %d", maxPerPage)
		}
		if c.CreatedWithin < 0 {
			return errors.New("created_within must not be negative")
		}
	case TypeFeed:
		if c.URL == "" {
			return errors.New("feed source requires url")
		}
	case TypeTrending:
		switch c.Since {
		case "", SinceDaily, SinceWeekly, SinceMonthly:
		default:
			return fmt.Errorf("since must be one of daily, weekly, monthly, got %q", c.Since)
		}
	case "":
		return errors.New("source type is required")
	default:
		return fmt.Errorf("unknown source type %q", c.Type)
	}
	return nil
}

// NewFromConfig builds one source.
func NewFromConfig(client *http.Client, cfg SourceConfig) (announce.TrendSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case TypeGitHub:
		return NewGitHubSearchSource(client, cfg.URL,
			WithGitHubToken(cfg.Token),
			WithQuery(cfg.Query),
			WithPerPage(cfg.PerPage),
			WithCreatedWithin(cfg.CreatedWithin),
		), nil
	case TypeFeed:
		return NewFeedSource(client, cfg.URL), nil
	default:
		return NewTrendingPageSource(client, cfg.URL, cfg.Language, cfg.Since), nil
	}
}

// NewMultiFromConfigs builds every configured source. A single entry is
// returned unwrapped.
func NewMultiFromConfigs(client *http.Client, cfgs []SourceConfig) (announce.TrendSource, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("no trend sources configured")
	}
	sources := make([]announce.TrendSource, 0, len(cfgs))
	for i, cfg := range cfgs {
		s, err := NewFromConfig(client, cfg)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		sources = append(sources, s)
	}
	if len(sources) == 1 {
		return sources[0], nil
	}
	return NewMultiSource(sources...), nil
}
