// Package config holds typed configuration for outbound integrations.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	pkgconfig "rust-trends/internal/pkg/config"
)

// Publisher kinds accepted in PUBLISHER_TYPE.
const (
	PublisherLog      = "log"
	PublisherNoOp     = "noop"
	PublisherDiscord  = "discord"
	PublisherSlack    = "slack"
	PublisherMastodon = "mastodon"
)

// PublisherConfig holds configuration for the post publisher.
type PublisherConfig struct {
	// Type selects the publisher. Default: "log"
	Type string

	// DiscordWebhookURL is the Discord webhook (includes its token).
	DiscordWebhookURL string

	// SlackWebhookURL is the Slack Incoming Webhook URL.
	SlackWebhookURL string

	// Mastodon holds instance settings for the mastodon publisher.
	Mastodon MastodonConfig

	// Timeout bounds one delivery request. Default: 10s
	Timeout time.Duration

	// CircuitBreaker wraps the publisher in a breaker. Default: true
	CircuitBreaker bool
}

// MastodonConfig holds Mastodon instance settings.
type MastodonConfig struct {
	// InstanceURL is the instance root, e.g. "https://hachyderm.io".
	InstanceURL string
	// AccessToken needs the write:statuses scope.
	AccessToken string
	// Visibility of posted statuses. Default: "public"
	Visibility string
}

// LoadPublisherConfig loads publisher configuration from environment variables.
func LoadPublisherConfig() (*PublisherConfig, error) {
	timeout := pkgconfig.LoadEnvDuration("PUBLISHER_TIMEOUT", 10*time.Second, positiveDuration)
	breaker := pkgconfig.LoadEnvBool("PUBLISHER_CIRCUIT_BREAKER", true)
	for _, w := range append(timeout.Warnings, breaker.Warnings...) {
		slog.Warn("Configuration fallback applied", slog.String("warning", w))
	}

	config := &PublisherConfig{
		Type:              pkgconfig.LoadEnvString("PUBLISHER_TYPE", PublisherLog),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		SlackWebhookURL:   os.Getenv("SLACK_WEBHOOK_URL"),
		Mastodon: MastodonConfig{
			InstanceURL: os.Getenv("MASTODON_INSTANCE_URL"),
			AccessToken: os.Getenv("MASTODON_ACCESS_TOKEN"),
			Visibility:  pkgconfig.LoadEnvString("MASTODON_VISIBILITY", "public"),
		},
		Timeout:        timeout.Value.(time.Duration),
		CircuitBreaker: breaker.Value.(bool),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid publisher configuration: %w", err)
	}

	return config, nil
}

// Validate checks configuration correctness.
func (c *PublisherConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("PUBLISHER_TIMEOUT must be positive")
	}

	switch c.Type {
	case PublisherLog, PublisherNoOp:
		return nil
	case PublisherDiscord:
		return validateEndpoint("DISCORD_WEBHOOK_URL", c.DiscordWebhookURL)
	case PublisherSlack:
		return validateEndpoint("SLACK_WEBHOOK_URL", c.SlackWebhookURL)
	case PublisherMastodon:
		if err := validateEndpoint("MASTODON_INSTANCE_URL", c.Mastodon.InstanceURL); err != nil {
			return err
		}
		if c.Mastodon.AccessToken == "" {
			return fmt.Errorf("MASTODON_ACCESS_TOKEN is required for the mastodon publisher")
		}
		switch c.Mastodon.Visibility {
		case "public", "unlisted", "private", "direct":
		default:
			return fmt.Errorf("MASTODON_VISIBILITY must be one of public, unlisted, private, direct")
		}
		return nil
	default:
		return fmt.Errorf("PUBLISHER_TYPE %q is not supported", c.Type)
	}
}

func positiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

// validateEndpoint does not echo the value: webhook URLs carry their token.
func validateEndpoint(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL", key)
	}
	return nil
}
