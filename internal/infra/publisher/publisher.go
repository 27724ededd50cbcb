// Package publisher delivers rendered posts to chat and social platforms.
//
// Every publisher applies its own rate limit, makes at most two delivery
// attempts, waits out one 429 retry_after, and truncates posts to the
// platform limit. Failures are reported as entity.ErrPublishFailed so the
// announce service can skip the candidate and retry it on a later run.
package publisher

import (
	"fmt"
	"net/http"
	"time"

	"rust-trends/internal/config"
	"rust-trends/internal/observability/tracing"
	"rust-trends/internal/usecase/announce"
)

// Compile-time interface checks.
var (
	_ announce.Publisher = (*DiscordPublisher)(nil)
	_ announce.Publisher = (*SlackPublisher)(nil)
	_ announce.Publisher = (*MastodonPublisher)(nil)
	_ announce.Publisher = (*LogPublisher)(nil)
	_ announce.Publisher = (*NoOpPublisher)(nil)
	_ announce.Publisher = (*BreakerPublisher)(nil)
)

// New builds the publisher selected by cfg. Network publishers are wrapped in
// a circuit breaker when cfg.CircuitBreaker is set.
func New(cfg config.PublisherConfig) (announce.Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var p announce.Publisher
	switch cfg.Type {
	case config.PublisherLog:
		return NewLogPublisher(nil), nil
	case config.PublisherNoOp:
		return NewNoOpPublisher(), nil
	case config.PublisherDiscord:
		p = NewDiscordPublisher(DiscordConfig{WebhookURL: cfg.DiscordWebhookURL, Timeout: cfg.Timeout})
	case config.PublisherSlack:
		p = NewSlackPublisher(SlackConfig{WebhookURL: cfg.SlackWebhookURL, Timeout: cfg.Timeout})
	case config.PublisherMastodon:
		p = NewMastodonPublisher(MastodonConfig{
			InstanceURL: cfg.Mastodon.InstanceURL,
			AccessToken: cfg.Mastodon.AccessToken,
			Visibility:  cfg.Mastodon.Visibility,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported publisher type %q", cfg.Type)
	}

	if cfg.CircuitBreaker {
		p = WithCircuitBreaker(p)
	}
	return p, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: tracing.NewTransport(http.DefaultTransport),
	}
}
