package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DiscordMaxLength is the content limit of a Discord message.
const DiscordMaxLength = 2000

// DiscordConfig contains configuration for Discord webhook delivery.
type DiscordConfig struct {
	// WebhookURL is the Discord webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Discord API calls
	Timeout time.Duration
}

// DiscordPublisher posts messages to a Discord channel via webhook.
type DiscordPublisher struct {
	config      DiscordConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	retryDelay  time.Duration
}

// NewDiscordPublisher creates a DiscordPublisher.
// The rate limiter allows 0.5 requests/second with a burst of 3
// (Discord webhook limit: 30 requests per minute).
func NewDiscordPublisher(config DiscordConfig) *DiscordPublisher {
	return &DiscordPublisher{
		config:      config,
		httpClient:  newHTTPClient(config.Timeout),
		rateLimiter: NewRateLimiter(0.5, 3),
		retryDelay:  defaultRetryDelay,
	}
}

// DiscordWebhookPayload represents the JSON payload sent to Discord webhook.
type DiscordWebhookPayload struct {
	Content         string                 `json:"content"`
	AllowedMentions DiscordAllowedMentions `json:"allowed_mentions"`
}

// DiscordAllowedMentions controls which mentions in content ping users.
type DiscordAllowedMentions struct {
	Parse []string `json:"parse"`
}

// Name implements announce.Publisher.
func (d *DiscordPublisher) Name() string { return "discord" }

// buildPayload truncates the message and disables every mention, so
// descriptions containing @everyone do not ping the channel.
func (d *DiscordPublisher) buildPayload(message string) DiscordWebhookPayload {
	return DiscordWebhookPayload{
		Content:         fitMessage(message, DiscordMaxLength),
		AllowedMentions: DiscordAllowedMentions{Parse: []string{}},
	}
}

func (d *DiscordPublisher) sendWebhookRequest(ctx context.Context, message string) error {
	jsonData, err := json.Marshal(d.buildPayload(message))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return do(d.httpClient, d.Name(), req)
}

// Publish implements announce.Publisher.
func (d *DiscordPublisher) Publish(ctx context.Context, message string) error {
	requestID := uuid.New().String()

	if err := d.rateLimiter.Wait(ctx, d.Name(), requestID); err != nil {
		return err
	}

	return deliver(ctx, d.Name(), requestID, d.retryDelay, func(ctx context.Context, _ attempt) error {
		return d.sendWebhookRequest(ctx, message)
	})
}
