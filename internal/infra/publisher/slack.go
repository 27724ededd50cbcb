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

// SlackMaxLength is the text limit of a Slack message.
const SlackMaxLength = 40000

// SlackConfig contains configuration for Slack webhook delivery.
type SlackConfig struct {
	// WebhookURL is the Slack Incoming Webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Slack API calls
	Timeout time.Duration
}

// SlackPublisher posts messages to a Slack channel via Incoming Webhook.
type SlackPublisher struct {
	config      SlackConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	retryDelay  time.Duration
}

// NewSlackPublisher creates a SlackPublisher.
// The rate limiter allows 1 request/second with a burst of 1
// (Slack webhook limit: 1 message per second).
func NewSlackPublisher(config SlackConfig) *SlackPublisher {
	return &SlackPublisher{
		config:      config,
		httpClient:  newHTTPClient(config.Timeout),
		rateLimiter: NewRateLimiter(1.0, 1),
		retryDelay:  defaultRetryDelay,
	}
}

// SlackWebhookPayload represents the JSON payload sent to Slack webhook.
type SlackWebhookPayload struct {
	Text        string `json:"text"`
	UnfurlLinks bool   `json:"unfurl_links"`
}

// Name implements announce.Publisher.
func (s *SlackPublisher) Name() string { return "slack" }

func (s *SlackPublisher) buildPayload(message string) SlackWebhookPayload {
	return SlackWebhookPayload{
		Text:        fitMessage(message, SlackMaxLength),
		UnfurlLinks: true,
	}
}

func (s *SlackPublisher) sendWebhookRequest(ctx context.Context, message string) error {
	jsonData, err := json.Marshal(s.buildPayload(message))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return do(s.httpClient, s.Name(), req)
}

// Publish implements announce.Publisher.
func (s *SlackPublisher) Publish(ctx context.Context, message string) error {
	requestID := uuid.New().String()

	if err := s.rateLimiter.Wait(ctx, s.Name(), requestID); err != nil {
		return err
	}

	return deliver(ctx, s.Name(), requestID, s.retryDelay, func(ctx context.Context, _ attempt) error {
		return s.sendWebhookRequest(ctx, message)
	})
}
