package publisher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MastodonMaxLength is the default status limit of a Mastodon instance.
const MastodonMaxLength = 500

// MastodonConfig contains configuration for posting statuses.
type MastodonConfig struct {
	// InstanceURL is the instance root, e.g. "https://mastodon.social".
	InstanceURL string

	// AccessToken is a bearer token with the write:statuses scope.
	AccessToken string

	// Visibility is public, unlisted, private, or direct. Empty means public.
	Visibility string

	// Timeout is the HTTP request timeout for Mastodon API calls
	Timeout time.Duration
}

// MastodonPublisher posts statuses through the Mastodon REST API.
type MastodonPublisher struct {
	config      MastodonConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	retryDelay  time.Duration
}

// NewMastodonPublisher creates a MastodonPublisher.
// The rate limiter allows one status every 10 seconds with a burst of 5,
// well under the default 300 statuses per 3 hours.
func NewMastodonPublisher(config MastodonConfig) *MastodonPublisher {
	config.InstanceURL = strings.TrimRight(config.InstanceURL, "/")
	if config.Visibility == "" {
		config.Visibility = "public"
	}
	return &MastodonPublisher{
		config:      config,
		httpClient:  newHTTPClient(config.Timeout),
		rateLimiter: NewRateLimiter(0.1, 5),
		retryDelay:  defaultRetryDelay,
	}
}

// Name implements announce.Publisher.
func (m *MastodonPublisher) Name() string { return "mastodon" }

func (m *MastodonPublisher) buildForm(message string) url.Values {
	form := url.Values{}
	form.Set("status", fitMessage(message, MastodonMaxLength))
	form.Set("visibility", m.config.Visibility)
	return form
}

// sendStatus posts one status. The Idempotency-Key is the same on every
// attempt, so the instance drops a retry whose first attempt got through.
func (m *MastodonPublisher) sendStatus(ctx context.Context, message string, a attempt) error {
	endpoint := m.config.InstanceURL + "/api/v1/statuses"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(m.buildForm(message).Encode()))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+m.config.AccessToken)
	req.Header.Set("Idempotency-Key", a.requestID)

	return do(m.httpClient, m.Name(), req)
}

// Publish implements announce.Publisher.
func (m *MastodonPublisher) Publish(ctx context.Context, message string) error {
	requestID := uuid.New().String()

	if err := m.rateLimiter.Wait(ctx, m.Name(), requestID); err != nil {
		return err
	}

	return deliver(ctx, m.Name(), requestID, m.retryDelay, func(ctx context.Context, a attempt) error {
		return m.sendStatus(ctx, message, a)
	})
}
