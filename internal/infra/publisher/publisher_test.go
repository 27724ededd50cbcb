package publisher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rust-trends/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.PublisherConfig
		wantType any
		wantName string
	}{
		{
			name:     "log",
			cfg:      config.PublisherConfig{Type: config.PublisherLog, Timeout: time.Second, CircuitBreaker: true},
			wantType: &LogPublisher{},
			wantName: "log",
		},
		{
			name:     "noop",
			cfg:      config.PublisherConfig{Type: config.PublisherNoOp, Timeout: time.Second},
			wantType: &NoOpPublisher{},
			wantName: "noop",
		},
		{
			name: "discord with breaker",
			cfg: config.PublisherConfig{
				Type: config.PublisherDiscord, DiscordWebhookURL: "https://discord.com/api/webhooks/1/t",
				Timeout: time.Second, CircuitBreaker: true,
			},
			wantType: &BreakerPublisher{},
			wantName: "discord",
		},
		{
			name: "slack without breaker",
			cfg: config.PublisherConfig{
				Type: config.PublisherSlack, SlackWebhookURL: "https://hooks.slack.com/services/T/B/X",
				Timeout: time.Second,
			},
			wantType: &SlackPublisher{},
			wantName: "slack",
		},
		{
			name: "mastodon",
			cfg: config.PublisherConfig{
				Type:     config.PublisherMastodon,
				Mastodon: config.MastodonConfig{InstanceURL: "https://mastodon.social", AccessToken: "t", Visibility: "public"},
				Timeout:  time.Second,
			},
			wantType: &MastodonPublisher{},
			wantName: "mastodon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, p)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(config.PublisherConfig{Type: config.PublisherDiscord, Timeout: time.Second})
	assert.Error(t, err)
}
