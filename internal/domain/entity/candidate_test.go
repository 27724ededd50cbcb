package entity

import (
	"errors"
	"testing"
	"time"
)

func TestNewCandidate_StampsUTC(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	observed := time.Date(2025, 3, 1, 9, 0, 0, 0, tokyo)

	c := NewCandidate("rust-lang/rust", "https://github.com/rust-lang/rust", "A language", observed)

	if c.DiscoveredAt.Location() != time.UTC {
		t.Errorf("expected UTC location, got %v", c.DiscoveredAt.Location())
	}
	if !c.DiscoveredAt.Equal(observed) {
		t.Errorf("expected same instant %v, got %v", observed, c.DiscoveredAt)
	}
}

func TestCandidate_Validate(t *testing.T) {
	tests := []struct {
		name      string
		candidate Candidate
		wantField string
	}{
		{
			name:      "complete",
			candidate: Candidate{Identity: "rust-lang/rust", URL: "https://x", Description: "A language"},
		},
		{
			name:      "empty description is allowed",
			candidate: Candidate{Identity: "rust-lang/rust", URL: "https://x"},
		},
		{
			name:      "missing identity",
			candidate: Candidate{URL: "https://x"},
			wantField: "identity",
		},
		{
			name:      "missing url",
			candidate: Candidate{Identity: "rust-lang/rust"},
			wantField: "url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.candidate.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, vErr.Field)
			}
			if !errors.Is(err, ErrInvalidCandidate) {
				t.Errorf("expected error to match ErrInvalidCandidate")
			}
		})
	}
}

func TestWithinWindow(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "same instant", now: t0, want: true},
		{name: "13 days later", now: t0.Add(13 * day), want: true},
		{name: "one nanosecond before the boundary", now: t0.Add(14*day - time.Nanosecond), want: true},
		{name: "exactly 14 days later", now: t0.Add(14 * day), want: false},
		{name: "15 days later", now: t0.Add(15 * day), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinWindow(t0, DefaultWindowDays, tt.now); got != tt.want {
				t.Errorf("WithinWindow(t0, 14, %v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}
