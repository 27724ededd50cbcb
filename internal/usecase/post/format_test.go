package post

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rust-trends/internal/domain/entity"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name      string
		candidate entity.Candidate
		want      string
	}{
		{
			name:      "basic",
			candidate: entity.Candidate{Identity: "rust-lang/rust", URL: "https://x", Description: "A language"},
			want:      "rust-lang/rust - A language https://x",
		},
		{
			name:      "empty description keeps both spaces",
			candidate: entity.Candidate{Identity: "a/b", URL: "https://github.com/a/b"},
			want:      "a/b -  https://github.com/a/b",
		},
		{
			name:      "unicode and surrounding whitespace kept verbatim",
			candidate: entity.Candidate{Identity: "ferris/crab", URL: "https://c", Description: " 🦀 fast\tand safe "},
			want:      "ferris/crab -  🦀 fast\tand safe  https://c",
		},
		{
			name:      "description containing separator",
			candidate: entity.Candidate{Identity: "x/y", URL: "https://y", Description: "a - b"},
			want:      "x/y - a - b https://y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Format(tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_Deterministic(t *testing.T) {
	c := entity.Candidate{Identity: "rust-lang/rust", URL: "https://x", Description: "A language"}
	first, err := Format(c)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		got, err := Format(c)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestFormat_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		candidate entity.Candidate
		wantField string
	}{
		{name: "empty identity", candidate: entity.Candidate{URL: "https://x", Description: "d"}, wantField: "identity"},
		{name: "empty url", candidate: entity.Candidate{Identity: "a/b", Description: "d"}, wantField: "url"},
		{name: "both empty", candidate: entity.Candidate{}, wantField: "identity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Format(tt.candidate)
			assert.Empty(t, got)
			assert.ErrorIs(t, err, entity.ErrInvalidCandidate)

			var verr *entity.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}
