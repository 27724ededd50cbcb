package entity

import "time"

// DefaultWindowDays is the rolling period during which an identity is not re-announced.
const DefaultWindowDays = 14

// Announcement is one persisted ledger entry: an identity published at an instant.
// Entries are append-only; several may exist per identity and only the latest counts.
type Announcement struct {
	ID          int64
	Identity    string
	AnnouncedAt time.Time
}

// SchemaRecord describes the structure version of the backing store.
// Exactly one exists per initialized store.
type SchemaRecord struct {
	Version   int
	CreatedAt time.Time
	LastRunAt *time.Time
}

// WindowDuration converts a window expressed in days to a duration.
func WindowDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// WithinWindow reports whether an announcement made at announcedAt still blocks
// re-announcement at now. The window is half-open: [announcedAt, announcedAt+window).
func WithinWindow(announcedAt time.Time, windowDays int, now time.Time) bool {
	cutoff := now.Add(-WindowDuration(windowDays))
	return announcedAt.After(cutoff)
}
