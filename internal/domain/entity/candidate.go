// Package entity defines the core domain entities of the announcement pipeline:
// trending candidates, ledger entries, and the schema record, along with their
// validation rules and domain-specific errors.
package entity

import "time"

// Candidate is one trending repository observed during a run.
// It is a value type; sources construct it once and nothing mutates it afterwards.
type Candidate struct {
	// Identity is the stable full name of the repository (e.g. "rust-lang/rust").
	Identity string
	// URL is the human-facing link used in the post.
	URL string
	// Description is free text and may be empty.
	Description string
	// DiscoveredAt is when this run observed the candidate.
	DiscoveredAt time.Time
}

// NewCandidate builds a candidate stamped with the discovery instant in UTC.
func NewCandidate(identity, url, description string, discoveredAt time.Time) Candidate {
	return Candidate{
		Identity:     identity,
		URL:          url,
		Description:  description,
		DiscoveredAt: discoveredAt.UTC(),
	}
}

// Validate checks the fields every post needs. Description may be empty.
func (c Candidate) Validate() error {
	if c.Identity == "" {
		return &ValidationError{Field: "identity", Message: "identity is required"}
	}
	if c.URL == "" {
		return &ValidationError{Field: "url", Message: "url is required"}
	}
	return nil
}
