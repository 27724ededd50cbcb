// Package post renders the announcement text for a candidate.
package post

import (
	"rust-trends/internal/domain/entity"
)

// Separator sits between the identity and the description.
const Separator = " - "

// Format renders "<identity> - <description> <url>". The fields are joined
// verbatim: nothing is trimmed or escaped, so an empty description leaves two
// spaces before the URL. Length limits belong to the publisher.
//
// A candidate without identity or URL fails with an *entity.ValidationError
// that unwraps to entity.ErrInvalidCandidate.
func Format(c entity.Candidate) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c.Identity + Separator + c.Description + " " + c.URL, nil
}
