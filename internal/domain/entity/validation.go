package entity

import (
	"fmt"
	"net/url"
	"strings"
)

// maxURLLength bounds URLs accepted from trend sources.
const maxURLLength = 2048

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateURL accepts absolute http(s) URLs with a host and no embedded
// credentials. Trend sources call it at their boundary, so a link that would
// end up in a public post is checked before it becomes a candidate.
func ValidateURL(rawURL string) error {
	switch {
	case rawURL == "":
		return invalid("url", "url is required")
	case len(rawURL) > maxURLLength:
		return invalid("url", "url must not exceed %d characters", maxURLLength)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return invalid("url", "parse url: %v", err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return invalid("url", "scheme %q is not http or https", u.Scheme)
	case u.Host == "":
		return invalid("url", "url has no host")
	case u.User != nil:
		return invalid("url", "url must not carry credentials")
	}
	return nil
}

// ValidateIdentity checks the owner/name shape of a repository identity.
func ValidateIdentity(identity string) error {
	if identity == "" {
		return invalid("identity", "identity is required")
	}
	if strings.ContainsAny(identity, " \t\r\n") {
		return invalid("identity", "identity must not contain whitespace")
	}
	owner, name, ok := strings.Cut(identity, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return invalid("identity", "identity %q is not of the form owner/name", identity)
	}
	return nil
}
