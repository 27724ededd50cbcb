package logging

import (
	"regexp"
)

var (
	// more specific token shapes first
	githubPATPattern   = regexp.MustCompile(`github_pat_[A-Za-z0-9_]+`)
	githubTokenPattern = regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{10,}`)

	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/=]+`)

	// https://discord.com/api/webhooks/{id}/{token}
	discordWebhookPattern = regexp.MustCompile(`(/api/webhooks/[0-9]+/)[A-Za-z0-9\-_]+`)

	// https://hooks.slack.com/services/T000/B000/XXXX
	slackWebhookPattern = regexp.MustCompile(`(hooks\.slack\.com/services/)[A-Za-z0-9/]+`)

	userinfoPattern = regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`)
)

// SanitizeError returns the error message with credentials masked.
// Publisher and source errors often embed the request URL, which carries
// webhook tokens, so every error from those layers is passed through here
// before it is logged.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString masks credentials in an arbitrary string.
func SanitizeString(msg string) string {
	msg = githubPATPattern.ReplaceAllString(msg, "github_pat_****")
	msg = githubTokenPattern.ReplaceAllString(msg, "gh*_****")
	msg = bearerPattern.ReplaceAllString(msg, "${1}****")
	msg = discordWebhookPattern.ReplaceAllString(msg, "${1}****")
	msg = slackWebhookPattern.ReplaceAllString(msg, "${1}****")
	msg = userinfoPattern.ReplaceAllString(msg, "://$1:****@")
	return msg
}
