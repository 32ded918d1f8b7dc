package fetch

import (
	"net/url"
	"regexp"
)

var apiKeyPattern = regexp.MustCompile(`(?i)(apikey=)[^&/]*`)

// redact hides API keys in URLs before they reach logs or spans.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return apiKeyPattern.ReplaceAllString(raw, "${1}REDACTED")
	}
	u.User = nil
	return apiKeyPattern.ReplaceAllString(u.String(), "${1}REDACTED")
}
