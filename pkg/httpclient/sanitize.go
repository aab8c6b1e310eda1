package httpclient

import (
	"net/http"
	"net/url"
	"strings"
)

// Query parameters matching any of these (case-insensitive substring) are
// redacted before a URL is logged. Presigned storage URLs carry
// X-Amz-Signature, X-Amz-Credential and X-Amz-Security-Token.
var sensitiveParams = []string{
	"signature",
	"credential",
	"token",
	"password",
	"auth",
	"secret",
	"api_key",
	"apikey",
	"key",
}

// credentialGroups maps a header prefix to the credential category it
// belongs to.
var credentialGroups = []struct {
	prefix string
	group  string
}{
	{"Request-Web-Access-Password", "web"},
	{"X-Llm-", "llm"},
	{"X-Storage-", "storage"},
	{"X-Asr-", "asr"},
}

func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	q := u.Query()
	for param := range q {
		if isSensitiveParam(param) {
			q.Set(param, "[REDACTED]")
		}
	}

	safe := *u
	safe.User = nil
	safe.RawQuery = q.Encode()
	return safe.String()
}

func isSensitiveParam(param string) bool {
	lower := strings.ToLower(param)
	for _, sensitive := range sensitiveParams {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

func isCredentialHeader(name string) bool {
	canonical := http.CanonicalHeaderKey(name)
	for _, g := range credentialGroups {
		if strings.HasPrefix(canonical, g.prefix) {
			return true
		}
	}
	return false
}

// attachedCredentials names the credential categories present in h, in a
// fixed order. Header values are never read.
func attachedCredentials(h http.Header) []string {
	var groups []string
	for _, g := range credentialGroups {
		for name := range h {
			if strings.HasPrefix(http.CanonicalHeaderKey(name), g.prefix) {
				groups = append(groups, g.group)
				break
			}
		}
	}
	return groups
}
