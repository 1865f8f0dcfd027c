package validation

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidRefreshFlag is returned when the refresh query value is not a recognised boolean.
var ErrInvalidRefreshFlag = errors.New("refresh must be true, false, 1, 0, yes or no")

// RefreshFlag parses the refresh query parameter. Empty means false.
func RefreshFlag(input string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "0", "false", "no":
		return false, nil
	case "1", "true", "yes":
		return true, nil
	}
	return false, ErrInvalidRefreshFlag
}

// SourceURI reports whether uri is an absolute http(s) URL safe to render as a link.
func SourceURI(uri string) bool {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// PlaceholderCredential reports whether key is empty or one of the sample
// values shipped in templates and docs.
func PlaceholderCredential(key string) bool {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "", "PLACEHOLDER_API_KEY", "YOUR_API_KEY", "YOUR-API-KEY", "CHANGEME", "API_KEY", "GEMINI_API_KEY", "UNDEFINED", "NULL":
		return true
	}
	return false
}
