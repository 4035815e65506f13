// Package urlguard checks submitted destination URLs.
package urlguard

import (
	"errors"
	"net/url"
	"slices"
	"strings"
)

var (
	ErrInvalidURL    = errors.New("invalid url")
	ErrBlockedDomain = errors.New("blocked domain")
)

// Validate accepts absolute http(s) URLs whose host matches no blocklist entry.
// The input is returned unchanged on success.
func Validate(raw string, blocked []string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrInvalidURL
	}
	if u.Hostname() == "" {
		return "", ErrInvalidURL
	}

	host := strings.ToLower(u.Hostname())
	for _, entry := range blocked {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry != "" && strings.Contains(host, entry) {
			return "", ErrBlockedDomain
		}
	}

	return raw, nil
}

// ParseBlocklist splits a comma separated setting into trimmed, lower-cased,
// de-duplicated entries.
func ParseBlocklist(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
