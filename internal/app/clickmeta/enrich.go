package clickmeta

import (
	"strings"

	"github.com/mssola/useragent"
)

// Details are parser-derived attributes that the ordered rules ignore.
type Details struct {
	BrowserVersion string
	Bot            bool
}

// Enrich runs the full user-agent parser for version and bot detection.
func Enrich(userAgent string) Details {
	if strings.TrimSpace(userAgent) == "" {
		return Details{}
	}
	ua := useragent.New(userAgent)
	_, version := ua.Browser()
	return Details{BrowserVersion: version, Bot: ua.Bot()}
}

// CountryFrom normalises an edge-provided country header. Empty, unknown
// (XX) and Tor (T1) values map to Unknown.
func CountryFrom(header string) string {
	code := strings.ToUpper(strings.TrimSpace(header))
	switch code {
	case "", "XX", "T1":
		return Unknown
	}
	return code
}
