// Package clickmeta derives device, browser, OS and traffic-source labels
// from raw request metadata. Everything here is pure.
package clickmeta

import (
	"net/url"
	"strings"
)

const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"

	Other   = "Other"
	Direct  = "Direct"
	Email   = "Email"
	Unknown = "Unknown"
)

// Result is the classification of one request.
type Result struct {
	DeviceType      string
	Browser         string
	OperatingSystem string
	ReferrerSource  string
}

type rule struct {
	label string
	match func(ua string) bool
}

func anyOf(markers ...string) func(string) bool {
	return func(ua string) bool {
		for _, m := range markers {
			if strings.Contains(ua, m) {
				return true
			}
		}
		return false
	}
}

func noneOf(markers ...string) func(string) bool {
	has := anyOf(markers...)
	return func(ua string) bool { return !has(ua) }
}

func all(preds ...func(string) bool) func(string) bool {
	return func(ua string) bool {
		for _, p := range preds {
			if !p(ua) {
				return false
			}
		}
		return true
	}
}

// Rules are evaluated first-match against the lower-cased user agent.
var (
	deviceRules = []rule{
		{DeviceTablet, anyOf("tablet", "ipad")},
		{DeviceMobile, anyOf("mobile", "android", "iphone")},
	}

	browserRules = []rule{
		{"Chrome", all(anyOf("chrome"), noneOf("edg"))},
		{"Firefox", anyOf("firefox")},
		{"Safari", all(anyOf("safari"), noneOf("chrome"))},
		{"Edge", anyOf("edg")},
		{"Opera", anyOf("opera")},
	}

	osRules = []rule{
		{"Windows", anyOf("windows")},
		{"macOS", all(anyOf("mac os x", "macos"), noneOf("iphone", "ipad", "ipod"))},
		{"Linux", all(anyOf("linux"), noneOf("android"))},
		{"Android", anyOf("android")},
		{"iOS", anyOf("iphone os", "cpu os", "ipad", "ios")},
	}
)

func firstMatch(rules []rule, ua, fallback string) string {
	for _, r := range rules {
		if r.match(ua) {
			return r.label
		}
	}
	return fallback
}

// Classify labels a request by its User-Agent and Referer headers.
func Classify(userAgent, referrer string) Result {
	ua := strings.ToLower(userAgent)
	return Result{
		DeviceType:      firstMatch(deviceRules, ua, DeviceDesktop),
		Browser:         firstMatch(browserRules, ua, Other),
		OperatingSystem: firstMatch(osRules, ua, Other),
		ReferrerSource:  ReferrerSource(referrer),
	}
}

type hostLabel struct {
	host, label string
}

var (
	socialHosts = []hostLabel{
		{"facebook.com", "Facebook"},
		{"twitter.com", "Twitter"},
		{"x.com", "Twitter"},
		{"linkedin.com", "LinkedIn"},
		{"instagram.com", "Instagram"},
		{"youtube.com", "YouTube"},
		{"pinterest.com", "Pinterest"},
		{"reddit.com", "Reddit"},
		{"tiktok.com", "TikTok"},
	}

	searchHosts = []hostLabel{
		{"google.", "Google"},
		{"bing.", "Bing"},
		{"yahoo.", "Yahoo"},
		{"duckduckgo.", "DuckDuckGo"},
		{"baidu.", "Baidu"},
	}
)

// ReferrerSource maps a Referer header to a traffic-source label.
func ReferrerSource(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return Direct
	}

	u, err := url.Parse(referrer)
	if err != nil || u.Hostname() == "" {
		return Other
	}
	host := strings.ToLower(u.Hostname())

	for _, s := range socialHosts {
		if host == s.host || strings.HasSuffix(host, "."+s.host) {
			return s.label
		}
	}
	for _, s := range searchHosts {
		if strings.Contains(host, s.host) {
			return s.label + " Search"
		}
	}
	if strings.Contains(host, "mail.") || strings.Contains(host, "outlook.") {
		return Email
	}
	return u.Host
}
