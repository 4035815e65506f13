package clickmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	uaIPad      = "Mozilla/5.0 (iPad; CPU OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1"
	uaIPhone    = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	uaAndroid   = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	uaWinChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaWinEdge   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91"
	uaMacSafari = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"
	uaLinuxFF   = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaOpera     = "Opera/9.80 (Windows NT 6.1; U; en) Presto/2.12.388 Version/12.18"
)

func TestClassify_Devices(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"ipad is tablet", uaIPad, DeviceTablet},
		{"generic tablet", "SomeBrowser (Android 12; Tablet)", DeviceTablet},
		{"iphone", uaIPhone, DeviceMobile},
		{"android", uaAndroid, DeviceMobile},
		{"desktop", uaWinChrome, DeviceDesktop},
		{"empty", "", DeviceDesktop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ua, "").DeviceType)
		})
	}
}

func TestClassify_BrowserAndOS(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		browser string
		os      string
	}{
		{"chrome on windows", uaWinChrome, "Chrome", "Windows"},
		{"edge on windows", uaWinEdge, "Edge", "Windows"},
		{"safari on mac", uaMacSafari, "Safari", "macOS"},
		{"firefox on linux", uaLinuxFF, "Firefox", "Linux"},
		{"chrome on android", uaAndroid, "Chrome", "Android"},
		{"safari on iphone", uaIPhone, "Safari", "iOS"},
		{"safari on ipad", uaIPad, "Safari", "iOS"},
		{"opera presto", uaOpera, "Opera", "Windows"},
		{"curl", "curl/8.4.0", Other, Other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.ua, "")
			assert.Equal(t, tt.browser, got.Browser)
			assert.Equal(t, tt.os, got.OperatingSystem)
		})
	}
}

func TestReferrerSource(t *testing.T) {
	tests := []struct {
		referrer string
		want     string
	}{
		{"", Direct},
		{"https://www.facebook.com/groups/1", "Facebook"},
		{"https://x.com/someone/status/1", "Twitter"},
		{"https://m.youtube.com/watch?v=1", "YouTube"},
		{"https://www.netflix.com/", "www.netflix.com"},
		{"https://www.google.co.uk/search?q=go", "Google Search"},
		{"https://duckduckgo.com/?q=go", "DuckDuckGo Search"},
		{"https://mail.proton.me/inbox", Email},
		{"https://outlook.live.com/mail", Email},
		{"https://blog.example.org:8443/post", "blog.example.org:8443"},
		{"not a url", Other},
		{"://bad", Other},
	}
	for _, tt := range tests {
		t.Run(tt.referrer, func(t *testing.T) {
			assert.Equal(t, tt.want, ReferrerSource(tt.referrer))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	first := Classify(uaAndroid, "https://t.co/abc")
	for range 10 {
		assert.Equal(t, first, Classify(uaAndroid, "https://t.co/abc"))
	}
}
