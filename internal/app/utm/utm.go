// Package utm merges campaign attribution parameters into destination URLs.
package utm

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	KeySource   = "utm_source"
	KeyMedium   = "utm_medium"
	KeyCampaign = "utm_campaign"
	KeyTerm     = "utm_term"
	KeyContent  = "utm_content"
)

var (
	ErrCampaignValidation = errors.New("campaign validation failed")

	valuePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Params are the UTM values of a campaign.
type Params struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
}

type pair struct {
	key, value string
}

// pairs returns the parameters in canonical order, skipping empty optionals.
func (p Params) pairs() []pair {
	out := []pair{
		{KeySource, p.Source},
		{KeyMedium, p.Medium},
		{KeyCampaign, p.Campaign},
	}
	if p.Term != "" {
		out = append(out, pair{KeyTerm, p.Term})
	}
	if p.Content != "" {
		out = append(out, pair{KeyContent, p.Content})
	}
	return out
}

// Validate requires source, medium and campaign, and restricts every
// non-empty value to letters, digits, hyphen and underscore.
func (p Params) Validate() error {
	required := []pair{{KeySource, p.Source}, {KeyMedium, p.Medium}, {KeyCampaign, p.Campaign}}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrCampaignValidation, f.key)
		}
	}
	for _, f := range p.pairs() {
		if !valuePattern.MatchString(f.value) {
			return fmt.Errorf("%w: %s can only contain letters, numbers, hyphens and underscores", ErrCampaignValidation, f.key)
		}
	}
	return nil
}

// Decorate appends the UTM parameters to originalURL. Existing query pairs
// keep their order and encoding unless they share a key with one of the
// parameters, in which case they are replaced. The fragment is preserved.
// Applying Decorate twice with the same params yields the same URL.
func Decorate(originalURL string, p Params) string {
	rest, fragment, hasFragment := strings.Cut(originalURL, "#")
	base, rawQuery, _ := strings.Cut(rest, "?")

	params := p.pairs()
	replaced := make(map[string]struct{}, len(params))
	for _, kv := range params {
		replaced[kv.key] = struct{}{}
	}

	var kept []string
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		rawKey, _, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}
		if _, ok := replaced[key]; ok {
			continue
		}
		kept = append(kept, part)
	}

	for _, kv := range params {
		kept = append(kept, url.QueryEscape(kv.key)+"="+url.QueryEscape(kv.value))
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteByte('?')
	b.WriteString(strings.Join(kept, "&"))
	if hasFragment {
		b.WriteByte('#')
		b.WriteString(fragment)
	}
	return b.String()
}
