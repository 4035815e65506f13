package utm

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var spring = Params{Source: "newsletter", Medium: "email", Campaign: "spring_sale"}

func TestDecorate(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		params Params
		want   string
	}{
		{
			name:   "no query",
			url:    "https://shop.example.com/p",
			params: spring,
			want:   "https://shop.example.com/p?utm_source=newsletter&utm_medium=email&utm_campaign=spring_sale",
		},
		{
			name:   "keeps existing pairs in order",
			url:    "https://shop.example.com/p?b=2&a=hello%20world",
			params: spring,
			want:   "https://shop.example.com/p?b=2&a=hello%20world&utm_source=newsletter&utm_medium=email&utm_campaign=spring_sale",
		},
		{
			name:   "replaces same-named keys",
			url:    "https://shop.example.com/?utm_source=old&x=1",
			params: spring,
			want:   "https://shop.example.com/?x=1&utm_source=newsletter&utm_medium=email&utm_campaign=spring_sale",
		},
		{
			name:   "optional fields and fragment",
			url:    "https://shop.example.com/p?x=1#top",
			params: Params{Source: "s", Medium: "m", Campaign: "c", Term: "shoes", Content: "banner-a"},
			want:   "https://shop.example.com/p?x=1&utm_source=s&utm_medium=m&utm_campaign=c&utm_term=shoes&utm_content=banner-a#top",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decorate(tt.url, tt.params)
			assert.Equal(t, tt.want, got)

			_, err := url.Parse(got)
			require.NoError(t, err)
		})
	}
}

func TestDecorate_Idempotent(t *testing.T) {
	urls := []string{
		"https://a.example.com",
		"https://a.example.com/x?q=1&utm_term=keep",
		"https://a.example.com/x?utm_campaign=other#frag",
	}
	params := []Params{spring, {Source: "s", Medium: "m", Campaign: "c", Content: "v2"}}

	for _, u := range urls {
		for _, p := range params {
			once := Decorate(u, p)
			assert.Equal(t, once, Decorate(once, p), "url=%s", u)
		}
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		ok     bool
	}{
		{name: "valid", params: spring, ok: true},
		{name: "missing source", params: Params{Medium: "m", Campaign: "c"}},
		{name: "missing campaign", params: Params{Source: "s", Medium: "m"}},
		{name: "bad medium", params: Params{Source: "s", Medium: "e mail", Campaign: "c"}},
		{name: "bad term", params: Params{Source: "s", Medium: "m", Campaign: "c", Term: "a&b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrCampaignValidation)
			}
		})
	}
}

func TestTemplate_Instantiate(t *testing.T) {
	tmpl := TemplateParams{
		Source:   "{platform}",
		Medium:   "social",
		Campaign: "{campaign_name}_{date}",
		Content:  "from-{template_name}",
	}
	vars := Vars{
		CampaignName: "Summer Sale 2024!",
		TemplateName: "Social Push",
		Platform:     "Face book",
		Now:          time.Date(2024, 6, 1, 23, 30, 0, 0, time.FixedZone("X", -3*3600)),
	}

	p := tmpl.Instantiate(vars)
	assert.Equal(t, "Face-book", p.Source)
	assert.Equal(t, "social", p.Medium)
	assert.Equal(t, "Summer-Sale-2024_2024-06-02", p.Campaign)
	assert.Equal(t, "", p.Term)
	assert.Equal(t, "from-Social-Push", p.Content)
	assert.NoError(t, p.Validate())
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "a-b_c", Slug("  a  b_c!! "))
	assert.Equal(t, "", Slug("???"))
}
