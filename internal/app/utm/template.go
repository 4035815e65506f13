package utm

import (
	"regexp"
	"strings"
	"time"
)

const (
	PlaceholderCampaignName = "{campaign_name}"
	PlaceholderTemplateName = "{template_name}"
	PlaceholderDate         = "{date}"
	PlaceholderPlatform     = "{platform}"
)

var slugStrip = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Vars are the values substituted into template placeholders.
type Vars struct {
	CampaignName string
	TemplateName string
	Platform     string
	Now          time.Time
}

// Slug collapses runs of characters outside [A-Za-z0-9_-] into a single hyphen.
func Slug(s string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.TrimSpace(s), "-"), "-")
}

// Expand substitutes placeholders in tmpl. Substituted values are slugged so
// the result stays a valid UTM value; literal template text is left as is.
func Expand(tmpl string, v Vars) string {
	if tmpl == "" {
		return ""
	}
	r := strings.NewReplacer(
		PlaceholderCampaignName, Slug(v.CampaignName),
		PlaceholderTemplateName, Slug(v.TemplateName),
		PlaceholderDate, v.Now.UTC().Format(time.DateOnly),
		PlaceholderPlatform, Slug(v.Platform),
	)
	return r.Replace(tmpl)
}

// TemplateParams are the raw template strings of a UTM template.
type TemplateParams struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
}

// Instantiate expands every template field into concrete Params.
func (t TemplateParams) Instantiate(v Vars) Params {
	return Params{
		Source:   Expand(t.Source, v),
		Medium:   Expand(t.Medium, v),
		Campaign: Expand(t.Campaign, v),
		Term:     Expand(t.Term, v),
		Content:  Expand(t.Content, v),
	}
}
