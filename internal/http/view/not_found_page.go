package view

import (
	"bytes"
	"html/template"
)

// NotFoundPageData fills the page shown for dead or unknown short links.
type NotFoundPageData struct {
	Title   string
	Message string
	HomeURL string
}

var notFoundPageTmpl = template.Must(template.New("not_found_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>{{.Title}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #7dd3fc;
			--accent-strong: #38bdf8;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(480px, 92vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
			text-align: center;
		}
		.status {
			font-size: 3rem;
			font-weight: 700;
			color: var(--accent);
			margin: 0;
		}
		p { color: var(--muted); }
		a.button {
			display: inline-flex;
			align-items: center;
			padding: 0 28px;
			height: 44px;
			margin-top: 12px;
			border-radius: 999px;
			background: linear-gradient(120deg, var(--accent), var(--accent-strong));
			color: #050708;
			font-weight: 600;
			text-decoration: none;
		}
	</style>
</head>
<body>
	<div class="card">
		<p class="status">404</p>
		<h1>{{.Title}}</h1>
		<p>{{.Message}}</p>
		{{if .HomeURL}}<a class="button" href="{{.HomeURL}}">Go to homepage</a>{{end}}
	</div>
</body>
</html>
`))

// RenderNotFoundPage expands the not-found template, filling in defaults.
func RenderNotFoundPage(data NotFoundPageData) (string, error) {
	if data.Title == "" {
		data.Title = "Link not found"
	}
	if data.Message == "" {
		data.Message = "This short link does not exist, has expired or has been disabled."
	}
	var buf bytes.Buffer
	if err := notFoundPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
