package api

import (
	"html/template"
	"io"
)

type docsLink struct {
	Href  string
	Label string
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
  <title>Growth Chart API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    nav.growth-links { position: fixed; top: 12px; right: 16px; z-index: 9999; display: flex; gap: 6px; }
    nav.growth-links a, nav.growth-links code {
      background: #161b22; border: 1px solid #30363d; border-radius: 6px; color: #58a6ff;
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; font-size: 12px;
      font-weight: 500; padding: 5px 12px; text-decoration: none;
    }
    nav.growth-links code { color: #8b949e; }
  </style>
</head>
<body style="height: 100vh; margin: 0; position: relative;">
  <nav class="growth-links">
    {{- range .Links}}
    <a href="{{.Href}}">{{.Label}}</a>
    {{- end}}
    {{- if .WebSocket}}
    <code title="WebSocket chart frames">ws {{.WebSocket}}</code>
    {{- end}}
  </nav>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`))

// writeDocs renders the API reference with links to the chart page, the node
// list and whichever event streams are mounted.
func writeDocs(w io.Writer, streams Streams) error {
	data := struct {
		Links     []docsLink
		WebSocket string
	}{
		Links: []docsLink{
			{Href: "/", Label: "Live charts"},
			{Href: "/api/v1/nodes", Label: "Nodes"},
			{Href: "/api/v1/snapshots", Label: "Snapshots"},
		},
	}
	if streams.Events != nil {
		data.Links = append(data.Links, docsLink{Href: "/events", Label: "Event stream (SSE)"})
	}
	if streams.WS != nil {
		data.WebSocket = "/ws"
	}
	return docsTemplate.Execute(w, data)
}
