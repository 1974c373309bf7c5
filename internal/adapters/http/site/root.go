// Package site serves the service landing page at the root path.
package site

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
)

// Link is one entry on the landing page.
type Link struct {
	Path  string
	Title string
}

// DefaultLinks lists the public entry points of the service.
var DefaultLinks = []Link{
	{Path: "/api-docs", Title: "API reference"},
	{Path: "/openapi.yaml", Title: "OpenAPI document"},
	{Path: "/api/leaderboard/global", Title: "Global leaderboard"},
	{Path: "/api/leaderboard/top-winners", Title: "Top winners"},
	{Path: "/api/leaderboard/period/week", Title: "This week"},
	{Path: "/status", Title: "Service status"},
	{Path: "/readyz", Title: "Readiness"},
	{Path: "/healthz", Title: "Metrics"},
}

var page = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Name}}</title></head>
<body>
<h1>{{.Name}}</h1>
<ul>
{{- range .Links}}
<li><a href="{{.Path}}">{{.Title}}</a> <code>{{.Path}}</code></li>
{{- end}}
</ul>
</body>
</html>
`))

// RootHandler renders the landing page once and serves it from memory.
type RootHandler struct {
	body []byte
}

// NewRootHandler renders the page for name and links.
func NewRootHandler(name string, links []Link) (*RootHandler, error) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, struct {
		Name  string
		Links []Link
	}{name, links}); err != nil {
		return nil, err
	}
	return &RootHandler{body: buf.Bytes()}, nil
}

// HandleRoot handles GET /.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(h.body)
}

// Register attaches the landing page to the exact root path of mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	h, err := NewRootHandler("driftboard", DefaultLinks)
	if err != nil {
		panic(err)
	}
	mux.HandleFunc("GET /{$}", h.HandleRoot)
}
