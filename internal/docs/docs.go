package docs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"html"
	"net/http"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var specYAML []byte

var (
	specETag = computeETag(specYAML)
	docsHTML = renderDocs(specTitle(specYAML))
)

func computeETag(b []byte) string {
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

// specTitle reads info.title and info.version from the OpenAPI document.
func specTitle(b []byte) string {
	var doc struct {
		Info struct {
			Title   string `yaml:"title"`
			Version string `yaml:"version"`
		} `yaml:"info"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil || doc.Info.Title == "" {
		return "API Reference"
	}
	if doc.Info.Version == "" {
		return doc.Info.Title + " Reference"
	}
	return fmt.Sprintf("%s Reference (v%s)", doc.Info.Title, doc.Info.Version)
}

func HandleSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("ETag", specETag)
	if r.Header.Get("If-None-Match") == specETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(specYAML)
}

func HandleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Security-Policy",
		"default-src 'self'; "+
			"script-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; "+
			"style-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; "+
			"font-src 'self' https://cdn.jsdelivr.net data:; "+
			"img-src 'self' data:; connect-src 'self'; frame-ancestors 'self';")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsHTML))
}

func renderDocs(title string) string {
	return `<!DOCTYPE html>
<html><head>
  <title>` + html.EscapeString(title) + `</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>
  <script id="api-reference" data-url="/api/docs/openapi.yaml"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body></html>`
}
