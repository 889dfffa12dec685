package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/careerhub/backend/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// RenderHTML renders the CV with its template, falling back to the clean layout for
// unknown template keys.
func RenderHTML(cv *models.CV) ([]byte, error) {
	doc := NewDocument(cv)
	name := doc.Template + ".html"
	if !models.ValidTemplateKey(doc.Template) || templates.Lookup(name) == nil {
		name = models.DefaultTemplateKey + ".html"
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, doc); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
