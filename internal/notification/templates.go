package notification

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.md
var templateFS embed.FS

// Renderer turns a template id plus data into subject, markdown text and HTML.
// Templates are markdown with a leading "Subject:" line.
type Renderer struct {
	templates map[Template]*template.Template
	markdown  goldmark.Markdown
	clientURL string
}

func NewRenderer(clientURL string) (*Renderer, error) {
	r := &Renderer{
		templates: map[Template]*template.Template{},
		markdown:  goldmark.New(goldmark.WithExtensions(extension.Linkify)),
		clientURL: strings.TrimRight(clientURL, "/"),
	}

	for _, id := range []Template{
		TemplateWelcome,
		TemplateApplicationConfirmation,
		TemplateApplicationStatusUpdate,
		TemplateReviewAssigned,
	} {
		raw, err := templateFS.ReadFile("templates/" + string(id) + ".md")
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", id, err)
		}
		tmpl, err := template.New(string(id)).Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", id, err)
		}
		r.templates[id] = tmpl
	}
	return r, nil
}

func (r *Renderer) Render(id Template, data map[string]any) (subject, text, html string, err error) {
	tmpl, ok := r.templates[id]
	if !ok {
		return "", "", "", fmt.Errorf("unknown template %q", id)
	}

	vars := make(map[string]any, len(data)+1)
	for k, v := range data {
		vars[k] = v
	}
	vars["ClientURL"] = r.clientURL

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", "", "", fmt.Errorf("execute template %s: %w", id, err)
	}

	first, body, _ := strings.Cut(buf.String(), "\n")
	subject = strings.TrimSpace(strings.TrimPrefix(first, "Subject:"))
	text = strings.TrimSpace(body)

	var out bytes.Buffer
	if err := r.markdown.Convert([]byte(text), &out); err != nil {
		return "", "", "", fmt.Errorf("render markdown %s: %w", id, err)
	}
	return subject, text, out.String(), nil
}
