package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"strings"

	apperrors "notification-workers/internal/common/errors"
)

// Templates is a set of named HTML email templates.
type Templates struct {
	set *template.Template
}

// LoadTemplates parses every *.html file in dir. An empty dir yields an
// empty set.
func LoadTemplates(dir string) (*Templates, error) {
	if dir == "" {
		return &Templates{}, nil
	}
	return ParseTemplates(os.DirFS(dir), "*.html")
}

// ParseTemplates parses the files of fsys matching pattern.
func ParseTemplates(fsys fs.FS, pattern string) (*Templates, error) {
	set, err := template.ParseFS(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Templates{set: set}, nil
}

// Render executes the template called name, with or without the .html
// suffix. Unknown names return a TEMPLATE_NOT_FOUND error.
func (t *Templates) Render(name string, data map[string]interface{}) (string, error) {
	if t == nil || t.set == nil {
		return "", apperrors.NewTemplateNotFoundError(name)
	}
	tmpl := t.set.Lookup(name)
	if tmpl == nil && !strings.HasSuffix(name, ".html") {
		tmpl = t.set.Lookup(name + ".html")
	}
	if tmpl == nil {
		return "", apperrors.NewTemplateNotFoundError(name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
