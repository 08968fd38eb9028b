package site

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"go.uber.org/zap"

	"kodon/config"
	"kodon/state"
)

// pathValues is the data available to the page path template.
type pathValues struct {
	Context string
	Slug    string
	Book    int
}

const defaultPagePathTemplate = "passages/{{.Slug}}/{{.Book}}.html"

// pagePath expands the configured page path template for one passage page and
// returns a clean path relative to the output root. A broken user template
// falls back to the default layout with a warning.
func pagePath(slug string, book int, env *state.LocalEnv) string {
	tmplText := env.Cfg.Site.PagePathTemplate
	if tmplText == "" {
		tmplText = defaultPagePathTemplate
	}

	expanded, err := expandPathTemplate(tmplText, slug, book)
	if err != nil {
		env.Log.Warn("Unable to expand page path template, using default layout",
			zap.String("template", tmplText), zap.Error(err))
		expanded, _ = expandPathTemplate(defaultPagePathTemplate, slug, book)
	}

	segments := strings.Split(filepath.ToSlash(expanded), "/")
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = config.CleanFileName(strings.TrimSpace(s))
		if s != "" && s != "_bad_file_name_" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		parts = []string{fmt.Sprintf("%d.html", book)}
	}
	return filepath.Join(parts...)
}

func expandPathTemplate(text string, slug string, book int) (string, error) {
	tmpl, err := template.New(string(config.PagePathTemplateFieldName)).Funcs(sprig.FuncMap()).Parse(text)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", config.PagePathTemplateFieldName, err)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, pathValues{
		Context: string(config.PagePathTemplateFieldName),
		Slug:    slug,
		Book:    book,
	}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// relHref computes a relative URL from the page at fromPath to the target at
// toPath, both output-root relative file paths.
func relHref(fromPath, toPath string) string {
	rel, err := filepath.Rel(filepath.Dir(fromPath), toPath)
	if err != nil {
		// fall back to a root-relative reference
		return "/" + filepath.ToSlash(toPath)
	}
	return filepath.ToSlash(rel)
}
