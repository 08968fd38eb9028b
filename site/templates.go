package site

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"go.uber.org/zap"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

const (
	passageTemplate = "passage.html.tmpl"
	indexTemplate   = "index.html.tmpl"
)

// passagePage feeds the passage template. HTML carrying fields (Edition,
// Translation, commentary bodies) hold pre-rendered markup, everything else
// is already escaped by the builder.
type passagePage struct {
	SiteTitle      string
	Title          string
	Language       string
	Edition        string
	Translation    string
	Commentaries   []commentaryEntry
	PrevHref       string
	PrevLabel      string
	NextHref       string
	NextLabel      string
	IndexHref      string
	StylesheetHref string
	BuildID        string
}

type commentaryEntry struct {
	ID    string
	Title string
	Body  string
	Refs  string
}

// indexPage feeds the catalog template.
type indexPage struct {
	SiteTitle      string
	Works          []indexWork
	StylesheetHref string
	BuildID        string
}

type indexWork struct {
	Title     string
	Excerpt   string
	NoteCount int
	Books     []indexBook
}

type indexBook struct {
	Label string
	Href  string
}

// Templates holds the parsed page templates: embedded defaults, with
// same-named files from the override directory replacing them.
type Templates struct {
	pages *template.Template
}

// LoadTemplates parses the embedded page templates and applies overrides
// found in dir. Files with new names become additional associated templates,
// usable from overridden pages.
func LoadTemplates(dir string, log *zap.Logger) (*Templates, error) {
	pages, err := template.New("pages").Funcs(sprig.FuncMap()).ParseFS(defaultTemplates, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("unable to parse embedded templates: %w", err)
	}

	if dir != "" {
		matches, err := filepath.Glob(filepath.Join(dir, "*.tmpl"))
		if err != nil {
			return nil, fmt.Errorf("unable to scan template overrides: %w", err)
		}
		for _, m := range matches {
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, fmt.Errorf("unable to read template override %q: %w", m, err)
			}
			if _, err := pages.New(filepath.Base(m)).Parse(string(data)); err != nil {
				return nil, fmt.Errorf("unable to parse template override %q: %w", m, err)
			}
			log.Debug("Template override applied", zap.String("file", m))
		}
	}

	return &Templates{pages: pages}, nil
}

func (t *Templates) renderPassage(w io.Writer, data *passagePage) error {
	return t.pages.ExecuteTemplate(w, passageTemplate, data)
}

func (t *Templates) renderIndex(w io.Writer, data *indexPage) error {
	return t.pages.ExecuteTemplate(w, indexTemplate, data)
}
