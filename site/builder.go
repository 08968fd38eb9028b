package site

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/gosimple/slug"
	"github.com/maruel/natural"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"kodon/cite"
	"kodon/content"
	"kodon/render"
	"kodon/state"
)

// builtPage records one generated passage page, output root relative.
type builtPage struct {
	path  string
	label string
}

// workEntry keeps what the catalog and sitemap need from a processed work.
type workEntry struct {
	title   string
	excerpt string
	notes   int
	pages   []builtPage
}

// Builder assembles one static site. Passage pages are written as works are
// added, the catalog page, sitemap and assets are written by Finish.
type Builder struct {
	out   string
	tpl   *Templates
	split *Splitter
	res   *cite.Resolver
	caser cases.Caser
	works []workEntry
	slugs map[string]bool
	log   *zap.Logger
}

func NewBuilder(ctx context.Context, out string, log *zap.Logger) (*Builder, error) {
	env := state.EnvFromContext(ctx)

	tpl, err := LoadTemplates(env.Cfg.Site.TemplatesOverride, log)
	if err != nil {
		return nil, fmt.Errorf("unable to load page templates: %w", err)
	}

	return &Builder{
		out:   out,
		tpl:   tpl,
		split: NewSplitter(log),
		res:   cite.NewResolver(env.Cfg.CrossRefs.Prefix, env.Cfg.CrossRefs.DefaultSlug, log),
		caser: cases.Title(language.English),
		slugs: make(map[string]bool),
		log:   log,
	}, nil
}

// AddWork writes the passage pages for one prepared work. Works arriving with
// a slug the builder has seen before are skipped, the first one wins.
func (b *Builder) AddWork(ctx context.Context, w *content.Work) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)

	if b.slugs[w.Slug] {
		b.log.Warn("Duplicate work slug, skipping work",
			zap.String("slug", w.Slug), zap.String("source", w.SrcName))
		return nil
	}
	if len(w.Books) == 0 {
		b.log.Warn("Work has no books, nothing to publish",
			zap.String("slug", w.Slug), zap.String("source", w.SrcName))
		return nil
	}
	b.slugs[w.Slug] = true

	pages := make([]builtPage, len(w.Books))
	for i, bk := range w.Books {
		pages[i] = builtPage{
			path:  pagePath(w.Slug, bk.Number, env),
			label: b.bookLabel(bk),
		}
	}

	for i := range w.Books {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.writePassage(env, w, i, pages); err != nil {
			return fmt.Errorf("unable to write page for book %d of %q: %w", w.Books[i].Number, w.Slug, err)
		}
	}

	b.works = append(b.works, workEntry{
		title:   workTitle(w),
		excerpt: b.workExcerpt(w),
		notes:   len(w.Commentaries),
		pages:   pages,
	})
	b.log.Info("Added work to site",
		zap.String("slug", w.Slug), zap.Int("pages", len(pages)), zap.Int("commentaries", len(w.Commentaries)))
	return nil
}

// Finish writes the catalog page, the sitemap and the site assets.
func (b *Builder) Finish(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)

	sort.SliceStable(b.works, func(i, j int) bool {
		return natural.Less(b.works[i].title, b.works[j].title)
	})

	if err := b.writeIndex(env); err != nil {
		return fmt.Errorf("unable to write catalog page: %w", err)
	}
	if err := b.writeSitemap(env); err != nil {
		return fmt.Errorf("unable to write sitemap: %w", err)
	}
	if err := b.writeAssets(env); err != nil {
		return err
	}

	pageCount := 0
	for _, w := range b.works {
		pageCount += len(w.pages)
	}
	b.log.Info("Site assembled", zap.Int("works", len(b.works)), zap.Int("pages", pageCount))
	return nil
}

// workTitle picks the display title for a work. Edition addresses are CTS
// urns, not something to put on a page, so those fall back to the slug.
func workTitle(w *content.Work) string {
	if w.Title != "" && !strings.HasPrefix(w.Title, "urn:") {
		return w.Title
	}
	return w.Slug
}

// bookLabel builds the navigation label for a book, "Book 1" for a division
// with subtype "book" and citation label "1". Translation only books get a
// label from the book number alone.
func (b *Builder) bookLabel(bk *content.Book) string {
	kind := "book"
	label := fmt.Sprintf("%d", bk.Number)
	if bk.Division != nil {
		if bk.Division.Subtype != "" {
			kind = bk.Division.Subtype
		}
		if bk.Division.CitationLabel != "" {
			label = bk.Division.CitationLabel
		}
	}
	return b.caser.String(kind) + " " + label
}

// workExcerpt pulls a short teaser for the catalog from the head of the first
// translated book.
func (b *Builder) workExcerpt(w *content.Work) string {
	var parts []string
	for _, bk := range w.Books {
		for _, item := range bk.Merged {
			switch {
			case item.Line != nil:
				parts = append(parts, item.Line.Text)
			case item.Segment != nil:
				parts = append(parts, item.Segment.Text)
			}
			if len(parts) == 4 {
				break
			}
		}
		if len(parts) > 0 {
			break
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return b.split.Excerpt(strings.Join(parts, " "), 2)
}

func (b *Builder) writePassage(env *state.LocalEnv, w *content.Work, i int, pages []builtPage) error {
	bk := w.Books[i]
	page := pages[i]

	data := &passagePage{
		SiteTitle:      render.EscapeHTML(env.Cfg.Site.Title),
		Title:          render.EscapeHTML(workTitle(w) + " · " + page.label),
		Language:       w.Edition.Language,
		Commentaries:   b.commentaryEntries(w, bk.Number),
		IndexHref:      relHref(page.path, "index.html"),
		StylesheetHref: relHref(page.path, filepath.Join(assetsDir, stylesheetName)),
		BuildID:        env.BuildID.String(),
	}
	if bk.Division != nil {
		data.Edition = render.Division(w.Edition, bk.Division, b.res)
	}
	if len(bk.Merged) > 0 {
		data.Translation = render.Merged(bk.Number, bk.Merged, b.res)
	}
	if i > 0 {
		data.PrevHref = relHref(page.path, pages[i-1].path)
		data.PrevLabel = render.EscapeHTML(pages[i-1].label)
	}
	if i+1 < len(pages) {
		data.NextHref = relHref(page.path, pages[i+1].path)
		data.NextLabel = render.EscapeHTML(pages[i+1].label)
	}

	name := filepath.Join(b.out, page.path)
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create page directory: %w", err)
	}
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create page file: %w", err)
	}
	if err := b.tpl.renderPassage(f, data); err != nil {
		f.Close()
		return fmt.Errorf("unable to render page: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize page file: %w", err)
	}

	b.log.Debug("Wrote passage page", zap.String("file", name))
	return nil
}

func (b *Builder) commentaryEntries(w *content.Work, book int) []commentaryEntry {
	notes := w.CommentariesForBook(book)
	if len(notes) == 0 {
		return nil
	}
	entries := make([]commentaryEntry, 0, len(notes))
	for _, c := range notes {
		title := c.Title
		if title == "" {
			title = c.Name
		}
		links := make([]string, 0, len(c.Refs))
		for _, ref := range c.Refs {
			link := b.res.RenderLink(ref)
			if link == ref {
				link = render.EscapeHTML(ref)
			}
			links = append(links, link)
		}
		entries = append(entries, commentaryEntry{
			ID:    "note-" + slug.Make(c.Name),
			Title: render.EscapeHTML(title),
			Body:  render.RichText(c.Blocks),
			Refs:  strings.Join(links, ", "),
		})
	}
	return entries
}

func (b *Builder) writeIndex(env *state.LocalEnv) error {
	data := &indexPage{
		SiteTitle:      render.EscapeHTML(env.Cfg.Site.Title),
		StylesheetHref: assetsDir + "/" + stylesheetName,
		BuildID:        env.BuildID.String(),
	}
	for _, w := range b.works {
		entry := indexWork{
			Title:     render.EscapeHTML(w.title),
			Excerpt:   render.EscapeHTML(w.excerpt),
			NoteCount: w.notes,
		}
		for _, p := range w.pages {
			entry.Books = append(entry.Books, indexBook{
				Label: render.EscapeHTML(p.label),
				Href:  filepath.ToSlash(p.path),
			})
		}
		data.Works = append(data.Works, entry)
	}

	f, err := os.Create(filepath.Join(b.out, "index.html"))
	if err != nil {
		return err
	}
	if err := b.tpl.renderIndex(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (b *Builder) writeSitemap(env *state.LocalEnv) error {
	base := strings.TrimSuffix(env.Cfg.Site.BaseURL, "/")
	if base == "" {
		b.log.Debug("Site base URL not configured, sitemap locations will be root relative")
	}
	lastmod := time.Now().Format("2006-01-02")

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	urlset := doc.CreateElement("urlset")
	urlset.CreateAttr("xmlns", "http://www.sitemaps.org/schemas/sitemap/0.9")

	add := func(rel string) {
		u := urlset.CreateElement("url")
		u.CreateElement("loc").SetText(base + "/" + filepath.ToSlash(rel))
		u.CreateElement("lastmod").SetText(lastmod)
	}
	add("index.html")
	for _, w := range b.works {
		for _, p := range w.pages {
			add(p.path)
		}
	}

	doc.Indent(2)
	return doc.WriteToFile(filepath.Join(b.out, "sitemap.xml"))
}
