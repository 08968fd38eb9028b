// Package content assembles publishable works: a parsed edition joined with
// the scholar translation and commentary apparatus living next to it.
package content

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"kodon/cite"
	"kodon/commentary"
	"kodon/config"
	"kodon/state"
	"kodon/tei"
	"kodon/translation"
)

// Work ties one edition document together with everything published next to
// it. It is assembled once by Prepare and read-only afterwards.
type Work struct {
	SrcName string
	Slug    string
	// Title is the edition address when the source declares one, the slug
	// otherwise.
	Title   string
	Edition *tei.Document
	// Books in ascending book number order.
	Books        []*Book
	Commentaries []*commentary.Commentary

	byAnchor map[string][]*commentary.Commentary
}

// Book is one citation book of a work: the edition division tree when the
// edition has it, plus the translation apparatus when a matching
// translation file exists.
type Book struct {
	Number int
	// Division is the top level edition division for the book, nil for
	// translation-only books.
	Division *tei.Division
	// Lines keeps the scholar lines in file order.
	Lines []translation.Line
	// Segments holds prose fallback segments covering gaps in Lines.
	Segments []translation.Segment
	// Merged is the publication order: scholar lines interleaved with the
	// fallback segments that survive gap filtering.
	Merged []translation.MergedItem
}

// Prepare reads and parses one edition source and attaches the translation
// and commentary apparatus configured for the run.
func Prepare(ctx context.Context, r io.Reader, srcName string, log *zap.Logger) (*Work, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := state.EnvFromContext(ctx)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read edition source: %w", err)
	}

	doc, err := tei.ParseBytes(data, log)
	if err != nil {
		return nil, fmt.Errorf("unable to parse edition: %w", err)
	}

	w := &Work{
		SrcName:  srcName,
		Slug:     workSlug(env.Cfg, doc, srcName),
		Edition:  doc,
		byAnchor: make(map[string][]*commentary.Commentary),
	}
	w.Title = w.Slug
	if len(doc.EditionAddress) > 0 {
		w.Title = doc.EditionAddress
	}

	books := make(map[int]*Book)
	for i := range doc.Divisions {
		div := &doc.Divisions[i]
		if len(div.Location) != 1 {
			continue
		}
		n, err := strconv.Atoi(div.Location[0])
		if err != nil {
			log.Debug("Top level division has no numeric label, not a book", zap.String("label", div.Location[0]), zap.String("address", div.Address))
			continue
		}
		if _, exists := books[n]; exists {
			log.Warn("Duplicate book division, keeping the first", zap.Int("book", n), zap.String("address", div.Address))
			continue
		}
		books[n] = &Book{Number: n, Division: div}
	}

	if dir := env.Cfg.Sources.Translations; sourceDirExists(dir, "translations", log) {
		if err := loadTranslations(books, dir, log); err != nil {
			return nil, err
		}
	}

	for _, b := range books {
		w.Books = append(w.Books, b)
	}
	sort.Slice(w.Books, func(i, j int) bool { return w.Books[i].Number < w.Books[j].Number })

	if dir := env.Cfg.Sources.Commentaries; sourceDirExists(dir, "commentaries", log) {
		cs, err := commentary.LoadDir(dir, log)
		if err != nil {
			return nil, err
		}
		res := cite.NewResolver(env.Cfg.CrossRefs.Prefix, env.Cfg.CrossRefs.DefaultSlug, log)
		w.attachCommentaries(cs, res, log)
	}

	if env.Rpt != nil {
		base := filepath.Base(srcName)
		env.Rpt.StoreData(fmt.Sprintf("works/%s/%s", w.Slug, base), data)
		env.Rpt.StoreData(fmt.Sprintf("works/%s/%s_parsed", w.Slug, base), []byte(doc.String()))
		env.Rpt.StoreData(fmt.Sprintf("works/%s/%s_prepared", w.Slug, base), []byte(w.String()))
	}

	return w, nil
}

// CommentariesFor returns the commentaries referencing one line, in load
// order.
func (w *Work) CommentariesFor(book int, line string) []*commentary.Commentary {
	return w.byAnchor[cite.AnchorID(book, line)]
}

// CommentariesForBook returns every commentary anchored somewhere in the given
// book, ordered by anchor and deduplicated.
func (w *Work) CommentariesForBook(book int) []*commentary.Commentary {
	prefix := fmt.Sprintf("line-%d-", book)
	keys := slices.Collect(maps.Keys(w.byAnchor))
	sort.Sort(natural.StringSlice(keys))

	var out []*commentary.Commentary
	seen := make(map[*commentary.Commentary]bool)
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		for _, c := range w.byAnchor[k] {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// Book returns the book with the given number, nil when absent.
func (w *Work) Book(n int) *Book {
	for _, b := range w.Books {
		if b.Number == n {
			return b
		}
	}
	return nil
}

// workSlug picks the work identifier: the configured override wins, then the
// CTS work part of the edition address, then a slug of the source name.
func workSlug(cfg *config.Config, doc *tei.Document, srcName string) string {
	if len(cfg.Site.WorkSlug) > 0 {
		return cfg.Site.WorkSlug
	}
	if id := ctsWorkID(doc.EditionAddress); len(id) > 0 {
		return id
	}
	base := filepath.Base(srcName)
	return slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
}

// ctsWorkID extracts "<textgroup>.<work>" from a CTS urn like
// "urn:cts:greekLit:tlg0012.tlg001.perseus-grc2". Returns "" when the
// address does not look like one.
func ctsWorkID(address string) string {
	if !strings.HasPrefix(address, "urn:cts:") {
		return ""
	}
	parts := strings.Split(address, ":")
	dots := strings.Split(parts[len(parts)-1], ".")
	if len(dots) < 2 || len(dots[0]) == 0 || len(dots[1]) == 0 {
		return ""
	}
	return dots[0] + "." + dots[1]
}

func sourceDirExists(dir, kind string, log *zap.Logger) bool {
	if len(dir) == 0 {
		return false
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Debug("Source directory not present, skipping", zap.String("kind", kind), zap.String("dir", dir))
		return false
	}
	return true
}

// loadTranslations reads "<book>.txt" files and their optional
// "<book>.prose.txt" fallbacks, merging both into publication order.
func loadTranslations(books map[int]*Book, dir string, log *zap.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("unable to read translations directory: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".prose.txt") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, ".txt"))
		if err != nil {
			log.Warn("Translation file name is not a book number, skipping", zap.String("file", name))
			continue
		}

		lines, err := parseTranslationFile(filepath.Join(dir, name), log)
		if err != nil {
			return err
		}

		b := books[n]
		if b == nil {
			b = &Book{Number: n}
			books[n] = b
		}
		b.Lines = lines

		prose := filepath.Join(dir, fmt.Sprintf("%d.prose.txt", n))
		if _, err := os.Stat(prose); err == nil {
			if b.Segments, err = parseSegmentsFile(prose, log); err != nil {
				return err
			}
		}
		b.Merged = translation.Merge(b.Lines, b.Segments, log)
	}
	return nil
}

func parseTranslationFile(path string, log *zap.Logger) ([]translation.Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open translation file: %w", err)
	}
	defer f.Close()

	lines, err := translation.ParseLines(f, log.With(zap.String("file", filepath.Base(path))))
	if err != nil {
		return nil, fmt.Errorf("unable to parse translation file %s: %w", path, err)
	}
	return lines, nil
}

func parseSegmentsFile(path string, log *zap.Logger) ([]translation.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open fallback file: %w", err)
	}
	defer f.Close()

	segs, err := translation.ParseSegments(f, log.With(zap.String("file", filepath.Base(path))))
	if err != nil {
		return nil, fmt.Errorf("unable to parse fallback file %s: %w", path, err)
	}
	return segs, nil
}

// attachCommentaries indexes commentaries by the line anchors their refs
// resolve to and reports refs pointing nowhere.
func (w *Work) attachCommentaries(cs []*commentary.Commentary, res *cite.Resolver, log *zap.Logger) {
	labels := w.lineLabels()
	for _, c := range cs {
		for _, refText := range c.Refs {
			ref, ok := res.ParseRef(refText)
			if !ok {
				log.Warn("Commentary reference does not parse", zap.String("commentary", c.Name), zap.String("ref", refText))
				continue
			}
			if byBook, okb := labels[ref.BookNumber]; !okb {
				log.Warn("Commentary references unknown book", zap.String("commentary", c.Name), zap.String("ref", refText))
			} else if !byBook[ref.LineLabel] {
				log.Warn("Commentary references unknown line", zap.String("commentary", c.Name), zap.String("ref", refText))
			}
			anchor := cite.AnchorID(ref.BookNumber, ref.LineLabel)
			w.byAnchor[anchor] = append(w.byAnchor[anchor], c)
		}
	}
	w.Commentaries = cs
}

// lineLabels collects every known line label per book, from the translation
// lines and from the edition's numbered line elements.
func (w *Work) lineLabels() map[int]map[string]bool {
	labels := make(map[int]map[string]bool)
	add := func(book int, label string) {
		if len(label) == 0 {
			return
		}
		m := labels[book]
		if m == nil {
			m = make(map[string]bool)
			labels[book] = m
		}
		m[label] = true
	}

	for _, b := range w.Books {
		for i := range b.Lines {
			add(b.Number, b.Lines[i].Number)
		}
	}

	// map owning divisions back to their book numbers
	divBook := make(map[int]int)
	for i := range w.Edition.Divisions {
		div := &w.Edition.Divisions[i]
		if len(div.Location) == 0 {
			continue
		}
		if n, err := strconv.Atoi(div.Location[0]); err == nil {
			divBook[div.SequenceIndex] = n
		}
	}
	for _, top := range w.Edition.TopLevelElements {
		els := top.FindDescendants("l")
		if top.Tag == "l" {
			els = append([]*tei.Element{top}, els...)
		}
		for _, el := range els {
			if book, ok := divBook[el.OwnerDivisionIndex]; ok {
				add(book, el.Attributes["n"])
			}
		}
	}
	return labels
}
