// Package cite resolves scholarly cross-references ("I-1.372", "3.45a") into
// site-local passage links and anchors.
package cite

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Defaults applied when configuration leaves them empty.
const (
	DefaultPrefix = "I"
	DefaultSlug   = "tlg0012.tlg001"
)

// CrossReference is one resolved reference. Instances are ephemeral, built
// per render call.
type CrossReference struct {
	WorkSlug   string
	BookNumber int
	// LineLabel is the raw line token and may carry a trailing letter
	// suffix ("45a").
	LineLabel string
}

// Resolver turns reference notations into hrefs and anchor links. It is pure
// and safe for concurrent use once constructed.
//
// Two notations are recognized and never confused:
//   - prefixed "<PREFIX>-<book>.<line>" ("I-1.372"), found anywhere in text;
//   - bare "<book>.<line>" ("3.45a"), matched against the whole token inside
//     already-scoped reference lists.
type Resolver struct {
	prefix      string
	defaultSlug string
	log         *zap.Logger

	prefixedPattern      *regexp.Regexp // I-1.372 anywhere in running text
	prefixedTokenPattern *regexp.Regexp // I-1.372 as the whole token
	bareTokenPattern     *regexp.Regexp // 3.45a as the whole token
}

// NewResolver compiles the reference patterns for the given prefix. Empty
// prefix or slug fall back to the package defaults.
func NewResolver(prefix, defaultSlug string, log *zap.Logger) *Resolver {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if defaultSlug == "" {
		defaultSlug = DefaultSlug
	}
	quoted := regexp.QuoteMeta(prefix)
	return &Resolver{
		prefix:      prefix,
		defaultSlug: defaultSlug,
		log:         log,

		prefixedPattern:      regexp.MustCompile(quoted + `-(\d+)\.(\d+[a-z]*)`),
		prefixedTokenPattern: regexp.MustCompile(`^` + quoted + `-(\d+)\.(\d+[a-z]*)$`),
		bareTokenPattern:     regexp.MustCompile(`^(\d+)\.(\d+[a-z]*)$`),
	}
}

// ParseRef finds the first prefixed reference in text. The second return is
// false when text contains none.
func (r *Resolver) ParseRef(text string) (*CrossReference, bool) {
	return r.refFromMatch(r.prefixedPattern.FindStringSubmatch(text))
}

func (r *Resolver) refFromMatch(m []string) (*CrossReference, bool) {
	if m == nil {
		return nil, false
	}
	book, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, false
	}
	return &CrossReference{
		WorkSlug:   r.defaultSlug,
		BookNumber: book,
		LineLabel:  m[2],
	}, true
}

// HrefFor builds the site-local href for ref, using the default slug when the
// reference carries none.
func (r *Resolver) HrefFor(ref *CrossReference) string {
	slug := ref.WorkSlug
	if slug == "" {
		slug = r.defaultSlug
	}
	return r.HrefForSlug(ref, slug)
}

// HrefForSlug builds the href for ref within the given work.
func (r *Resolver) HrefForSlug(ref *CrossReference, slug string) string {
	return fmt.Sprintf("/passages/%s/%d.html#%s", slug, ref.BookNumber, AnchorID(ref.BookNumber, ref.LineLabel))
}

// HrefForText extracts a prefixed reference from free text and returns its
// href, or "#" when no reference is found. It never fails.
func (r *Resolver) HrefForText(text string) string {
	ref, ok := r.ParseRef(text)
	if !ok {
		r.log.Debug("No cross reference in text, using placeholder href", zap.String("text", text))
		return "#"
	}
	return r.HrefFor(ref)
}

// AnchorID is the in-page anchor for a line of a book.
func AnchorID(book int, line string) string {
	return fmt.Sprintf("line-%d-%s", book, line)
}

// RenderLink turns a single reference token into an anchor tag. Tokens may
// use either notation. Anything that is not a reference is returned
// unchanged.
func (r *Resolver) RenderLink(text string) string {
	token := strings.TrimSpace(text)
	ref, ok := r.refFromMatch(r.bareTokenPattern.FindStringSubmatch(token))
	if !ok {
		ref, ok = r.refFromMatch(r.prefixedTokenPattern.FindStringSubmatch(token))
	}
	if !ok {
		return text
	}
	return fmt.Sprintf(`<a href="%s" class="cross-ref">%d.%s</a>`, r.HrefFor(ref), ref.BookNumber, ref.LineLabel)
}
