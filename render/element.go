package render

import (
	"fmt"
	"strings"

	"kodon/cite"
	"kodon/tei"
)

// Element renders one parsed edition subtree. Note markers restart their
// numbering for every call; use Division to number notes across a whole
// division.
func Element(el *tei.Element, res *cite.Resolver) string {
	r := &elementRenderer{res: res}
	r.element(el)
	return r.sb.String()
}

// Division renders every top level element owned by div, in document order,
// with a single note numbering sequence.
func Division(doc *tei.Document, div *tei.Division, res *cite.Resolver) string {
	r := &elementRenderer{res: res}
	first := true
	for _, el := range doc.TopLevelElements {
		if el.OwnerDivisionIndex != div.SequenceIndex {
			continue
		}
		if !first {
			r.sb.WriteByte('\n')
		}
		first = false
		r.element(el)
	}
	return r.sb.String()
}

type elementRenderer struct {
	sb    strings.Builder
	res   *cite.Resolver
	notes int
}

func (r *elementRenderer) element(el *tei.Element) {
	switch el.Tag {
	case "l":
		if n := el.Attributes["n"]; n != "" {
			n = EscapeHTML(n)
			fmt.Fprintf(&r.sb, `<div class="l" id="e-line-%s"><span class="l-no">%s</span> `, n, n)
		} else {
			r.sb.WriteString(`<div class="l">`)
		}
		r.children(el)
		r.sb.WriteString(`</div>`)
	case "note":
		r.notes++
		fmt.Fprintf(&r.sb, `<sup class="note-marker">%s</sup><span class="note-popover">`, Superscript(r.notes))
		r.children(el)
		r.sb.WriteString(`</span>`)
	case "ref":
		href := el.Attributes["target"]
		if href == "" {
			href = r.res.HrefForText(el.FullText())
		}
		fmt.Fprintf(&r.sb, `<a href="%s" class="cross-ref">`, EscapeHTML(href))
		r.children(el)
		r.sb.WriteString(`</a>`)
	case "q", "said":
		r.wrap(el, "q")
	case "del":
		r.wrap(el, "del")
	case "add":
		r.wrap(el, "ins")
	case "foreign", "title":
		r.wrap(el, "i")
	case "emph":
		r.wrap(el, "em")
	default:
		fmt.Fprintf(&r.sb, `<span class="tei-%s">`, el.Tag)
		r.children(el)
		r.sb.WriteString(`</span>`)
	}
}

func (r *elementRenderer) wrap(el *tei.Element, tag string) {
	r.sb.WriteString("<" + tag + ">")
	r.children(el)
	r.sb.WriteString("</" + tag + ">")
}

func (r *elementRenderer) children(el *tei.Element) {
	for _, child := range el.Children {
		switch child.Kind {
		case tei.NodeText:
			r.sb.WriteString(EscapeHTML(child.Text.Text))
		case tei.NodeElement:
			r.element(child.Element)
		}
	}
}
