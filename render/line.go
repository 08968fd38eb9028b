package render

import (
	"fmt"
	"strconv"
	"strings"

	"kodon/cite"
	"kodon/translation"
)

// Annotation kinds that get a numbered superscript marker. Glosses and
// cross-references are consumed by earlier pipeline stages.
var markerKinds = map[string]bool{
	translation.KindNote:      true,
	translation.KindVariant:   true,
	translation.KindEditorial: true,
}

// Text runs the line pipeline over raw translation text: smart quotes, HTML
// escape, gloss highlighting, trailing cross-reference list, macron
// substitution, then numbered annotation popovers.
func Text(raw string, anns []translation.Annotation, res *cite.Resolver) string {
	out := EscapeHTML(SmartQuotes(raw))
	out = glossSpans(out, anns)
	out = appendCrossRefs(out, anns, res)
	out = Macronize(out)
	return out + annotationPopovers(anns, res)
}

// glossSpans wraps the first literal occurrence of each gloss in a styled
// span. Later glosses search the already rewritten text, overlapping or
// duplicated glosses keep only their first hit.
func glossSpans(escaped string, anns []translation.Annotation) string {
	for _, ann := range anns {
		if ann.Kind != translation.KindGloss || ann.Content == "" {
			continue
		}
		needle := EscapeHTML(ann.Content)
		escaped = strings.Replace(escaped, needle, `<span class="gloss">`+needle+`</span>`, 1)
	}
	return escaped
}

func appendCrossRefs(out string, anns []translation.Annotation, res *cite.Resolver) string {
	var links []string
	for _, ann := range anns {
		if ann.Kind != translation.KindCrossRef {
			continue
		}
		for _, token := range ann.Refs {
			links = append(links, res.RenderLink(token))
		}
	}
	if len(links) == 0 {
		return out
	}
	return out + ` <span class="cross-refs">[` + strings.Join(links, ", ") + `]</span>`
}

func annotationPopovers(anns []translation.Annotation, res *cite.Resolver) string {
	var sb strings.Builder
	index := 0
	for _, ann := range anns {
		if !markerKinds[ann.Kind] {
			continue
		}
		index++
		content := EscapeHTML(ann.Content)
		if ann.Kind == translation.KindVariant {
			content = "<i>v.l.</i> " + content
		}
		if len(ann.Refs) > 0 {
			links := make([]string, 0, len(ann.Refs))
			for _, token := range ann.Refs {
				links = append(links, res.RenderLink(token))
			}
			content += " " + strings.Join(links, ", ")
		}
		fmt.Fprintf(&sb, `<span class="annotation annotation-%s"><sup>%s</sup><span class="annotation-kind">%s</span> %s</span>`,
			ann.Kind, Superscript(index), ann.Kind, content)
	}
	return sb.String()
}

// Line renders one scholar line: anchor, clickable label, transformed text.
func Line(book int, line *translation.Line, res *cite.Resolver) string {
	anchor := cite.AnchorID(book, anchorToken(line.Number))
	return fmt.Sprintf(`<div class="line" id="%s"><a class="line-no" href="#%s">%s</a> <span class="line-text">%s</span></div>`,
		anchor, anchor, EscapeHTML(line.Number), Text(line.Text, line.Annotations, res))
}

// anchorToken makes a line label safe for an id attribute.
func anchorToken(label string) string {
	return strings.Join(strings.Fields(label), "-")
}

// Fallback renders one prose fallback segment. Prose gets smart quotes but
// none of the scholarly transforms.
func Fallback(seg *translation.Segment) string {
	label := strconv.Itoa(seg.Start)
	if seg.End != seg.Start {
		label = fmt.Sprintf("%d-%d", seg.Start, seg.End)
	}
	return fmt.Sprintf(`<p class="fallback" data-lines="%s">%s</p>`, label, EscapeHTML(SmartQuotes(seg.Text)))
}

// Merged renders a merged translation column in order.
func Merged(book int, items []translation.MergedItem, res *cite.Resolver) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch {
		case item.Line != nil:
			parts = append(parts, Line(book, item.Line, res))
		case item.Segment != nil:
			parts = append(parts, Fallback(item.Segment))
		}
	}
	return strings.Join(parts, "\n")
}
