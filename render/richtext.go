package render

import (
	"fmt"
	"strings"
)

// Block types understood by RichText. Anything else renders as a paragraph.
const (
	BlockParagraph  = "paragraph"
	BlockHeaderTwo  = "header-two"
	BlockBlockquote = "blockquote"
)

// Inline style and entity kinds. Unknown kinds contribute empty markup.
const (
	StyleBold      = "BOLD"
	StyleItalic    = "ITALIC"
	StyleUnderline = "UNDERLINE"

	EntityLink  = "LINK"
	EntityImage = "IMAGE"
)

// Block is one rich text block: plain text plus two independent range sets
// over its runes.
type Block struct {
	Type         string
	Text         string
	StyleRanges  []StyleRange
	EntityRanges []EntityRange
	Entities     []Entity
}

// StyleRange styles Length runes starting at rune Offset.
type StyleRange struct {
	Offset int
	Length int
	Style  string
}

// EntityRange applies Entities[Key] to Length runes starting at rune Offset.
type EntityRange struct {
	Offset int
	Length int
	Key    int
}

// Entity is referenced by key from entity ranges.
type Entity struct {
	Kind string
	Data map[string]string
}

// FormattingRange is the resolved form every style or entity range reduces
// to: open/close markup over a half-open rune interval, offsets clamped
// rather than rejected.
type FormattingRange struct {
	Start int
	End   int
	Open  string
	Close string
}

// RichText renders commentary blocks to HTML, one wrapped block per input
// block, joined with newlines.
func RichText(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for i := range blocks {
		parts = append(parts, renderBlock(&blocks[i]))
	}
	return strings.Join(parts, "\n")
}

func renderBlock(b *Block) string {
	body := overlayRanges(b)
	switch b.Type {
	case BlockBlockquote:
		return "<blockquote>" + body + "</blockquote>"
	case BlockHeaderTwo:
		return "<h4>" + body + "</h4>"
	default:
		return "<p>" + body + "</p>"
	}
}

// overlayRanges builds per-character open/close accumulators and emits the
// escaped text through them. Style ranges open before entity ranges at the
// same index, and closings at the same index go ahead of earlier ones.
// Partially overlapping ranges interleave their tags instead of nesting.
func overlayRanges(b *Block) string {
	runes := []rune(b.Text)
	if len(runes) == 0 {
		return ""
	}
	opens := make([]string, len(runes))
	closes := make([]string, len(runes))

	apply := func(fr FormattingRange) {
		start, end := fr.Start, fr.End
		if start < 0 {
			start = 0
		}
		if end > len(runes) {
			end = len(runes)
		}
		if start > len(runes)-1 {
			start = len(runes) - 1
		}
		if end <= start {
			return
		}
		opens[start] += fr.Open
		closes[end-1] = fr.Close + closes[end-1]
	}

	for _, sr := range b.StyleRanges {
		open, closing := styleMarkup(sr.Style)
		apply(FormattingRange{Start: sr.Offset, End: sr.Offset + sr.Length, Open: open, Close: closing})
	}
	for _, er := range b.EntityRanges {
		if er.Key < 0 || er.Key >= len(b.Entities) {
			continue
		}
		open, closing := entityMarkup(b.Entities[er.Key])
		apply(FormattingRange{Start: er.Offset, End: er.Offset + er.Length, Open: open, Close: closing})
	}

	var sb strings.Builder
	for i, r := range runes {
		sb.WriteString(opens[i])
		sb.WriteString(EscapeHTML(string(r)))
		sb.WriteString(closes[i])
	}
	return sb.String()
}

func styleMarkup(style string) (string, string) {
	switch style {
	case StyleBold:
		return "<strong>", "</strong>"
	case StyleItalic:
		return "<em>", "</em>"
	case StyleUnderline:
		return "<u>", "</u>"
	}
	return "", ""
}

func entityMarkup(e Entity) (string, string) {
	switch e.Kind {
	case EntityLink:
		return fmt.Sprintf(`<a href="%s">`, EscapeHTML(e.Data["url"])), "</a>"
	case EntityImage:
		return fmt.Sprintf(`<img src="%s" alt="%s">`, EscapeHTML(e.Data["src"]), EscapeHTML(e.Data["alt"])), ""
	}
	return "", ""
}
