package commentary

import (
	"unicode"

	"kodon/render"
)

// scanner accumulates the plain text of one block together with the style
// and entity ranges the inline markers resolve to. Offsets and lengths are
// in runes, matching what the rendering overlay expects.
type scanner struct {
	text     []rune
	styles   []render.StyleRange
	ranges   []render.EntityRange
	entities []render.Entity
}

// scanInline parses markdown-style inline markers: **bold**, *italic*,
// _underline_, [text](url) links and ![alt](src) images. Markers nest;
// a backslash makes the following marker character literal. Anything that
// does not form a complete marker stays in the text as-is.
func scanInline(src []rune) *scanner {
	s := &scanner{}
	pos := 0
	for pos < len(src) {
		r := src[pos]
		switch {
		case r == '\\' && pos+1 < len(src) && isMarker(src[pos+1]):
			s.text = append(s.text, src[pos+1])
			pos += 2
		case r == '!' && lookingAt(src, pos+1, "["):
			next, ok := s.image(src, pos)
			if !ok {
				s.text = append(s.text, r)
				pos++
				break
			}
			pos = next
		case r == '[':
			next, ok := s.link(src, pos)
			if !ok {
				s.text = append(s.text, r)
				pos++
				break
			}
			pos = next
		case lookingAt(src, pos, "**"):
			next, ok := s.styled(src, pos, "**", render.StyleBold)
			if !ok {
				s.text = append(s.text, '*', '*')
				pos += 2
				break
			}
			pos = next
		case r == '*':
			next, ok := s.styled(src, pos, "*", render.StyleItalic)
			if !ok {
				s.text = append(s.text, r)
				pos++
				break
			}
			pos = next
		case r == '_' && underlineBoundary(src, pos):
			next, ok := s.styled(src, pos, "_", render.StyleUnderline)
			if !ok {
				s.text = append(s.text, r)
				pos++
				break
			}
			pos = next
		default:
			s.text = append(s.text, r)
			pos++
		}
	}
	return s
}

// styled consumes a delimiter pair, scans the enclosed text recursively and
// records a style range covering it. Returns false when the closing
// delimiter is missing or the content is empty.
func (s *scanner) styled(src []rune, pos int, delim, style string) (int, bool) {
	open := pos + len(delim)
	end := runeIndex(src, delim, open)
	if end < 0 || end == open {
		return 0, false
	}
	off, n := s.absorb(scanInline(src[open:end]))
	if n > 0 {
		s.styles = append(s.styles, render.StyleRange{Offset: off, Length: n, Style: style})
	}
	return end + len(delim), true
}

// link consumes "[text](url)". The text scans recursively, the url is taken
// literally.
func (s *scanner) link(src []rune, pos int) (int, bool) {
	text, target, next, ok := bracketPair(src, pos+1)
	if !ok || len(text) == 0 {
		return 0, false
	}
	key := len(s.entities)
	s.entities = append(s.entities, render.Entity{
		Kind: render.EntityLink,
		Data: map[string]string{"url": string(target)},
	})
	off, n := s.absorb(scanInline(text))
	s.ranges = append(s.ranges, render.EntityRange{Offset: off, Length: n, Key: key})
	return next, true
}

// image consumes "![alt](src)". The visible text is a single space carrying
// the entity range, the alt text only lands in the entity data.
func (s *scanner) image(src []rune, pos int) (int, bool) {
	alt, target, next, ok := bracketPair(src, pos+2)
	if !ok {
		return 0, false
	}
	key := len(s.entities)
	s.entities = append(s.entities, render.Entity{
		Kind: render.EntityImage,
		Data: map[string]string{"src": string(target), "alt": string(alt)},
	})
	s.ranges = append(s.ranges, render.EntityRange{Offset: len(s.text), Length: 1, Key: key})
	s.text = append(s.text, ' ')
	return next, true
}

// absorb merges a recursively scanned fragment into the receiver, shifting
// range offsets and rebasing entity keys. Returns the fragment's offset and
// rune length within the merged text.
func (s *scanner) absorb(inner *scanner) (int, int) {
	off := len(s.text)
	keyBase := len(s.entities)
	s.text = append(s.text, inner.text...)
	for _, sr := range inner.styles {
		sr.Offset += off
		s.styles = append(s.styles, sr)
	}
	for _, er := range inner.ranges {
		er.Offset += off
		er.Key += keyBase
		s.ranges = append(s.ranges, er)
	}
	s.entities = append(s.entities, inner.entities...)
	return off, len(inner.text)
}

// bracketPair parses "text](target)" starting right after the opening
// bracket, returning the enclosed parts and the position after the closing
// parenthesis.
func bracketPair(src []rune, from int) (text, target []rune, next int, ok bool) {
	mid := runeIndex(src, "](", from)
	if mid < 0 {
		return nil, nil, 0, false
	}
	end := runeIndex(src, ")", mid+2)
	if end < 0 {
		return nil, nil, 0, false
	}
	return src[from:mid], src[mid+2 : end], end + 1, true
}

func runeIndex(src []rune, marker string, from int) int {
	m := []rune(marker)
	for i := from; i+len(m) <= len(src); i++ {
		found := true
		for j := range m {
			if src[i+j] != m[j] {
				found = false
				break
			}
		}
		if found {
			return i
		}
	}
	return -1
}

func lookingAt(src []rune, pos int, marker string) bool {
	m := []rune(marker)
	if pos < 0 || pos+len(m) > len(src) {
		return false
	}
	for i, r := range m {
		if src[pos+i] != r {
			return false
		}
	}
	return true
}

// underlineBoundary keeps underscores inside identifiers literal: the
// marker only opens at the start of the text or after a space.
func underlineBoundary(src []rune, pos int) bool {
	return pos == 0 || unicode.IsSpace(src[pos-1])
}

func isMarker(r rune) bool {
	switch r {
	case '*', '_', '[', ']', '(', ')', '!', '\\':
		return true
	}
	return false
}
