// Package translation parses the hand-maintained scholar translation files
// (one plaintext file per book) and merges them with public-domain prose
// fallback segments.
package translation

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Annotation kinds attachable to a translation line.
const (
	KindGloss     = "gloss"
	KindNote      = "note"
	KindVariant   = "variant"
	KindCrossRef  = "cross-ref"
	KindEditorial = "editorial"
)

var annotationKinds = map[string]struct{}{
	KindGloss:     {},
	KindNote:      {},
	KindVariant:   {},
	KindCrossRef:  {},
	KindEditorial: {},
}

// Annotation is one apparatus entry attached to a line. Refs is populated for
// cross-ref annotations only, one entry per comma-separated token.
type Annotation struct {
	Kind    string
	Content string
	Refs    []string
}

// SortKey orders line labels: numeric part ascending, then suffix
// lexicographically with the empty suffix first ("40" < "40a" < "41",
// "302" < "302 v.l.").
type SortKey struct {
	N      int
	Suffix string
}

// Less reports whether k orders before other.
func (k SortKey) Less(other SortKey) bool {
	if k.N != other.N {
		return k.N < other.N
	}
	return k.Suffix < other.Suffix
}

// ParseSortKey splits a line label into its leading number and normalized
// suffix. The second return is false when the label does not start with a
// digit.
func ParseSortKey(label string) (SortKey, bool) {
	i := 0
	for i < len(label) && label[i] >= '0' && label[i] <= '9' {
		i++
	}
	if i == 0 {
		return SortKey{}, false
	}
	n, err := strconv.Atoi(label[:i])
	if err != nil {
		return SortKey{}, false
	}
	return SortKey{N: n, Suffix: strings.ToLower(strings.TrimSpace(label[i:]))}, true
}

// Line is one translated verse line with its apparatus.
type Line struct {
	// Number is the display label exactly as written ("40", "40a",
	// "302 v.l.").
	Number      string
	Key         SortKey
	Text        string
	Annotations []Annotation
}

// ParseLines reads one translation file. Lines come back in file order, the
// caller sorts by Key where order matters.
//
// The format is line oriented:
//
//	# comment
//	<label> <verse text>
//	  @<kind>: <content>
//
// Annotations attach to the closest preceding line. Blank lines are ignored.
func ParseLines(r io.Reader, log *zap.Logger) ([]Line, error) {
	var lines []Line
	cur := -1

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, "@") {
			ann, ok := parseAnnotation(trimmed, lineNo, log)
			if !ok {
				continue
			}
			if cur < 0 {
				log.Warn("Annotation without a preceding line, dropping",
					zap.Int("line", lineNo), zap.String("kind", ann.Kind))
				continue
			}
			lines[cur].Annotations = append(lines[cur].Annotations, ann)
			continue
		}

		label, rest, _ := splitToken(trimmed)
		if next, after, ok := splitToken(rest); ok && next == "v.l." {
			label += " v.l."
			rest = after
		}
		key, ok := ParseSortKey(label)
		if !ok {
			log.Warn("Unrecognized line label, ignoring line",
				zap.Int("line", lineNo), zap.String("label", label))
			cur = -1
			continue
		}
		if rest == "" {
			log.Warn("Line without text, ignoring", zap.Int("line", lineNo), zap.String("label", label))
			cur = -1
			continue
		}
		lines = append(lines, Line{Number: label, Key: key, Text: rest})
		cur = len(lines) - 1
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read translation lines: %w", err)
	}
	return lines, nil
}

func parseAnnotation(trimmed string, lineNo int, log *zap.Logger) (Annotation, bool) {
	kind, content, found := strings.Cut(trimmed[1:], ":")
	if !found {
		log.Warn("Malformed annotation, ignoring", zap.Int("line", lineNo), zap.String("text", trimmed))
		return Annotation{}, false
	}
	kind = strings.TrimSpace(kind)
	content = strings.TrimSpace(content)
	if _, known := annotationKinds[kind]; !known {
		log.Warn("Unknown annotation kind, ignoring", zap.Int("line", lineNo), zap.String("kind", kind))
		return Annotation{}, false
	}
	ann := Annotation{Kind: kind, Content: content}
	if kind == KindCrossRef {
		for _, token := range strings.Split(content, ",") {
			if token = strings.TrimSpace(token); token != "" {
				ann.Refs = append(ann.Refs, token)
			}
		}
	}
	return ann, true
}

// splitToken cuts s at the first whitespace run.
func splitToken(s string) (string, string, bool) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, "", false
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace), true
}
