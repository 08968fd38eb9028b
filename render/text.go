// Package render turns parsed editions, translation lines and commentary
// blocks into HTML fragments. All transforms are pure string pipelines; the
// stage order within a pipeline is fixed and every stage assumes the output
// of the previous one.
package render

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// EscapeHTML escapes text for inclusion in HTML content.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

var (
	contractionPattern   = regexp.MustCompile(`(\w)'(\w)`)
	openingSinglePattern = regexp.MustCompile(`(^|\s)'`)
)

// SmartQuotes converts straight quotes to typographic ones. Contraction
// apostrophes are fixed first so they never count as closing quotes; double
// quotes alternate open/close in order of appearance; a single quote at the
// start or after whitespace opens, anything left over closes.
func SmartQuotes(text string) string {
	out := contractionPattern.ReplaceAllString(text, "${1}’${2}")
	out = alternateDoubleQuotes(out)
	out = openingSinglePattern.ReplaceAllString(out, "${1}‘")
	return strings.ReplaceAll(out, "'", "’")
}

func alternateDoubleQuotes(text string) string {
	if !strings.Contains(text, `"`) {
		return text
	}
	parts := strings.Split(text, `"`)
	var sb strings.Builder
	for i, part := range parts {
		if i > 0 {
			if i%2 == 1 {
				sb.WriteRune('“')
			} else {
				sb.WriteRune('”')
			}
		}
		sb.WriteString(part)
	}
	return sb.String()
}

var macronReplacer = strings.NewReplacer(
	"a&gt;", "ā", "e&gt;", "ē", "i&gt;", "ī", "o&gt;", "ō", "u&gt;", "ū",
	"A&gt;", "Ā", "E&gt;", "Ē", "I&gt;", "Ī", "O&gt;", "Ō", "U&gt;", "Ū",
)

// Macronize replaces vowel+marker pairs with macron vowels. It runs over
// HTML-escaped text, so the marker is the escaped ">" entity.
func Macronize(escaped string) string {
	return macronReplacer.Replace(escaped)
}

var superscriptDigits = [...]rune{'⁰', '¹', '²', '³', '⁴', '⁵', '⁶', '⁷', '⁸', '⁹'}

// Superscript renders a non-negative marker index with Unicode superscript
// numerals.
func Superscript(n int) string {
	var sb strings.Builder
	for _, r := range strconv.Itoa(n) {
		if r >= '0' && r <= '9' {
			sb.WriteRune(superscriptDigits[r-'0'])
		}
	}
	return sb.String()
}
