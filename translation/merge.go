package translation

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Segment is one prose fallback passage covering the inclusive line range
// Start..End of a book.
type Segment struct {
	Start int
	End   int
	Text  string
}

var segmentRangePattern = regexp.MustCompile(`^(\d+)(?:-(\d+))?$`)

// ParseSegments reads a prose fallback file. Each content line is
// "<start>-<end> <prose>" or "<n> <prose>"; comments and blank lines are
// ignored.
func ParseSegments(r io.Reader, log *zap.Logger) ([]Segment, error) {
	var segments []Segment

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		rng, rest, _ := splitToken(trimmed)
		m := segmentRangePattern.FindStringSubmatch(rng)
		if m == nil {
			log.Warn("Unrecognized segment range, ignoring", zap.Int("line", lineNo), zap.String("range", rng))
			continue
		}
		if rest == "" {
			log.Warn("Segment without text, ignoring", zap.Int("line", lineNo), zap.String("range", rng))
			continue
		}
		start, err := strconv.Atoi(m[1])
		if err != nil {
			log.Warn("Unrecognized segment range, ignoring", zap.Int("line", lineNo), zap.String("range", rng))
			continue
		}
		end := start
		if m[2] != "" {
			if end, err = strconv.Atoi(m[2]); err != nil {
				log.Warn("Unrecognized segment range, ignoring", zap.Int("line", lineNo), zap.String("range", rng))
				continue
			}
		}
		if end < start {
			log.Warn("Segment range ends before it starts, ignoring",
				zap.Int("line", lineNo), zap.Int("start", start), zap.Int("end", end))
			continue
		}
		segments = append(segments, Segment{Start: start, End: end, Text: rest})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read fallback segments: %w", err)
	}
	return segments, nil
}

// MergedItem is one entry of a merged book: either a scholar line or a prose
// fallback segment, never both.
type MergedItem struct {
	Line    *Line
	Segment *Segment
}

// Merge interleaves scholar lines with fallback prose. A segment is emitted
// only when none of the line numbers it covers has a scholar line; partially
// covered segments are skipped with a warning so the gap stays visible.
// Output order is by line number, scholar lines before a segment starting at
// the same number. The inputs are not modified.
func Merge(scholar []Line, fallback []Segment, log *zap.Logger) []MergedItem {
	lines := make([]Line, len(scholar))
	copy(lines, scholar)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Key.Less(lines[j].Key) })

	covered := make(map[int]bool, len(lines))
	for i := range lines {
		covered[lines[i].Key.N] = true
	}

	var segments []Segment
	for _, seg := range fallback {
		overlap := 0
		for n := seg.Start; n <= seg.End; n++ {
			if covered[n] {
				overlap++
			}
		}
		switch {
		case overlap == 0:
			segments = append(segments, seg)
		case overlap < seg.End-seg.Start+1:
			log.Warn("Fallback segment partially covered by scholar lines, leaving gap",
				zap.Int("start", seg.Start), zap.Int("end", seg.End), zap.Int("covered", overlap))
		default:
			log.Debug("Fallback segment fully covered, dropping",
				zap.Int("start", seg.Start), zap.Int("end", seg.End))
		}
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })

	merged := make([]MergedItem, 0, len(lines)+len(segments))
	li, si := 0, 0
	for li < len(lines) && si < len(segments) {
		if lines[li].Key.N <= segments[si].Start {
			merged = append(merged, MergedItem{Line: &lines[li]})
			li++
			continue
		}
		merged = append(merged, MergedItem{Segment: &segments[si]})
		si++
	}
	for ; li < len(lines); li++ {
		merged = append(merged, MergedItem{Line: &lines[li]})
	}
	for ; si < len(segments); si++ {
		merged = append(merged, MergedItem{Segment: &segments[si]})
	}
	return merged
}
