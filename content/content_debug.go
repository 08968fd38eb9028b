package content

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"kodon/utils/debug"
)

type treeWriter struct {
	*debug.TreeWriter
}

// String returns a readable tree of the whole Work starting with the parsed
// edition. It exists solely for manual inspection during debugging.
func (w *Work) String() string {
	if w == nil {
		return "<nil Work>"
	}

	out := w.Edition.String()

	tw := treeWriter{debug.NewTreeWriter()}
	tw.Line(0, "Work %q slug[%s] source[%s]", w.Title, w.Slug, w.SrcName)
	tw.Line(0, "Books: %d", len(w.Books))
	for _, b := range w.Books {
		address := "<translation only>"
		if b.Division != nil {
			address = b.Division.Address
		}
		tw.Line(1, "Book[%d] division[%s] lines[%d] segments[%d] merged[%d]", b.Number, address, len(b.Lines), len(b.Segments), len(b.Merged))
	}
	out += "\n" + tw.String()

	if len(w.Commentaries) > 0 {
		tw := treeWriter{debug.NewTreeWriter()}

		tw.Line(0, "Commentaries: %d, anchors: %d", len(w.Commentaries), len(w.byAnchor))
		keys := slices.Collect(maps.Keys(w.byAnchor))
		sort.Sort(natural.StringSlice(keys))
		for _, k := range keys {
			for _, c := range w.byAnchor[k] {
				tw.Line(1, "Anchor[%s] %q", k, c.Name)
			}
		}
		out += "\n" + tw.String()
	}

	return out
}
