package tei

import (
	"fmt"
	"strings"

	"kodon/utils/debug"
)

type treeWriter struct {
	*debug.TreeWriter
}

// String returns a readable tree of the parsed document. Character data is
// preserved via escaped control sequences. It exists solely for manual
// inspection during debugging.
func (d *Document) String() string {
	if d == nil {
		return "<nil Document>"
	}
	return treeWriter{debug.NewTreeWriter()}.document(d).String()
}

func (tw treeWriter) document(d *Document) treeWriter {
	tw.Line(0, "Document editionAddress=%q language=%q", d.EditionAddress, d.Language)
	if len(d.DivisionSubtypes) > 0 {
		tw.Line(1, "DivisionSubtypes: %s", strings.Join(d.DivisionSubtypes, ", "))
	}
	if len(d.Divisions) > 0 {
		tw.Line(1, "Divisions: %d", len(d.Divisions))
		for i := range d.Divisions {
			tw.division(2, &d.Divisions[i], i)
		}
	}
	for _, el := range d.TopLevelElements {
		tw.element(1, el)
	}
	return tw
}

func (tw treeWriter) division(depth int, div *Division, index int) {
	tw.Line(depth, "Division[%d] seq=%d kind=%q subtype=%q label=%q address=%q",
		index, div.SequenceIndex, div.Kind, div.Subtype, div.CitationLabel, div.Address)
	if len(div.Location) > 0 {
		tw.Line(depth+1, "Location=%s", strings.Join(div.Location, "."))
	}
}

func (tw treeWriter) element(depth int, el *Element) {
	tw.Line(depth, "<%s> global=%d owner=%d address=%q", el.Tag, el.GlobalIndex, el.OwnerDivisionIndex, el.Address)
	tw.Attrs(depth+1, el.Attributes)
	for i := range el.Children {
		tw.node(depth+1, &el.Children[i])
	}
}

func (tw treeWriter) node(depth int, n *Node) {
	switch n.Kind {
	case NodeText:
		if n.Text != nil {
			tw.TextBlock(depth, fmt.Sprintf("Text[%d]", n.Text.GlobalIndex), n.Text.Text)
		}
	case NodeElement:
		if n.Element != nil {
			tw.element(depth, n.Element)
		}
	}
}
