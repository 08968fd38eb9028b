package tei

import "strings"

// Type definitions for the structural document model built from TEI XML
// editions. The model is citation addressable: divisions carry CTS-style
// addresses derived from the citation hierarchy, elements carry addresses
// derived from sibling counts inside their owning division.

// Division is a structural unit of the source ("textpart"): a book, a card,
// a section. Divisions form the citation hierarchy. A division is immutable
// once its closing tag has been processed.
type Division struct {
	// Kind is the raw div type: "edition", "translation" for roots,
	// "textpart" for explicit subdivisions.
	Kind string
	// Subtype is the raw subtype attribute (book, card, section...), empty
	// for the implicit root division.
	Subtype string
	// CitationLabel is the raw "n" attribute, empty when absent.
	CitationLabel string
	// SequenceIndex is assigned in the order divisions are opened,
	// independent of nesting depth.
	SequenceIndex int
	// Location is the ordered sequence of ancestor citation labels,
	// root-to-self, self included.
	Location []string
	// Address is the synthesized identifier: edition address + ":" +
	// "."-joined Location. Empty when no edition address is known.
	Address string
}

// NodeKind distinguishes the two members of the document tree.
type NodeKind string

const (
	NodeElement NodeKind = "element"
	NodeText    NodeKind = "text"
)

// Node is the discriminated variant forming the document tree.
type Node struct {
	Kind    NodeKind
	Element *Element
	Text    *TextRun
}

// Element is an inline element of the body: a line, a quote, a note...
type Element struct {
	Tag        string
	Attributes map[string]string
	// Children is append-only during parsing and must not be mutated after.
	Children []Node
	// GlobalIndex is unique and increasing across elements and text runs in
	// event order. It provides stable identity, never addressing.
	GlobalIndex int
	// OwnerDivisionIndex is the SequenceIndex of the owning division.
	OwnerDivisionIndex int
	// OwnerDivisionAddress is the owning division's address at creation time.
	OwnerDivisionAddress string
	// Address is OwnerDivisionAddress + "@<tag>[ordinal]" where ordinal
	// counts earlier elements with the same tag in the same division.
	Address string
}

// TextRun is raw character data, unescaped.
type TextRun struct {
	Text        string
	GlobalIndex int
}

// Document is the finished result of a parse. It is immutable and may be
// shared across concurrent render calls.
type Document struct {
	// EditionAddress is taken from the edition root's "n" attribute, empty
	// when the source does not declare one.
	EditionAddress string
	// Language is the raw xml:lang of the edition root.
	Language string
	// DivisionSubtypes lists textpart subtypes in first-seen order.
	DivisionSubtypes []string
	// Divisions holds finalized divisions in document (closing) order.
	Divisions []Division
	// TopLevelElements holds elements with no parent element, normally one
	// per division root.
	TopLevelElements []*Element
}

// Tags whose subtree is editorial apparatus rather than reading text.
var annotationContainers = map[string]struct{}{
	"note": {},
}

// IsAnnotationContainer reports whether elements with this tag hold editorial
// apparatus that is excluded from the base reading text.
func IsAnnotationContainer(tag string) bool {
	_, ok := annotationContainers[tag]
	return ok
}

// BaseText returns the reading text of the element: concatenated text runs
// with annotation-container descendants (and their whole subtrees) excluded.
func (el *Element) BaseText() string {
	var buf strings.Builder
	el.writeText(&buf, false)
	return buf.String()
}

// FullText returns the complete text of the element including annotation
// containers.
func (el *Element) FullText() string {
	var buf strings.Builder
	el.writeText(&buf, true)
	return buf.String()
}

func (el *Element) writeText(buf *strings.Builder, withAnnotations bool) {
	for _, child := range el.Children {
		switch child.Kind {
		case NodeText:
			if child.Text != nil {
				buf.WriteString(child.Text.Text)
			}
		case NodeElement:
			if child.Element == nil {
				continue
			}
			if !withAnnotations && IsAnnotationContainer(child.Element.Tag) {
				continue
			}
			child.Element.writeText(buf, withAnnotations)
		}
	}
}

// BaseText returns the reading text of the node.
func (n Node) BaseText() string {
	switch n.Kind {
	case NodeText:
		if n.Text != nil {
			return n.Text.Text
		}
	case NodeElement:
		if n.Element != nil {
			return n.Element.BaseText()
		}
	}
	return ""
}

// FullText returns the complete text of the node.
func (n Node) FullText() string {
	switch n.Kind {
	case NodeText:
		if n.Text != nil {
			return n.Text.Text
		}
	case NodeElement:
		if n.Element != nil {
			return n.Element.FullText()
		}
	}
	return ""
}

// FindDescendants returns every descendant element with the given tag in
// pre-order. Search descends into matches: a matched element's matching
// children are also returned, flattened, parent before child.
func (el *Element) FindDescendants(tag string) []*Element {
	var found []*Element
	for _, child := range el.Children {
		if child.Kind != NodeElement || child.Element == nil {
			continue
		}
		if child.Element.Tag == tag {
			found = append(found, child.Element)
		}
		found = append(found, child.Element.FindDescendants(tag)...)
	}
	return found
}

// CollapseWhitespace replaces every maximal run of whitespace with a single
// space and trims both ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
