// Package tei builds citation-addressable documents from TEI XML editions in
// a single streaming pass. No DOM is materialized: a token loop feeds a
// division stack (structural units) and an element stack (inline content).
package tei

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/language"
)

// MalformedDocumentError is returned when the source is not well formed XML.
// Offset is the byte position reached by the decoder, Line is taken from the
// underlying syntax error when available.
type MalformedDocumentError struct {
	Offset int64
	Line   int
	Err    error
}

func (e *MalformedDocumentError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed document at byte %d, line %d: %v", e.Offset, e.Line, e.Err)
	}
	return fmt.Sprintf("malformed document at byte %d: %v", e.Offset, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

type ordinalKey struct {
	division int
	tag      string
}

type parser struct {
	doc *Document
	log *zap.Logger

	inBody bool
	// divs holds open structural divisions, outermost first. divReal shadows
	// every open div tag, recognized or not, so end tags of ignored division
	// types never pop a real division.
	divs    []*Division
	divReal []bool
	els     []*Element
	// lastDiv points into doc.Divisions at the most recently finalized
	// division, -1 before any division has closed.
	lastDiv  int
	nextSeq  int
	nextNode int
	ordinals map[ordinalKey]int
	subtypes map[string]struct{}
}

// Parse reads TEI XML from r in a single pass and returns the structural
// document. The source charset is taken from the XML declaration. Structural
// oddities (orphaned elements, stray character data, unrecognized division
// types) are tolerated and logged, only ill-formed XML fails the parse.
func Parse(r io.Reader, log *zap.Logger) (*Document, error) {
	p := &parser{
		doc:      &Document{},
		log:      log,
		lastDiv:  -1,
		ordinals: make(map[ordinalKey]int),
		subtypes: make(map[string]struct{}),
	}

	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	d.Entity = xml.HTMLEntity

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			var syntaxErr *xml.SyntaxError
			line := 0
			if errors.As(err, &syntaxErr) {
				line = syntaxErr.Line
			}
			return nil, &MalformedDocumentError{Offset: d.InputOffset(), Line: line, Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			p.handleStart(t)
		case xml.EndElement:
			p.handleEnd(t)
		case xml.CharData:
			p.handleChars(string(t))
		}
	}
	return p.doc, nil
}

// ParseBytes parses an in-memory TEI XML document.
func ParseBytes(data []byte, log *zap.Logger) (*Document, error) {
	return Parse(bytes.NewReader(data), log)
}

func (p *parser) handleStart(t xml.StartElement) {
	tag := t.Name.Local
	if tag == "body" {
		p.inBody = true
		return
	}
	if !p.inBody {
		return
	}
	if tag == "div" {
		p.startDivision(t)
		return
	}
	p.startElement(t)
}

func (p *parser) handleEnd(t xml.EndElement) {
	tag := t.Name.Local
	if tag == "body" {
		p.inBody = false
		return
	}
	if !p.inBody {
		return
	}
	if tag == "div" {
		p.endDivision()
		return
	}
	p.endElement()
}

func (p *parser) startDivision(t xml.StartElement) {
	kind := attrValue(t.Attr, "type")
	switch kind {
	case "edition", "translation":
		p.doc.EditionAddress = attrValue(t.Attr, "n")
		p.doc.Language = xmlLang(t.Attr)
		if p.doc.Language != "" {
			if _, err := language.Parse(p.doc.Language); err != nil {
				p.log.Warn("Unable to parse edition language, keeping raw value",
					zap.String("lang", p.doc.Language), zap.Error(err))
			}
		}
		p.pushDivision(Division{Kind: kind})
	case "textpart":
		div := Division{
			Kind:          kind,
			Subtype:       attrValue(t.Attr, "subtype"),
			CitationLabel: attrValue(t.Attr, "n"),
		}
		if div.Subtype != "" {
			if _, seen := p.subtypes[div.Subtype]; !seen {
				p.subtypes[div.Subtype] = struct{}{}
				p.doc.DivisionSubtypes = append(p.doc.DivisionSubtypes, div.Subtype)
			}
		}
		p.pushDivision(div)
	default:
		p.log.Debug("Ignoring division of unrecognized type", zap.String("type", kind))
		p.divReal = append(p.divReal, false)
	}
}

func (p *parser) pushDivision(div Division) {
	div.SequenceIndex = p.nextSeq
	p.nextSeq++
	for _, open := range p.divs {
		if open.CitationLabel != "" {
			div.Location = append(div.Location, open.CitationLabel)
		}
	}
	if div.CitationLabel != "" {
		div.Location = append(div.Location, div.CitationLabel)
	}
	div.Address = p.divisionAddress(div.Location)
	p.divs = append(p.divs, &div)
	p.divReal = append(p.divReal, true)
}

func (p *parser) divisionAddress(location []string) string {
	if p.doc.EditionAddress == "" {
		return ""
	}
	if len(location) == 0 {
		return p.doc.EditionAddress
	}
	return p.doc.EditionAddress + ":" + strings.Join(location, ".")
}

func (p *parser) endDivision() {
	if len(p.divReal) == 0 {
		return
	}
	real := p.divReal[len(p.divReal)-1]
	p.divReal = p.divReal[:len(p.divReal)-1]
	if !real {
		return
	}
	div := p.divs[len(p.divs)-1]
	p.divs = p.divs[:len(p.divs)-1]
	p.doc.Divisions = append(p.doc.Divisions, *div)
	p.lastDiv = len(p.doc.Divisions) - 1
}

func (p *parser) startElement(t xml.StartElement) {
	var owner *Division
	switch {
	case len(p.divs) > 0:
		owner = p.divs[len(p.divs)-1]
	case p.lastDiv >= 0:
		owner = &p.doc.Divisions[p.lastDiv]
		p.log.Warn("No open division, attaching element to last closed division",
			zap.String("tag", t.Name.Local), zap.String("division", owner.Address))
	default:
		p.log.Warn("Dropping orphaned element before any division", zap.String("tag", t.Name.Local))
		return
	}

	el := &Element{
		Tag:                  t.Name.Local,
		GlobalIndex:          p.nextNode,
		OwnerDivisionIndex:   owner.SequenceIndex,
		OwnerDivisionAddress: owner.Address,
	}
	p.nextNode++

	if len(t.Attr) > 0 {
		el.Attributes = make(map[string]string, len(t.Attr))
		for _, a := range t.Attr {
			el.Attributes[a.Name.Local] = a.Value
		}
	}

	key := ordinalKey{division: owner.SequenceIndex, tag: el.Tag}
	ordinal := p.ordinals[key]
	p.ordinals[key]++
	el.Address = fmt.Sprintf("%s@<%s>[%d]", owner.Address, el.Tag, ordinal)

	p.els = append(p.els, el)
}

func (p *parser) endElement() {
	if len(p.els) == 0 {
		return
	}
	el := p.els[len(p.els)-1]
	p.els = p.els[:len(p.els)-1]
	if len(p.els) > 0 {
		parent := p.els[len(p.els)-1]
		parent.Children = append(parent.Children, Node{Kind: NodeElement, Element: el})
		return
	}
	p.doc.TopLevelElements = append(p.doc.TopLevelElements, el)
}

func (p *parser) handleChars(text string) {
	if !p.inBody {
		return
	}
	if len(p.els) == 0 {
		if collapsed := CollapseWhitespace(text); collapsed != "" {
			p.log.Warn("Dropping character data outside any element", zap.String("text", collapsed))
		}
		return
	}
	run := &TextRun{Text: text, GlobalIndex: p.nextNode}
	p.nextNode++
	top := p.els[len(p.els)-1]
	top.Children = append(top.Children, Node{Kind: NodeText, Text: run})
}

func attrValue(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func xmlLang(attrs []xml.Attr) string {
	for _, a := range attrs {
		if a.Name.Local == "lang" {
			return a.Value
		}
	}
	return ""
}
