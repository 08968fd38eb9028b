package tei

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const sampleTEI = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc><titleStmt><title>Iliad</title></titleStmt></fileDesc>
  </teiHeader>
  <text>
    <body>
      <div type="edition" n="urn:cts:greekLit:tlg0012.tlg001.perseus-grc2" xml:lang="grc">
        <div type="textpart" subtype="book" n="1">
          <div type="textpart" subtype="card" n="1">
            <l n="1">Sing, goddess, the wrath</l>
            <l n="2">that put pains thousandfold upon the Achaians,<note>ms. A reads otherwise</note></l>
          </div>
          <div type="textpart" subtype="card" n="10">
            <l n="10">and the will of Zeus was accomplished</l>
          </div>
        </div>
        <div type="textpart" subtype="book" n="2">
          <l n="1">Now the rest of the gods slept</l>
        </div>
      </div>
    </body>
  </text>
</TEI>`

func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func wrapBody(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body>` + body + `</body></text></TEI>`
}

func findDivision(t *testing.T, doc *Document, address string) *Division {
	t.Helper()
	for i := range doc.Divisions {
		if doc.Divisions[i].Address == address {
			return &doc.Divisions[i]
		}
	}
	t.Fatalf("no division with address %q", address)
	return nil
}

func TestParseSampleStructure(t *testing.T) {
	doc, err := ParseBytes([]byte(sampleTEI), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	const urn = "urn:cts:greekLit:tlg0012.tlg001.perseus-grc2"
	if doc.EditionAddress != urn {
		t.Fatalf("edition address mismatch: %q", doc.EditionAddress)
	}
	if doc.Language != "grc" {
		t.Fatalf("language mismatch: %q", doc.Language)
	}
	if !reflect.DeepEqual(doc.DivisionSubtypes, []string{"book", "card"}) {
		t.Fatalf("subtype order mismatch: %v", doc.DivisionSubtypes)
	}

	if len(doc.Divisions) != 5 {
		t.Fatalf("expected 5 divisions, got %d", len(doc.Divisions))
	}
	seen := make(map[int]bool)
	for _, div := range doc.Divisions {
		if div.SequenceIndex < 0 || div.SequenceIndex >= len(doc.Divisions) {
			t.Fatalf("sequence index out of range: %d", div.SequenceIndex)
		}
		if seen[div.SequenceIndex] {
			t.Fatalf("duplicate sequence index %d", div.SequenceIndex)
		}
		seen[div.SequenceIndex] = true
	}

	// Divisions finalize in closing order, sequence indexes in opening order.
	card1 := findDivision(t, doc, urn+":1.1")
	if doc.Divisions[0].Address != card1.Address {
		t.Fatalf("expected innermost card to close first, got %q", doc.Divisions[0].Address)
	}
	if card1.Subtype != "card" || card1.CitationLabel != "1" {
		t.Fatalf("unexpected card division: %+v", card1)
	}
	if !reflect.DeepEqual(card1.Location, []string{"1", "1"}) {
		t.Fatalf("card location mismatch: %v", card1.Location)
	}
	edition := findDivision(t, doc, urn)
	if edition.SequenceIndex != 0 || edition.Kind != "edition" {
		t.Fatalf("unexpected edition division: %+v", edition)
	}
	if len(edition.Location) != 0 {
		t.Fatalf("edition location should be empty, got %v", edition.Location)
	}
	book2 := findDivision(t, doc, urn+":2")
	if book2.Subtype != "book" {
		t.Fatalf("unexpected book division: %+v", book2)
	}

	if len(doc.TopLevelElements) != 4 {
		t.Fatalf("expected 4 top level lines, got %d", len(doc.TopLevelElements))
	}
	first := doc.TopLevelElements[0]
	if first.Tag != "l" || first.Address != urn+":1.1@<l>[0]" {
		t.Fatalf("unexpected first line: %+v", first)
	}
	if first.Attributes["n"] != "1" {
		t.Fatalf("attribute n mismatch: %v", first.Attributes)
	}
	second := doc.TopLevelElements[1]
	if second.Address != urn+":1.1@<l>[1]" {
		t.Fatalf("ordinal should count same-tag siblings: %q", second.Address)
	}
	if second.OwnerDivisionIndex != card1.SequenceIndex {
		t.Fatalf("owner division mismatch: %d", second.OwnerDivisionIndex)
	}
	notes := second.FindDescendants("note")
	if len(notes) != 1 {
		t.Fatalf("expected one note under second line, got %d", len(notes))
	}
	if notes[0].Address != urn+":1.1@<note>[0]" {
		t.Fatalf("note address mismatch: %q", notes[0].Address)
	}
}

func TestParseGlobalIndexOrder(t *testing.T) {
	doc, err := ParseBytes([]byte(sampleTEI), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var indexes []int
	var walk func(n Node)
	walk = func(n Node) {
		switch n.Kind {
		case NodeText:
			indexes = append(indexes, n.Text.GlobalIndex)
		case NodeElement:
			indexes = append(indexes, n.Element.GlobalIndex)
			for _, child := range n.Element.Children {
				walk(child)
			}
		}
	}
	for _, el := range doc.TopLevelElements {
		walk(Node{Kind: NodeElement, Element: el})
	}

	if len(indexes) == 0 {
		t.Fatalf("no nodes collected")
	}
	for i, idx := range indexes {
		if idx != i {
			t.Fatalf("global indexes not contiguous in document order: %v", indexes)
		}
	}
}

func TestParseDeterministicAddresses(t *testing.T) {
	log := testLogger(t)
	collect := func(doc *Document) []string {
		var addrs []string
		for _, div := range doc.Divisions {
			addrs = append(addrs, div.Address)
		}
		var walk func(el *Element)
		walk = func(el *Element) {
			addrs = append(addrs, el.Address)
			for _, child := range el.Children {
				if child.Kind == NodeElement {
					walk(child.Element)
				}
			}
		}
		for _, el := range doc.TopLevelElements {
			walk(el)
		}
		return addrs
	}

	first, err := ParseBytes([]byte(sampleTEI), log)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	second, err := ParseBytes([]byte(sampleTEI), log)
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	a, b := collect(first), collect(second)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("addresses differ between parses:\n%v\n%v", a, b)
	}
	set := make(map[string]bool)
	for _, addr := range a {
		if set[addr] {
			t.Fatalf("address not distinct: %q", addr)
		}
		set[addr] = true
	}
}

func TestParseBaseTextExcludesNotes(t *testing.T) {
	doc, err := ParseBytes([]byte(sampleTEI), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	line := doc.TopLevelElements[1]
	base := line.BaseText()
	if strings.Contains(base, "ms. A") {
		t.Fatalf("base text leaked note content: %q", base)
	}
	full := line.FullText()
	if !strings.Contains(full, "ms. A reads otherwise") {
		t.Fatalf("full text missing note content: %q", full)
	}
	if !strings.HasPrefix(full, base) {
		t.Fatalf("full text should start with base text here: %q vs %q", full, base)
	}
}

func TestParseOrphanedElementDropped(t *testing.T) {
	src := wrapBody(`<p>stray</p><div type="edition" n="u"><l>kept</l></div>`)
	doc, err := ParseBytes([]byte(src), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.TopLevelElements) != 1 {
		t.Fatalf("expected orphan to be dropped, got %d top level elements", len(doc.TopLevelElements))
	}
	if doc.TopLevelElements[0].BaseText() != "kept" {
		t.Fatalf("unexpected surviving element: %+v", doc.TopLevelElements[0])
	}
}

func TestParseAttachesToLastClosedDivision(t *testing.T) {
	src := wrapBody(`<div type="edition" n="u"><l>a</l></div><p>after</p>`)
	doc, err := ParseBytes([]byte(src), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.TopLevelElements) != 2 {
		t.Fatalf("expected 2 top level elements, got %d", len(doc.TopLevelElements))
	}
	p := doc.TopLevelElements[1]
	if p.Tag != "p" || p.OwnerDivisionAddress != "u" {
		t.Fatalf("late element should attach to last closed division: %+v", p)
	}
	if p.Address != "u@<p>[0]" {
		t.Fatalf("address mismatch: %q", p.Address)
	}
}

func TestParseDivisionWithoutEditionAddress(t *testing.T) {
	src := wrapBody(`<div type="textpart" subtype="book" n="3"><l>x</l></div>`)
	doc, err := ParseBytes([]byte(src), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.EditionAddress != "" {
		t.Fatalf("unexpected edition address: %q", doc.EditionAddress)
	}
	if len(doc.Divisions) != 1 || doc.Divisions[0].Address != "" {
		t.Fatalf("division address should be empty without edition address: %+v", doc.Divisions)
	}
	if got := doc.TopLevelElements[0].Address; got != "@<l>[0]" {
		t.Fatalf("element address mismatch: %q", got)
	}
}

func TestParseIgnoresUnrecognizedDivisionType(t *testing.T) {
	src := wrapBody(`<div type="edition" n="u"><div type="apparatus"><l>x</l></div><l>y</l></div>`)
	doc, err := ParseBytes([]byte(src), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Divisions) != 1 {
		t.Fatalf("apparatus div should not become a division: %+v", doc.Divisions)
	}
	if len(doc.TopLevelElements) != 2 {
		t.Fatalf("expected both lines, got %d", len(doc.TopLevelElements))
	}
	// Both lines belong to the edition division, the ordinal keeps counting.
	if got := doc.TopLevelElements[0].Address; got != "u@<l>[0]" {
		t.Fatalf("first line address mismatch: %q", got)
	}
	if got := doc.TopLevelElements[1].Address; got != "u@<l>[1]" {
		t.Fatalf("second line address mismatch: %q", got)
	}
}

func TestParseContentOutsideBodyIgnored(t *testing.T) {
	doc, err := ParseBytes([]byte(sampleTEI), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	for _, el := range doc.TopLevelElements {
		if el.Tag == "title" {
			t.Fatalf("header content leaked into the tree")
		}
	}
}

func TestParseMalformedDocument(t *testing.T) {
	src := wrapBody(`<div type="edition" n="u"><l>truncated`)
	doc, err := ParseBytes([]byte(src), testLogger(t))
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if doc != nil {
		t.Fatalf("no document should be returned on failure")
	}
	var malformed *MalformedDocumentError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedDocumentError, got %T", err)
	}
	if malformed.Line < 1 || malformed.Offset <= 0 {
		t.Fatalf("missing position info: %+v", malformed)
	}
	if !strings.Contains(malformed.Error(), "malformed document") {
		t.Fatalf("unexpected message: %q", malformed.Error())
	}
}

func TestParseMismatchedTags(t *testing.T) {
	src := wrapBody(`<div type="edition" n="u"><l>text</p></div>`)
	if _, err := ParseBytes([]byte(src), testLogger(t)); err == nil {
		t.Fatalf("expected parse error for mismatched tags")
	}
}

func TestParseNamedEntities(t *testing.T) {
	src := wrapBody(`<div type="edition" n="u"><l>A&nbsp;B&mdash;C</l></div>`)
	doc, err := ParseBytes([]byte(src), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got := doc.TopLevelElements[0].BaseText()
	if got != "A B—C" {
		t.Fatalf("entity expansion mismatch: %q", got)
	}
}

func TestParseDeclaredCharset(t *testing.T) {
	src := `<?xml version="1.0" encoding="ISO-8859-1"?><TEI><text><body><div type="edition" n="u"><l>caf` + "\xe9" + `</l></div></body></text></TEI>`
	doc, err := ParseBytes([]byte(src), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := doc.TopLevelElements[0].BaseText(); got != "café" {
		t.Fatalf("charset decoding mismatch: %q", got)
	}
}

func TestParseKeepsRawInvalidLanguage(t *testing.T) {
	src := wrapBody(`<div type="edition" n="u" xml:lang="!!"><l>x</l></div>`)
	doc, err := ParseBytes([]byte(src), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Language != "!!" {
		t.Fatalf("raw language should be kept: %q", doc.Language)
	}
}

func TestFindDescendantsPreOrder(t *testing.T) {
	src := wrapBody(`<div type="edition" n="u"><sp><q id="1"><q id="2"/></q><q id="3"/></sp></div>`)
	doc, err := ParseBytes([]byte(src), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	sp := doc.TopLevelElements[0]
	var ids []string
	for _, q := range sp.FindDescendants("q") {
		ids = append(ids, q.Attributes["id"])
	}
	if !reflect.DeepEqual(ids, []string{"1", "2", "3"}) {
		t.Fatalf("pre-order mismatch: %v", ids)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("  a\t\n b  "); got != "a b" {
		t.Fatalf("collapse mismatch: %q", got)
	}
	if got := CollapseWhitespace(" \n\t "); got != "" {
		t.Fatalf("whitespace only should collapse to empty, got %q", got)
	}
}

func TestDocumentString(t *testing.T) {
	doc, err := ParseBytes([]byte(sampleTEI), testLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dump := doc.String()
	if !strings.Contains(dump, "Division[0]") || !strings.Contains(dump, "<l>") {
		t.Fatalf("dump missing expected markers:\n%s", dump)
	}
	var nildoc *Document
	if nildoc.String() != "<nil Document>" {
		t.Fatalf("nil dump mismatch")
	}
}
