package site

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func TestRenderPassage(t *testing.T) {
	tpl, err := LoadTemplates("", testLogger(t))
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}

	data := &passagePage{
		SiteTitle:      "Library",
		Title:          "Iliad · Book 2",
		Language:       "grc",
		Edition:        `<div class="l">text</div>`,
		Translation:    `<div class="line">translated</div>`,
		Commentaries:   []commentaryEntry{{ID: "note-proem", Title: "The proem", Body: "<p>body</p>", Refs: "<a>1.1</a>"}},
		PrevHref:       "1.html",
		PrevLabel:      "Book 1",
		NextHref:       "3.html",
		NextLabel:      "Book 3",
		IndexHref:      "../../index.html",
		StylesheetHref: "../../assets/site.css",
		BuildID:        "0test",
	}

	var buf bytes.Buffer
	if err := tpl.renderPassage(&buf, data); err != nil {
		t.Fatalf("render passage: %v", err)
	}
	got := buf.String()

	for _, want := range []string{
		"<title>Iliad · Book 2 · Library</title>",
		`<link rel="stylesheet" href="../../assets/site.css">`,
		`<section class="edition" lang="grc">`,
		`<div class="l">text</div>`,
		"<h2>Translation</h2>",
		`<article class="commentary-entry" id="note-proem">`,
		"<h3>The proem</h3>",
		`<p class="commentary-refs">On <a>1.1</a></p>`,
		`<a class="pager-prev" href="1.html">&larr; Book 1</a>`,
		`<a class="pager-next" href="3.html">Book 3 &rarr;</a>`,
		"build 0test",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Passage page is missing %q", want)
		}
	}
}

func TestRenderPassageMinimal(t *testing.T) {
	tpl, err := LoadTemplates("", testLogger(t))
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}

	var buf bytes.Buffer
	data := &passagePage{SiteTitle: "Library", Title: "Odyssey · Book 1", IndexHref: "index.html", StylesheetHref: "assets/site.css"}
	if err := tpl.renderPassage(&buf, data); err != nil {
		t.Fatalf("render passage: %v", err)
	}
	got := buf.String()

	for _, absent := range []string{`<section class="edition"`, `<section class="translation">`, `<section class="commentary">`, "pager-prev", "pager-next"} {
		if strings.Contains(got, absent) {
			t.Errorf("Minimal passage page should not contain %q", absent)
		}
	}
}

func TestRenderIndex(t *testing.T) {
	tpl, err := LoadTemplates("", testLogger(t))
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}

	data := &indexPage{
		SiteTitle: "Library",
		Works: []indexWork{
			{Title: "Iliad", Excerpt: "Sing, goddess.", NoteCount: 3, Books: []indexBook{{Label: "Book 1", Href: "passages/iliad/1.html"}}},
			{Title: "Odyssey", Books: []indexBook{{Label: "Book 1", Href: "passages/odyssey/1.html"}}},
		},
		StylesheetHref: "assets/site.css",
	}

	var buf bytes.Buffer
	if err := tpl.renderIndex(&buf, data); err != nil {
		t.Fatalf("render index: %v", err)
	}
	got := buf.String()

	for _, want := range []string{
		"<title>Library</title>",
		"<h2>Iliad</h2>",
		`<p class="excerpt">Sing, goddess.</p>`,
		`<p class="note-count">3 commentary notes</p>`,
		`<a href="passages/iliad/1.html">Book 1</a>`,
		"<h2>Odyssey</h2>",
		`<a href="passages/odyssey/1.html">Book 1</a>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Catalog page is missing %q", want)
		}
	}
	if strings.Count(got, `class="excerpt"`) != 1 {
		t.Error("Only the first work has an excerpt")
	}
	if strings.Count(got, `class="note-count"`) != 1 {
		t.Error("Only the first work has commentary notes")
	}
}

func TestLoadTemplatesOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "passage.html.tmpl"), []byte("CUSTOM:{{ .Title }}"), 0644); err != nil {
		t.Fatal(err)
	}

	tpl, err := LoadTemplates(dir, testLogger(t))
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}

	var buf bytes.Buffer
	if err := tpl.renderPassage(&buf, &passagePage{Title: "Iliad · Book 1"}); err != nil {
		t.Fatalf("render passage: %v", err)
	}
	if got := buf.String(); got != "CUSTOM:Iliad · Book 1" {
		t.Errorf("Override not applied, got %q", got)
	}

	// the catalog template stays embedded
	buf.Reset()
	if err := tpl.renderIndex(&buf, &indexPage{SiteTitle: "Library"}); err != nil {
		t.Fatalf("render index: %v", err)
	}
	if !strings.Contains(buf.String(), "<!DOCTYPE html>") {
		t.Error("Catalog template should remain the embedded one")
	}
}

func TestLoadTemplatesBadOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "passage.html.tmpl"), []byte("{{ .Broken"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadTemplates(dir, testLogger(t)); err == nil {
		t.Fatal("Expected error for broken override template, got nil")
	}
}
