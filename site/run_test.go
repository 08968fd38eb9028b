package site

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"kodon/config"
	"kodon/state"
)

const sampleEditionXML = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <text>
    <body>
      <div type="edition" n="urn:cts:greekLit:tlg0012.tlg001.perseus-grc2" xml:lang="grc">
        <div type="textpart" subtype="book" n="1">
          <div type="textpart" subtype="card" n="1">
            <l n="1">Sing, goddess, the anger</l>
            <l n="2">and its devastation</l>
          </div>
        </div>
        <div type="textpart" subtype="book" n="2">
          <l n="1">Now the rest of the gods slept</l>
        </div>
      </div>
    </body>
  </text>
</TEI>`

// setupSiteEnv creates a test environment with proper context and logger.
func setupSiteEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	// no apparatus unless a test wires its own directories
	cfg.Sources.Translations = ""
	cfg.Sources.Commentaries = ""
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	env.DefaultStyle = defaultStylesheet
	return ctx, env
}

func newTestBuilder(t *testing.T, ctx context.Context) (*Builder, string) {
	t.Helper()
	out := t.TempDir()
	b, err := NewBuilder(ctx, out, state.EnvFromContext(ctx).Log)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return b, out
}

func writeEditionFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(sampleEditionXML), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func TestProcess_NonExistentPath(t *testing.T) {
	ctx, env := setupSiteEnv(t)
	b, _ := newTestBuilder(t, ctx)

	err := process(ctx, "/nonexistent/path/edition.xml", b, env.Log)
	if err == nil {
		t.Fatal("Expected error for non-existent path, got nil")
	}
	if !strings.Contains(err.Error(), "input source was not found") {
		t.Errorf("Expected 'input source was not found' error, got: %v", err)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, env := setupSiteEnv(t)
	b, _ := newTestBuilder(t, ctx)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	if err := process(cancelCtx, t.TempDir(), b, env.Log); err != context.Canceled {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestProcess_Directory(t *testing.T) {
	ctx, env := setupSiteEnv(t)
	b, out := newTestBuilder(t, ctx)

	srcDir := t.TempDir()
	writeEditionFile(t, srcDir, "iliad.xml")

	if err := process(ctx, srcDir, b, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if len(b.works) != 1 {
		t.Fatalf("Expected 1 work collected, got %d", len(b.works))
	}
	page := filepath.Join(out, "passages", "tlg0012.tlg001", "1.html")
	if _, err := os.Stat(page); err != nil {
		t.Errorf("Expected passage page at %s: %v", page, err)
	}
}

func TestProcess_SingleFile(t *testing.T) {
	ctx, env := setupSiteEnv(t)
	b, out := newTestBuilder(t, ctx)

	path := writeEditionFile(t, t.TempDir(), "iliad.xml")

	if err := process(ctx, path, b, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "passages", "tlg0012.tlg001", "2.html")); err != nil {
		t.Errorf("Expected passage page for book 2: %v", err)
	}
}

func createEditionArchive(t *testing.T, dir string, names ...string) string {
	t.Helper()
	path := filepath.Join(dir, "texts.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	w := zip.NewWriter(f)
	for _, name := range names {
		e, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			t.Fatalf("Failed to create file in zip: %v", err)
		}
		if _, err := e.Write([]byte(sampleEditionXML)); err != nil {
			t.Fatalf("Failed to write to zip: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcess_Archive(t *testing.T) {
	ctx, env := setupSiteEnv(t)
	b, _ := newTestBuilder(t, ctx)

	path := createEditionArchive(t, t.TempDir(), "iliad.xml")

	if err := process(ctx, path, b, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if len(b.works) != 1 {
		t.Errorf("Expected 1 work from archive, got %d", len(b.works))
	}
}

func TestProcess_ArchiveWithPath(t *testing.T) {
	ctx, env := setupSiteEnv(t)
	b, _ := newTestBuilder(t, ctx)

	path := createEditionArchive(t, t.TempDir(), "editions/iliad.xml", "notes/readme.xml")

	if err := process(ctx, path+string(filepath.Separator)+"editions", b, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if len(b.works) != 1 {
		t.Errorf("Expected 1 work from archive subpath, got %d", len(b.works))
	}
}

func TestProcess_NonEditionFile(t *testing.T) {
	ctx, env := setupSiteEnv(t)
	b, _ := newTestBuilder(t, ctx)

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("not an edition"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	err := process(ctx, path, b, env.Log)
	if err == nil {
		t.Fatal("Expected error for non-edition file, got nil")
	}
	if !strings.Contains(err.Error(), "input was not recognized as TEI edition") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestProcess_EmptyDirectory(t *testing.T) {
	ctx, env := setupSiteEnv(t)
	b, _ := newTestBuilder(t, ctx)

	if err := process(ctx, t.TempDir(), b, env.Log); err != nil {
		t.Errorf("process() should handle empty directory, got error: %v", err)
	}
}

func TestProcessDir_DuplicateSlugs(t *testing.T) {
	ctx, env := setupSiteEnv(t)
	b, _ := newTestBuilder(t, ctx)

	srcDir := t.TempDir()
	writeEditionFile(t, srcDir, "iliad.xml")
	writeEditionFile(t, srcDir, "iliad-copy.xml")

	if err := processDir(ctx, srcDir, b, env.Log); err != nil {
		t.Fatalf("processDir() error = %v", err)
	}
	// both files declare the same work urn, the second one is skipped
	if len(b.works) != 1 {
		t.Errorf("Expected duplicate slug to be skipped, got %d works", len(b.works))
	}
}

func TestProcessWork_InvalidEdition(t *testing.T) {
	ctx, env := setupSiteEnv(t)
	b, _ := newTestBuilder(t, ctx)

	err := processWork(ctx, strings.NewReader("<TEI no terminator"), "broken.xml", b, env.Log)
	if err == nil {
		t.Fatal("Expected error for broken edition, got nil")
	}
	if !strings.Contains(err.Error(), "unable to parse edition source") {
		t.Errorf("Unexpected error: %v", err)
	}
}
