package site

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"kodon/css"
	"kodon/state"
)

const (
	assetsDir      = "assets"
	stylesheetName = "site.css"
)

// requiredClasses are the class names the passage renderers emit. A custom
// stylesheet without rules for them produces unstyled glosses and popovers,
// worth a warning before anything is published.
var requiredClasses = []string{"gloss", "cross-ref", "line", "note-popover", "fallback"}

// writeAssets validates and writes the stylesheet, then copies the configured
// assets directory into the output.
func (b *Builder) writeAssets(env *state.LocalEnv) error {
	outDir := filepath.Join(b.out, assetsDir)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("unable to create assets directory: %w", err)
	}
	if err := b.writeStylesheet(env, outDir); err != nil {
		return fmt.Errorf("unable to write stylesheet: %w", err)
	}
	if env.Cfg.Site.AssetsPath != "" {
		if err := b.copyAssetsDir(env.Cfg.Site.AssetsPath, outDir); err != nil {
			return fmt.Errorf("unable to copy site assets: %w", err)
		}
	}
	return nil
}

// writeStylesheet validates the stylesheet and writes its bytes unchanged.
// Validation is advisory, the parser models only the simple subset of CSS the
// default stylesheet needs and anything else is reported, never dropped.
func (b *Builder) writeStylesheet(env *state.LocalEnv, outDir string) error {
	data := env.DefaultStyle

	sheet := css.NewParser(b.log).Parse(data, stylesheetName)
	for _, w := range sheet.Warnings {
		b.log.Debug("Stylesheet uses a construct validation does not model", zap.String("detail", w))
	}
	for _, class := range requiredClasses {
		if !sheet.CoversClass(class) {
			b.log.Warn("Stylesheet has no rule for a class the renderer emits", zap.String("class", class))
		}
	}
	for _, u := range sheet.Imports() {
		if isRemoteURL(u) {
			b.log.Warn("Stylesheet imports a remote resource", zap.String("url", u))
		}
	}
	b.checkAssetRefs(env, sheet)

	if env.Rpt != nil {
		env.Rpt.StoreData("site/stylesheet_parsed.css", []byte(sheet.String()))
	}
	return os.WriteFile(filepath.Join(outDir, stylesheetName), data, 0644)
}

// checkAssetRefs walks the url() references of the stylesheet and warns about
// local ones that will not resolve next to it in the output.
func (b *Builder) checkAssetRefs(env *state.LocalEnv, sheet *css.Stylesheet) {
	sheet.RewriteURLs(func(u string) string {
		if u == "" || isRemoteURL(u) || strings.HasPrefix(u, "data:") {
			return u
		}
		if env.Cfg.Site.AssetsPath == "" {
			b.log.Warn("Stylesheet references a local asset but no assets directory is configured",
				zap.String("url", u))
			return u
		}
		local := filepath.Join(env.Cfg.Site.AssetsPath, filepath.FromSlash(strings.TrimPrefix(u, "./")))
		if _, err := os.Stat(local); err != nil {
			b.log.Warn("Stylesheet references a missing asset", zap.String("url", u))
		}
		return u
	})
}

func isRemoteURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "//")
}

// copyAssetsDir copies every regular file under srcDir into outDir keeping
// the directory layout. Unreadable entries are reported and skipped so a
// single bad file does not abort the whole site.
func (b *Builder) copyAssetsDir(srcDir, outDir string) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			b.log.Warn("Skipping unreadable asset path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if err := b.copyAsset(path, filepath.Join(outDir, rel)); err != nil {
			b.log.Error("Unable to copy asset, skipping", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
}

func (b *Builder) copyAsset(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(in, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	if kind, err := filetype.Match(head[:n]); err == nil && kind != filetype.Unknown {
		b.log.Debug("Copying asset", zap.String("file", src), zap.String("type", kind.MIME.Value))
	} else {
		b.log.Debug("Copying asset of unrecognized type", zap.String("file", src))
	}

	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
