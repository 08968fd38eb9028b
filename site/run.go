package site

import (
	"archive/zip"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"kodon/archive"
	"kodon/content"
	"kodon/state"
)

//go:embed default.css
var defaultStylesheet []byte

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("site")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		src = env.Cfg.Sources.Editions
	}
	if len(src) == 0 {
		return errors.New("no edition source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Mailformed command line, too many sources", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	dst := cmd.String("output")
	if len(dst) == 0 {
		dst = env.Cfg.Site.Output
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}

	env.DefaultStyle = defaultStylesheet
	if env.Cfg.Site.StylesheetPath != "" {
		data, err := os.ReadFile(env.Cfg.Site.StylesheetPath)
		if err != nil {
			return fmt.Errorf("unable to read style css from %q: %w", env.Cfg.Site.StylesheetPath, err)
		}
		env.DefaultStyle = data
	}

	env.Overwrite = cmd.Bool("overwrite")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	if fi, err := os.Stat(dst); err == nil {
		if !fi.IsDir() {
			return fmt.Errorf("output path exists and is not a directory: %s", dst)
		}
		if !env.Overwrite {
			return fmt.Errorf("output directory already exists: %s", dst)
		}
		log.Warn("Writing over existing output directory", zap.String("dir", dst))
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	b, err := NewBuilder(ctx, dst, log)
	if err != nil {
		return err
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	if err := process(ctx, src, b, log); err != nil {
		return err
	}
	return b.Finish(ctx)
}

// process handles the core site logic independently of CLI framework. It
// determines the input type (directory, archive, or single file) and processes
// accordingly.
func process(ctx context.Context, src string, b *Builder, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, b, log); err != nil {
				return errors.New("unable to process directory")
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		arc, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if arc {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, tail, b, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		edition, enc, err := isEditionFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if edition && len(tail) == 0 {
			// we have edition, it cannot have tail
			// encoding will be handled properly by processWork
			if file, err := os.Open(head); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
			} else {
				defer file.Close()
				if err := processWork(ctx, selectReader(file, enc), filepath.Base(head), b, log); err != nil {
					log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
				}
			}
			break
		}
		return fmt.Errorf("input was not recognized as TEI edition (%s)", head)

	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding edition files and processes them.
func processDir(ctx context.Context, dir string, b *Builder, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		arc, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if arc {
			if err := processArchive(ctx, path, "", b, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		edition, enc, err := isEditionFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !edition {
			log.Debug("Skipping file, not recognized as edition or archive", zap.String("file", path))
			return nil
		}

		count++

		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			return nil
		}
		defer file.Close()

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processWork(ctx, selectReader(file, enc), src, b, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
	return err
}

// processArchive walks all files inside archive, finds edition files under
// "pathIn" and processes them.
func processArchive(ctx context.Context, path, pathIn string, b *Builder, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	err = archive.Walk(path, pathIn, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		edition, enc, err := isEditionInArchive(f)
		if err != nil {
			log.Warn("Skipping file in archive",
				zap.String("archive", arc), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !edition {
			log.Debug("Skipping file, not recognized as edition", zap.String("archive", arc), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		cp := state.EnvFromContext(ctx).CodePage

		pathInArchive := f.FileHeader.Name
		if cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		if err := processWork(ctx, selectReader(r, enc), pathInArchive, b, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
		}
		return nil
	})
	return err
}

// processWork prepares a single edition and hands it to the builder. "src" is
// part of the source path (always including file name) relative to the
// original path. When actual file was specified it will be just base file
// name without a path. When looking inside archive or directory it will be
// relative path inside archive or directory (including base file name).
func processWork(ctx context.Context, r io.Reader, src string, b *Builder, log *zap.Logger) (rerr error) {
	var workSlug string

	log.Info("Preparation starting", zap.String("from", src))
	defer func(start time.Time) {
		// NOTE: a bad edition should never take the rest of the run down
		// with it when multiple works are being processed.
		if r := recover(); r != nil {
			log.Error("Preparation ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("preparation panic: %v", r)
		} else {
			log.Info("Preparation completed", zap.Duration("elapsed", time.Since(start)), zap.String("slug", workSlug))
		}
	}(time.Now())

	w, err := content.Prepare(ctx, r, src, log)
	if err != nil {
		return fmt.Errorf("unable to parse edition source (%s): %w", src, err)
	}
	workSlug = w.Slug

	if env := state.EnvFromContext(ctx); env.Rpt != nil {
		env.Rpt.StoreData(fmt.Sprintf("site/work-%s.txt", workSlug), []byte(w.String()))
	}
	return b.AddWork(ctx, w)
}
