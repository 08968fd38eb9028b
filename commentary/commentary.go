// Package commentary loads scholarly commentary files: Markdown with a YAML
// frontmatter, parsed into rich text blocks with inline formatting ranges.
package commentary

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"kodon/render"
)

// Commentary is one commentary file: identifying metadata from the
// frontmatter plus the body as renderable blocks.
type Commentary struct {
	// Name is the base file name without extension, stable across runs.
	Name  string
	Title string
	// Refs holds the frontmatter reference tokens linking the commentary
	// to passage lines, kept verbatim.
	Refs   []string
	Blocks []render.Block
}

type frontmatter struct {
	Title string   `yaml:"title"`
	Refs  []string `yaml:"refs,omitempty"`
}

// Parse decodes one commentary document from memory.
func Parse(data []byte) (*Commentary, error) {
	meta, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	var fm frontmatter
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(meta))
	dec.KnownFields(true)
	if err := dec.Decode(&fm); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unable to decode commentary frontmatter: %w", err)
	}

	return &Commentary{
		Title:  fm.Title,
		Refs:   fm.Refs,
		Blocks: parseBlocks(body),
	}, nil
}

// Load reads and parses a commentary file, naming it after the file.
func Load(path string) (*Commentary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read commentary file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	c.Name = strings.TrimSuffix(base, filepath.Ext(base))
	if len(c.Title) == 0 {
		c.Title = c.Name
	}
	return c, nil
}

// LoadDir loads every ".md" file in dir in natural name order. Files that do
// not parse are reported and skipped, they never fail the whole load.
func LoadDir(dir string, log *zap.Logger) ([]*Commentary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to read commentary directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(natural.StringSlice(names))

	res := make([]*Commentary, 0, len(names))
	for _, name := range names {
		c, err := Load(filepath.Join(dir, name))
		if err != nil {
			log.Warn("Skipping unreadable commentary file", zap.String("file", name), zap.Error(err))
			continue
		}
		res = append(res, c)
	}
	return res, nil
}

const frontmatterDelim = "---"

// splitFrontmatter separates the YAML head from the Markdown body. The
// document must open with a "---" line; the head runs to the next "---"
// line.
func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	lines := strings.SplitAfter(string(data), "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != frontmatterDelim {
		return nil, nil, errors.New("missing frontmatter opening delimiter")
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") != frontmatterDelim {
			continue
		}
		meta := strings.Join(lines[1:i], "")
		body := strings.Join(lines[i+1:], "")
		return []byte(meta), []byte(body), nil
	}
	return nil, nil, errors.New("unterminated frontmatter")
}

// parseBlocks splits the body on blank lines and types each block by its
// first line: "## " starts a header, ">" a quote, anything else is a
// paragraph. Lines within a block join with single spaces.
func parseBlocks(body []byte) []render.Block {
	var blocks []render.Block
	var cur []string

	flush := func() {
		if len(cur) == 0 {
			return
		}
		blocks = append(blocks, parseBlock(cur))
		cur = nil
	}

	for _, line := range strings.Split(string(body), "\n") {
		if len(strings.TrimSpace(line)) == 0 {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return blocks
}

func parseBlock(lines []string) render.Block {
	typ := render.BlockParagraph
	switch {
	case strings.HasPrefix(lines[0], "## "):
		typ = render.BlockHeaderTwo
		lines[0] = strings.TrimPrefix(lines[0], "## ")
	case strings.HasPrefix(lines[0], ">"):
		typ = render.BlockBlockquote
		for i := range lines {
			lines[i] = strings.TrimPrefix(lines[i], ">")
		}
	}

	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	s := scanInline([]rune(strings.Join(lines, " ")))
	return render.Block{
		Type:         typ,
		Text:         string(s.text),
		StyleRanges:  s.styles,
		EntityRanges: s.ranges,
		Entities:     s.entities,
	}
}
