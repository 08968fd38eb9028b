package site

import (
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
)

// Splitter segments translation prose into sentences for index excerpts.
type Splitter struct {
	*sentences.DefaultSentenceTokenizer
}

// NewSplitter loads the English tokenizer model. Translations feeding the
// index are English, the Greek side never produces excerpts.
func NewSplitter(log *zap.Logger) *Splitter {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to load sentence tokenizer data, turning off excerpts", zap.Error(err))
		return nil
	}
	return &Splitter{tok}
}

// Excerpt returns the first max sentences of in with a trailing ellipsis when
// text was cut. A nil Splitter passes the input through unchanged.
func (s *Splitter) Excerpt(in string, max int) string {
	in = strings.TrimSpace(in)
	if s == nil || max <= 0 || in == "" {
		return in
	}

	parts := s.Tokenize(in)
	if len(parts) <= max {
		return in
	}

	var sb strings.Builder
	for _, p := range parts[:max] {
		// The tokenizer attaches a sentence's trailing spaces to the head of
		// the next one, so plain concatenation reproduces the original text.
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()) + " …"
}
