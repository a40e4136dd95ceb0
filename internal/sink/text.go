package sink

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Text layout defaults.
const (
	DefaultIndent    = "    "
	DefaultSeparator = "\n    "
)

// TextSink writes the text of all targets of a page into one file,
// <root>/<domain>/<category>/<title...>.txt, headed by the page title.
type TextSink struct {
	root      string
	indent    string
	separator string
	logger    *slog.Logger
}

// TextOption configures a TextSink.
type TextOption func(*TextSink)

// WithIndent sets the prefix of the first paragraph.
func WithIndent(indent string) TextOption {
	return func(s *TextSink) {
		s.indent = indent
	}
}

// WithSeparator sets the string placed between paragraphs.
func WithSeparator(sep string) TextOption {
	return func(s *TextSink) {
		s.separator = sep
	}
}

// WithTextLogger sets the logger.
func WithTextLogger(logger *slog.Logger) TextOption {
	return func(s *TextSink) {
		s.logger = logger
	}
}

// NewTextSink creates a TextSink writing below root.
func NewTextSink(root string, opts ...TextOption) *TextSink {
	s := &TextSink{
		root:      root,
		indent:    DefaultIndent,
		separator: DefaultSeparator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the sink name.
func (s *TextSink) Name() string {
	return "text"
}

// Path returns the file c is written to.
func (s *TextSink) Path(c *Content) string {
	return c.Path.Dir(s.root, c.Domain) + ".txt"
}

// Consume writes the text file unless it already exists.
func (s *TextSink) Consume(ctx context.Context, c *Content) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if c.Targets == nil || c.Targets.Length() == 0 {
		return Result{}, ErrNoTargets
	}

	path := s.Path(c)
	if exists(path) {
		s.logger.Debug("text already saved", "path", path)
		return Result{Skipped: 1}, nil
	}

	written, err := writeOnce(path, []byte(s.compose(c)))
	if err != nil {
		return Result{}, err
	}
	if !written {
		return Result{Skipped: 1}, nil
	}

	s.logger.Info("saved text", "title", c.Path.Heading(), "path", path)
	return Result{Written: 1}, nil
}

func (s *TextSink) compose(c *Content) string {
	paragraphs := make([]string, 0, c.Targets.Length())
	c.Targets.Each(func(_ int, sel *goquery.Selection) {
		paragraphs = append(paragraphs, strings.TrimSpace(sel.Text()))
	})

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(c.Path.Heading())
	b.WriteString("\n\n")
	b.WriteString(s.indent)
	b.WriteString(strings.Join(paragraphs, s.separator))
	return b.String()
}
