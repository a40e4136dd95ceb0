package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/fetcher"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/sink"
)

// ErrDiscard is wrapped by step errors that retire a target without retry,
// such as an HTTP error status.
var ErrDiscard = errors.New("target discarded")

// Fetcher downloads a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *fetcher.Outcome
}

// LinkAdder records discovered targets. frontier.Store implements it.
type LinkAdder interface {
	Add(targets ...string) int
}

// FetchStep downloads the page.
type FetchStep struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewFetchStep creates a FetchStep.
func NewFetchStep(f Fetcher, logger *slog.Logger) *FetchStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchStep{fetcher: f, logger: logger}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do fetches page.Target. A fatal outcome is returned wrapped in ErrDiscard.
func (s *FetchStep) Do(ctx context.Context, page *model.Page) error {
	out := s.fetcher.Fetch(ctx, page.Target)
	page.Attempts = out.Attempts

	switch out.Kind {
	case fetcher.OutcomeSuccess:
	case fetcher.OutcomeFatal:
		page.StatusCode = out.StatusCode()
		s.logger.Warn("discarding target", "target", page.Target, "status", page.StatusCode, "error", out.Err)
		return fmt.Errorf("%w: %w", ErrDiscard, out.Err)
	default:
		return fmt.Errorf("failed to fetch %s: %w", page.Target, out.Err)
	}

	resp := out.Response
	page.FinalURL = resp.FinalURL
	page.StatusCode = resp.StatusCode
	page.Header = resp.Header
	page.Body = []byte(resp.Text())
	return nil
}

// ParseStep builds page.Document from the body.
type ParseStep struct{}

// NewParseStep creates a ParseStep.
func NewParseStep() *ParseStep {
	return &ParseStep{}
}

// Name returns the step name.
func (s *ParseStep) Name() string {
	return "parse"
}

// Do parses page.Body. It never fails.
func (s *ParseStep) Do(_ context.Context, page *model.Page) error {
	page.Document = crawler.Parse(page.Body)
	return nil
}

// LinkStep adds the page's same-domain links to the frontier.
type LinkStep struct {
	frontier LinkAdder
}

// NewLinkStep creates a LinkStep.
func NewLinkStep(frontier LinkAdder) *LinkStep {
	return &LinkStep{frontier: frontier}
}

// Name returns the step name.
func (s *LinkStep) Name() string {
	return "links"
}

// Do extracts links relative to the page's final URL.
func (s *LinkStep) Do(_ context.Context, page *model.Page) error {
	page.Links = crawler.ExtractLinks(page.BaseURL(), page.Document, page.Domain)
	page.NewLinks = s.frontier.Add(page.Links...)
	return nil
}

// ContentStep selects the content targets and derives the store path.
type ContentStep struct {
	spec model.ContainerSpec
	opts crawler.PathOptions
}

// NewContentStep creates a ContentStep.
func NewContentStep(spec model.ContainerSpec, opts crawler.PathOptions) *ContentStep {
	return &ContentStep{spec: spec, opts: opts}
}

// Name returns the step name.
func (s *ContentStep) Name() string {
	return "content"
}

// Do fills page.Targets. A page without content is not an error.
func (s *ContentStep) Do(_ context.Context, page *model.Page) error {
	page.Targets = crawler.Extract(page.Document, s.spec)
	if page.HasTargets() {
		page.StorePath = crawler.StorePath(page.Document, s.opts)
	}
	return nil
}

// SinkStep writes the selected content.
type SinkStep struct {
	sink       sink.Sink
	sourceAttr string
	logger     *slog.Logger
}

// NewSinkStep creates a SinkStep. sourceAttr names the attribute image
// URLs are read from.
func NewSinkStep(s sink.Sink, sourceAttr string, logger *slog.Logger) *SinkStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SinkStep{sink: s, sourceAttr: sourceAttr, logger: logger}
}

// Name returns the step name.
func (s *SinkStep) Name() string {
	return "sink"
}

// Do hands the page's targets to the sink. Pages without targets are
// skipped.
func (s *SinkStep) Do(ctx context.Context, page *model.Page) error {
	if !page.HasTargets() {
		s.logger.Debug("no content on page", "target", page.Target)
		return nil
	}

	res, err := s.sink.Consume(ctx, sink.NewContent(page, s.sourceAttr))
	page.Written += res.Written
	page.Skipped += res.Skipped
	if err != nil {
		return fmt.Errorf("%s sink failed for %s: %w", s.sink.Name(), page.Target, err)
	}
	return nil
}

// Config holds what NewCrawl needs to assemble the standard unit of work.
type Config struct {
	Fetcher     Fetcher
	Frontier    LinkAdder
	Sink        sink.Sink
	Container   model.ContainerSpec
	PathOptions crawler.PathOptions
	Logger      *slog.Logger
}

// NewCrawl builds the fetch, parse, links, content and sink pipeline.
func NewCrawl(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := New(WithLogger(logger))
	p.AddSteps(
		NewFetchStep(cfg.Fetcher, logger),
		NewParseStep(),
		NewLinkStep(cfg.Frontier),
		NewContentStep(cfg.Container, cfg.PathOptions),
		NewSinkStep(cfg.Sink, cfg.Container.SourceAttr(), logger),
	)
	logger.Debug("crawl pipeline ready", "steps", p.StepNames())
	return p
}
