package sink

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/kennygrant/sanitize"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawl/internal/fetcher"
	"github.com/nao1215/sitecrawl/internal/model"
)

// DefaultImageConcurrency is the number of images of one page fetched at once.
const DefaultImageConcurrency = 4

// Fetcher downloads a resource.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *fetcher.Outcome
}

// ImageSink downloads the image each target points to into
// <root>/<domain>/<category>/<title...>/<file name>.
type ImageSink struct {
	root        string
	fetcher     Fetcher
	concurrency int
	logger      *slog.Logger
}

// ImageOption configures an ImageSink.
type ImageOption func(*ImageSink)

// WithImageConcurrency sets how many images of one page are fetched at once.
func WithImageConcurrency(n int) ImageOption {
	return func(s *ImageSink) {
		s.concurrency = n
	}
}

// WithImageLogger sets the logger.
func WithImageLogger(logger *slog.Logger) ImageOption {
	return func(s *ImageSink) {
		s.logger = logger
	}
}

// NewImageSink creates an ImageSink writing below root.
func NewImageSink(root string, f Fetcher, opts ...ImageOption) *ImageSink {
	s := &ImageSink{
		root:        root,
		fetcher:     f,
		concurrency: DefaultImageConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

// Name returns the sink name.
func (s *ImageSink) Name() string {
	return "image"
}

// image is one download job.
type image struct {
	src  string
	dest string
}

// Consume downloads every image of c that is not on disk yet. Images
// rejected with an HTTP error status are logged and dropped; any other
// failure is returned so the page is crawled again.
func (s *ImageSink) Consume(ctx context.Context, c *Content) (Result, error) {
	if c.Targets == nil || c.Targets.Length() == 0 {
		return Result{}, ErrNoTargets
	}

	var result Result
	images := s.collect(c, &result)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, img := range images {
		g.Go(func() error {
			r, err := s.save(gctx, img)
			mu.Lock()
			result.Add(r)
			mu.Unlock()
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// collect resolves the image sources of c. Targets without a source and
// destinations that already exist are counted as skipped.
func (s *ImageSink) collect(c *Content, result *Result) []image {
	base, _ := url.Parse(c.PageURL)
	dir := c.Path.Dir(s.root, c.Domain)
	attr := c.SourceAttr
	if attr == "" {
		attr = model.DefaultSourceAttr
	}

	seen := make(map[string]struct{})
	var images []image

	c.Targets.Each(func(_ int, sel *goquery.Selection) {
		raw, ok := sel.Attr(attr)
		if !ok || strings.TrimSpace(raw) == "" {
			raw, _ = sel.Attr(model.DefaultSourceAttr)
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			result.Skipped++
			return
		}

		src, err := resolveSource(base, raw)
		if err != nil {
			s.logger.Debug("skipping image source", "src", raw, "error", err)
			result.Skipped++
			return
		}

		dest := filepath.Join(dir, FileName(src))
		if _, dup := seen[dest]; dup {
			return
		}
		seen[dest] = struct{}{}

		if exists(dest) {
			result.Skipped++
			return
		}
		images = append(images, image{src: src, dest: dest})
	})

	return images
}

func (s *ImageSink) save(ctx context.Context, img image) (Result, error) {
	out := s.fetcher.Fetch(ctx, img.src)
	switch out.Kind {
	case fetcher.OutcomeSuccess:
	case fetcher.OutcomeFatal:
		s.logger.Warn("dropping image", "src", img.src, "error", out.Err)
		return Result{Failed: 1}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s: %w", ErrFetchFailed, img.src, out.Err)
	}

	written, err := writeOnce(img.dest, out.Response.Body)
	if err != nil {
		return Result{}, err
	}
	if !written {
		return Result{Skipped: 1}, nil
	}

	s.logger.Info("saved image", "src", img.src, "path", img.dest)
	return Result{Written: 1}, nil
}

// resolveSource resolves raw against the page URL. Images may live on
// another host.
func resolveSource(base *url.URL, raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid image URL %q: %w", raw, err)
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return model.NormalizeURL(ref)
}

// maxExtBytes caps the extension kept by FileName.
const maxExtBytes = 15

// FileName derives a safe file name from the last path segment of src.
// The extension is kept and the whole name fits model.MaxSegmentBytes.
func FileName(src string) string {
	name := "image"
	if u, err := url.Parse(src); err == nil {
		if b := path.Base(u.Path); b != "/" && b != "." {
			name = b
		}
	}

	ext := path.Ext(name)
	stem := sanitize.BaseName(strings.TrimSuffix(name, ext))
	if stem == "" {
		stem = "image"
	}
	cleanExt := model.TruncateSegment(sanitize.BaseName(strings.TrimPrefix(ext, ".")), maxExtBytes)
	if cleanExt == "" {
		return model.TruncateSegment(stem, model.MaxSegmentBytes)
	}
	return model.TruncateSegment(stem, model.MaxSegmentBytes-len(cleanExt)-1) + "." + cleanExt
}
