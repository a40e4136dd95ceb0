package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/sitecrawl/internal/model"
)

var (
	// ErrFetchFailed is returned when a resource could not be downloaded
	// but may succeed on a later attempt.
	ErrFetchFailed = errors.New("failed to fetch resource")

	// ErrNoTargets is returned for Content without targets.
	ErrNoTargets = errors.New("no content targets")
)

// Content is what a sink consumes for one page.
type Content struct {
	// PageURL is the URL the page was served from. Relative image sources
	// are resolved against it.
	PageURL string

	// Domain is the crawl domain.
	Domain string

	// Targets are the elements selected by the container spec.
	Targets *goquery.Selection

	// Path locates the output below the root directory.
	Path model.StorePath

	// SourceAttr is the attribute holding an image URL.
	SourceAttr string
}

// NewContent builds the sink input of a processed page.
func NewContent(page *model.Page, sourceAttr string) *Content {
	return &Content{
		PageURL:    page.BaseURL(),
		Domain:     page.Domain,
		Targets:    page.Targets,
		Path:       page.StorePath,
		SourceAttr: sourceAttr,
	}
}

// Result counts what a sink did with one Content.
type Result struct {
	// Written is the number of files created.
	Written int

	// Skipped is the number of destinations that already existed.
	Skipped int

	// Failed is the number of resources dropped after a permanent error.
	Failed int
}

// Add accumulates other into r.
func (r *Result) Add(other Result) {
	r.Written += other.Written
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

// Sink persists the content of a page.
//
// Design decision: Sinks never overwrite an existing file. A resumed crawl
// may process a page that was written just before an interrupt, and a file
// the user edited must survive a re-crawl.
type Sink interface {
	// Consume writes c. A returned error means the page should be crawled
	// again later.
	Consume(ctx context.Context, c *Content) (Result, error)

	// Name identifies the sink in logs.
	Name() string
}

// exists reports whether path names an existing file.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeOnce creates path with data. It reports false without error when the
// file already exists, so concurrent writers never clobber each other.
func writeOnce(path string, data []byte) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("failed to close %s: %w", path, err)
	}
	return true, nil
}
