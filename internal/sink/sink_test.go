package sink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/fetcher"
	"github.com/nao1215/sitecrawl/internal/model"
)

// newContent parses body and selects targets with spec.
func newContent(t *testing.T, pageURL, body string, spec model.ContainerSpec) *Content {
	t.Helper()

	doc := crawler.Parse([]byte(body))
	return &Content{
		PageURL:    pageURL,
		Domain:     "example.test",
		Targets:    crawler.Extract(doc, spec),
		Path:       crawler.StorePath(doc, crawler.PathOptions{}),
		SourceAttr: spec.SourceAttr(),
	}
}

// stubFetcher returns a fixed outcome and counts calls.
type stubFetcher struct {
	outcome *fetcher.Outcome
	calls   atomic.Int32
}

func (f *stubFetcher) Fetch(context.Context, string) *fetcher.Outcome {
	f.calls.Add(1)
	return f.outcome
}

var postSpec = model.ContainerSpec{
	Parent: model.ElementSpec{Tag: "div", Attrs: map[string]model.AttrFilter{"class": {Value: "post-body"}}},
	Child:  model.ElementSpec{Tag: "p"},
}

const postPage = `<html><head><title>Hello World</title></head><body>
<div class="post-body"><p>first</p><p> second </p><p>third</p></div>
</body></html>`

// TestTextSink tests text output.
func TestTextSink(t *testing.T) {
	t.Parallel()

	t.Run("writes one file per page", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		s := NewTextSink(root)
		c := newContent(t, "https://example.test/post", postPage, postSpec)

		res, err := s.Consume(context.Background(), c)
		if err != nil {
			t.Fatalf("failed to consume: %v", err)
		}
		if res.Written != 1 {
			t.Errorf("expected 1 written, got %+v", res)
		}

		path := filepath.Join(root, "example.test", "Hello World.txt")
		if s.Path(c) != path {
			t.Errorf("expected path %s, got %s", path, s.Path(c))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		want := "# Hello World\n\n    first\n    second\n    third"
		if string(data) != want {
			t.Errorf("expected %q, got %q", want, data)
		}
	})

	t.Run("existing file is not overwritten", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		s := NewTextSink(root)
		c := newContent(t, "https://example.test/post", postPage, postSpec)

		if _, err := s.Consume(context.Background(), c); err != nil {
			t.Fatalf("failed to consume: %v", err)
		}
		if err := os.WriteFile(s.Path(c), []byte("edited"), 0600); err != nil {
			t.Fatalf("failed to edit output: %v", err)
		}

		res, err := s.Consume(context.Background(), c)
		if err != nil {
			t.Fatalf("failed to consume: %v", err)
		}
		if res.Skipped != 1 || res.Written != 0 {
			t.Errorf("expected skip, got %+v", res)
		}
		data, _ := os.ReadFile(s.Path(c))
		if string(data) != "edited" {
			t.Errorf("expected file to be untouched, got %q", data)
		}
	})

	t.Run("category and nested title", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		s := NewTextSink(root, WithIndent(""), WithSeparator("\n"))
		c := newContent(t, "https://example.test/post", postPage, postSpec)
		c.Path = model.StorePath{Category: "news", Title: []string{"Book", "Chapter 1"}}

		if _, err := s.Consume(context.Background(), c); err != nil {
			t.Fatalf("failed to consume: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(root, "example.test", "news", "Book", "Chapter 1.txt"))
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		if string(data) != "# BookChapter 1\n\nfirst\nsecond\nthird" {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("long title fits the file system", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		s := NewTextSink(root)
		page := strings.Replace(postPage, "Hello World", strings.Repeat("美图", 50), 1)
		c := newContent(t, "https://example.test/post", page, postSpec)

		res, err := s.Consume(context.Background(), c)
		if err != nil {
			t.Fatalf("failed to consume: %v", err)
		}
		if res.Written != 1 {
			t.Errorf("expected 1 written, got %+v", res)
		}
		if name := filepath.Base(s.Path(c)); len(name) > 255 {
			t.Errorf("expected a name of at most 255 bytes, got %d", len(name))
		}
	})

	t.Run("no targets", func(t *testing.T) {
		t.Parallel()

		c := newContent(t, "https://example.test/", "<p>x</p>", postSpec)
		if _, err := NewTextSink(t.TempDir()).Consume(context.Background(), c); !errors.Is(err, ErrNoTargets) {
			t.Errorf("expected ErrNoTargets, got %v", err)
		}
	})
}

// TestImageSink tests image downloads.
func TestImageSink(t *testing.T) {
	t.Parallel()

	imgSpec := model.ContainerSpec{
		Parent: model.ElementSpec{Tag: "div", Attrs: map[string]model.AttrFilter{"id": {Value: "gallery"}}},
		Child:  model.ElementSpec{Tag: "img"},
	}

	t.Run("downloads once and drops missing images", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("/img/a.jpg", func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte("jpeg-bytes"))
		})
		mux.HandleFunc("/cdn/b.png", func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte("png-bytes"))
		})
		mux.HandleFunc("/img/gone.gif", func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.NotFound(w, r)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		page := `<html><head><title>Gallery</title></head><body><div id="gallery">
			<img src="img/a.jpg">
			<img src="` + server.URL + `/cdn/b.png?size=large">
			<img src="/img/gone.gif">
			<img alt="no source">
		</div></body></html>`

		root := t.TempDir()
		s := NewImageSink(root, fetcher.New(fetcher.WithRetryBackoff(0)))
		c := newContent(t, server.URL+"/", page, imgSpec)
		c.Domain = "example.test"

		res, err := s.Consume(context.Background(), c)
		if err != nil {
			t.Fatalf("failed to consume: %v", err)
		}
		if res.Written != 2 || res.Failed != 1 || res.Skipped != 1 {
			t.Errorf("unexpected result %+v", res)
		}

		data, err := os.ReadFile(filepath.Join(root, "example.test", "Gallery", "a.jpg"))
		if err != nil {
			t.Fatalf("failed to read image: %v", err)
		}
		if string(data) != "jpeg-bytes" {
			t.Errorf("unexpected image content %q", data)
		}
		if _, err := os.Stat(filepath.Join(root, "example.test", "Gallery", "b.png")); err != nil {
			t.Errorf("expected off-domain image to be saved: %v", err)
		}

		before := hits.Load()
		res, err = s.Consume(context.Background(), c)
		if err != nil {
			t.Fatalf("failed to consume again: %v", err)
		}
		if res.Written != 0 {
			t.Errorf("expected nothing written on re-run, got %+v", res)
		}
		if got := hits.Load() - before; got != 1 {
			t.Errorf("expected only the missing image to be requested again, got %d requests", got)
		}
	})

	t.Run("custom source attribute", func(t *testing.T) {
		t.Parallel()

		f := &stubFetcher{outcome: &fetcher.Outcome{
			Kind:     fetcher.OutcomeSuccess,
			Response: &fetcher.Response{StatusCode: http.StatusOK, Body: []byte("lazy")},
		}}
		spec := imgSpec
		spec.Source = "data-src"

		root := t.TempDir()
		c := newContent(t, "https://example.test/p", `<title>Lazy</title><div id="gallery"><img data-src="/l/x.webp" src="/placeholder.gif"></div>`, spec)
		if _, err := NewImageSink(root, f).Consume(context.Background(), c); err != nil {
			t.Fatalf("failed to consume: %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "example.test", "Lazy", "x.webp")); err != nil {
			t.Errorf("expected data-src image to be saved: %v", err)
		}
	})

	t.Run("recoverable failure is returned", func(t *testing.T) {
		t.Parallel()

		f := &stubFetcher{outcome: &fetcher.Outcome{Kind: fetcher.OutcomeRecoverable, Err: fetcher.ErrRetriesExhausted}}
		c := newContent(t, "https://example.test/p", `<title>T</title><div id="gallery"><img src="a.jpg"></div>`, imgSpec)

		_, err := NewImageSink(t.TempDir(), f).Consume(context.Background(), c)
		if !errors.Is(err, ErrFetchFailed) {
			t.Errorf("expected ErrFetchFailed, got %v", err)
		}
	})
}

// TestFileName tests image file name derivation.
func TestFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want string
	}{
		{"https://example.test/img/a.jpg", "a.jpg"},
		{"https://example.test/img/my%20photo.png", "my-photo.png"},
		{"https://example.test/", "image"},
		{"https://example.test/img/noext", "noext"},
		{"https://example.test/img/" + strings.Repeat("a", 300) + ".jpg", strings.Repeat("a", model.MaxSegmentBytes-4) + ".jpg"},
	}

	for _, tt := range tests {
		if got := FileName(tt.src); got != tt.want {
			t.Errorf("FileName(%q): expected %q, got %q", tt.src, tt.want, got)
		}
	}
}

// TestNewContent tests building sink input from a page.
func TestNewContent(t *testing.T) {
	t.Parallel()

	page := model.NewPage("https://example.test/a", "example.test")
	page.FinalURL = "https://example.test/b"
	page.Targets = &goquery.Selection{}
	page.StorePath = model.StorePath{Title: []string{"T"}}

	c := NewContent(page, "src")
	if c.PageURL != "https://example.test/b" {
		t.Errorf("expected final URL, got %s", c.PageURL)
	}
	if c.Domain != "example.test" || c.SourceAttr != "src" || c.Path.Heading() != "T" {
		t.Errorf("unexpected content %+v", c)
	}
}
