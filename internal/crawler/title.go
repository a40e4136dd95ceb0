package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/sitecrawl/internal/model"
)

// PathOptions controls how a page's store path is derived.
type PathOptions struct {
	// Redundant is removed from the title, e.g. a site name suffix.
	Redundant string

	// Separator splits the title into nested directories when set.
	Separator string

	// Category selects an element whose text becomes the category directory.
	Category model.ElementSpec
}

// StorePath derives where the content of doc is written.
func StorePath(doc *goquery.Document, opts PathOptions) model.StorePath {
	return model.StorePath{
		Category: Category(doc, opts.Category),
		Title:    Title(doc, opts),
	}
}

// Title returns the sanitized title segments of doc. It always returns at
// least one segment; pages without a usable <title> get "no title".
func Title(doc *goquery.Document, opts PathOptions) []string {
	sel := doc.Find("title").First()
	if sel.Length() == 0 {
		return []string{model.NoTitle}
	}

	title := norm.NFC.String(sel.Text())
	if opts.Redundant != "" {
		title = strings.ReplaceAll(title, opts.Redundant, "")
	}
	title = model.StripIllegal(title)
	if redundant := model.StripIllegal(opts.Redundant); redundant != "" {
		title = strings.ReplaceAll(title, redundant, "")
	}
	title = model.TrimBoundary(title)

	segments := []string{title}
	if opts.Separator != "" {
		segments = segments[:0]
		for part := range strings.SplitSeq(title, opts.Separator) {
			if part = model.TrimBoundary(part); part != "" {
				segments = append(segments, part)
			}
		}
	}

	for i, seg := range segments {
		segments[i] = model.TruncateSegment(seg, model.MaxSegmentBytes)
	}

	if len(segments) == 0 || segments[0] == "" {
		return []string{model.NoTitle}
	}
	return segments
}

// Category returns the sanitized text of the first element matching spec,
// or "" when spec is unset or nothing matches.
func Category(doc *goquery.Document, spec model.ElementSpec) string {
	if spec.IsZero() {
		return ""
	}
	n := first(doc, spec)
	if n == nil {
		return ""
	}
	text := norm.NFC.String(goquery.NewDocumentFromNode(n).Text())
	return model.SanitizeSegment(strings.Join(strings.Fields(text), " "))
}
