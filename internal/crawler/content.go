package crawler

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Extract locates the content targets of a page.
//
// Every element matching spec.Parent is visited in document order and the
// first one with descendants matching spec.Child wins. The result is empty,
// not nil, when nothing matches.
func Extract(doc *goquery.Document, spec model.ContainerSpec) *goquery.Selection {
	parents := doc.Find(spec.Parent.Selector()).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return spec.Parent.Matches(s.Nodes[0])
	})

	for i := range parents.Nodes {
		children := parents.Eq(i).Find(spec.Child.Selector()).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return spec.Child.Matches(s.Nodes[0])
		})
		if children.Length() > 0 {
			return children
		}
	}

	return doc.Selection.Slice(0, 0)
}

// first returns the first element in document order matching spec.
func first(doc *goquery.Document, spec model.ElementSpec) *html.Node {
	var found *html.Node
	doc.Find(spec.Selector()).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if spec.Matches(s.Nodes[0]) {
			found = s.Nodes[0]
			return false
		}
		return true
	})
	return found
}
