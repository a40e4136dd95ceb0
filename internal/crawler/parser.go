package crawler

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parse builds a navigable document from an HTML body.
//
// The HTML5 parsing algorithm accepts any input, so Parse never fails: an
// empty or malformed body yields a document with an empty <html> skeleton.
func Parse(body []byte) *goquery.Document {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		root = &html.Node{Type: html.DocumentNode}
	}
	return goquery.NewDocumentFromNode(root)
}

// getAttr returns the value of an attribute, or "" if it is missing.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
