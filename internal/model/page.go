package model

import (
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// Page carries the state of one unit of work through the crawl pipeline.
// Each step fills in the fields it is responsible for.
//
// Design decision: We keep both the raw body and the parsed document because:
// 1. The parse step never fails, so the body is the only record of what the
//    server sent when extraction finds nothing
// 2. Tests can build a page from a body without running the fetch step
type Page struct {
	// Target is the normalized URL taken from the frontier.
	Target string

	// Domain is the host the crawl is bound to.
	Domain string

	// FinalURL is the URL after redirects. Relative links resolve against it.
	FinalURL string

	// StatusCode is the HTTP status of the page response.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the decoded response body forced to UTF-8.
	Body []byte

	// Attempts is how many fetch attempts the page took.
	Attempts int

	// Document is the parsed page.
	Document *goquery.Document

	// Links are the same-domain targets discovered on the page.
	Links []string

	// NewLinks is how many of Links were new to the frontier.
	NewLinks int

	// Targets are the content nodes selected by the container spec.
	// Nil or empty means the page has nothing to store.
	Targets *goquery.Selection

	// StorePath is where the page's content is written.
	StorePath StorePath

	// Written and Skipped count the files the sink created or found
	// already present.
	Written int
	Skipped int
}

// NewPage creates a Page for a frontier target.
func NewPage(target, domain string) *Page {
	return &Page{
		Target:   target,
		Domain:   domain,
		FinalURL: target,
	}
}

// BaseURL is the URL relative references on the page resolve against.
func (p *Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.Target
}

// HasTargets reports whether any content was selected.
func (p *Page) HasTargets() bool {
	return p.Targets != nil && p.Targets.Length() > 0
}
