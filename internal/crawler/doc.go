// Package crawler turns a fetched page into crawl results.
//
// # Components
//
//   - Parse: builds a goquery document from an HTML body; never fails
//   - ExtractLinks: same-domain link discovery with RFC 3986 resolution
//   - Extract: content location with a two-level container spec
//   - StorePath, Title, Category: where extracted content is written
//
// All functions are pure. Fetching, frontier updates and writing are done
// by the pipeline steps that call them.
//
// # Usage
//
//	doc := crawler.Parse(body)
//	links := crawler.ExtractLinks(finalURL, doc, "example.com")
//	targets := crawler.Extract(doc, spec)
//	path := crawler.StorePath(doc, crawler.PathOptions{Redundant: " | Example"})
package crawler
