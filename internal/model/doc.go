// Package model defines the data shared by the crawl components.
//
// This package contains:
//   - Crawl targets: NormalizeTarget and Domain turn raw URLs into frontier keys
//   - ContainerSpec and ElementSpec: the two-level content selector
//   - StorePath: the on-disk location derived from a page's category and title
//   - Page: the state one unit of work carries from fetch to sink
//
// The types live in their own package so crawler, sink, pipeline and
// scheduler can share them without import cycles.
package model
