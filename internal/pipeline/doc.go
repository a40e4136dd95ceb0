// Package pipeline runs the unit of work for one crawl target.
//
// A unit is an ordered list of steps over a model.Page:
//
//	fetch -> parse -> links -> content -> sink
//
// FetchStep downloads the target, ParseStep builds the document, LinkStep
// feeds same-domain links to the frontier, ContentStep selects content and
// derives the store path, and SinkStep writes it. Links are recorded before
// content is handled, so a page whose content fails to save still extends
// the crawl.
//
// Execute stops at the first error. Errors wrapping ErrDiscard mean the
// target should be retired without retry; any other error means the target
// should be restored to the frontier.
package pipeline
