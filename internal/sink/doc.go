// Package sink writes extracted page content to disk.
//
// Two sinks exist: ImageSink downloads the images a page's targets point to
// and TextSink joins the targets' text into one .txt file per page. Both
// are write-once: a destination that already exists is never fetched or
// written again, which makes re-running a crawl cheap.
//
// Output goes below <root>/<domain>/<category>/<title...>.
package sink
