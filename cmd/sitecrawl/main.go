// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl crawls one website from a seed URL, follows same-domain links
// and stores the content matched by a two-level container spec as text
// files or images. Interrupted crawls resume from a checkpoint.
//
// Usage:
//
//	sitecrawl crawl https://example.com/ --container 'div[class=post-body]' --target p
//	sitecrawl status example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
