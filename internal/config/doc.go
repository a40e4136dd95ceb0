// Package config provides the crawl configuration: defaults, validation,
// the .sitecrawl profile file with per-site settings, and XDG directories.
package config
