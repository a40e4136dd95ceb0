// Package database provides the SQLite checkpoint backend for sitecrawl.
//
// CrawlDB stores, per domain:
//   - The frontier (pending and explored targets) as of the last checkpoint
//   - The time the checkpoint was saved
//   - A history of crawl runs with their outcome
//
// CrawlDB implements frontier.Checkpointer, so it can replace the JSON file
// backend. The driver is modernc.org/sqlite, which needs no cgo.
package database
