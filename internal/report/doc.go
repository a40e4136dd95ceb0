// Package report renders crawl status and crawl summaries.
//
// Writers for three formats implement the Writer interface:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: GitHub flavored Markdown with a mermaid pie chart
//   - JSONWriter: JSON for tool integration
//
// Writers can be combined with MultiWriter to write the same report to the
// terminal and a file.
package report
