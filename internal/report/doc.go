// Package report renders run reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text summary for the terminal
//   - JSONWriter: structured JSON output for tool integration
//   - MarkdownWriter: summary.md written into each run directory
//
// WriteSummaryFile combines the Markdown and JSON writers through a
// MultiWriter to leave summary.md and summary.json next to the artifacts.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
