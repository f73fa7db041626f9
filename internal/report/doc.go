// Package report writes link statistics reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown with tables and a mermaid pie chart
//
// Report data structures live in the model package. Every format renders
// the same model.StatsReport.
package report
