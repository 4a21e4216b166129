// Package report renders finished crawl runs.
//
// This package contains writers for different output formats:
//   - CSVWriter: one row per crawl log entry, the default report file
//   - MarkdownWriter: summary and entry tables for sharing
//   - JSONWriter: the full run for tool integration
//   - SummaryWriter: the end-of-run banner shown in the terminal
//
// Design decision: We separate report writing from the crawl data
// structures (which are in the model package) so a new output format
// never touches the crawler.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed with MultiWriter. FormatFromPath and
// WriteFile pick a writer from a file extension, and DerivePath builds
// the automatic crawl_report_<domain>_<timestamp>.csv name.
package report
