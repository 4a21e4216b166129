// Package model defines the core data structures used throughout crawlmd.
//
// This package contains the following main types:
//   - CrawlTask: A (URL, depth) pair waiting in the frontier
//   - CrawlLogEntry: One record per terminal crawl event (page or PDF)
//   - CrawlLog: The append-only sequence of entries produced by a run
//   - CrawlResults: Summary counts derived from a CrawlLog
//   - CrawlRun: Everything one crawl produced, suitable for reports and history
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, report, pipeline and database packages all need
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
