// Package pipeline runs the per-target work of a crawlmd invocation.
//
// A run passes through a fixed sequence of steps: the crawl itself,
// then the report file, the terminal summary and the optional history
// archive. Each step receives the same model.CrawlRun and fills in its
// part of it.
//
// Design decision: We use a pipeline of steps instead of direct function
// calls because:
// 1. Report, summary and history are optional and toggled by flags
// 2. It provides consistent error handling and logging across steps
// 3. Final steps still run after Ctrl-C so a partial crawl is reported
//
// BatchProcessor runs one pipeline per target with concurrency bounded
// by errgroup.
package pipeline
