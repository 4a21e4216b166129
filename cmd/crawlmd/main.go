// Package main provides the entry point for the crawlmd CLI.
//
// crawlmd crawls a website breadth-first within a single domain, converts
// every HTML page to Markdown, downloads every linked PDF and writes a
// per-URL report.
//
// Usage:
//
//	crawlmd crawl https://example.com
//	crawlmd crawl --dry-run --max-depth 2 example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
