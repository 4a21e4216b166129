// Package crawler implements the breadth-first website crawler.
//
// # Architecture
//
// The Spider drives the crawl. It pops (URL, depth) tasks from a FIFO
// frontier, fetches each through a fetcher.Fetcher, and routes the
// response by content type:
//   - application/pdf: recorded (and downloaded) as a PDF found directly
//   - text/html: title, links and PDF references are extracted, linked PDFs
//     are downloaded, the page is converted to Markdown, and same-domain
//     links are enqueued one level deeper
//   - anything else: skipped without a log entry
//
// Every outcome, including failures, is appended to a model.CrawlLog.
// One failing page never stops the crawl.
//
// # Components
//
//   - Spider: the scheduler and its per-run crawl state
//   - Parser: x/net/html walker that extracts title, links and PDF links
//   - Normalize / Resolve: URL canonicalization used as the dedup key
//   - IsValidURL / IsSameDomain / IsPDFURL: declarative URL classification
//
// # Invariants
//
//   - No normalized URL is fetched as a page more than once per run
//   - No page deeper than the depth bound is fetched
//   - No more pages than the page bound are fetched
//   - Only the start URL's exact host is followed; subdomains are not
//   - Each normalized PDF URL is downloaded at most once per run
//
// # Usage
//
//	f, _ := fetcher.New(fetcher.ModeStatic, fetcher.Options{})
//	defer f.Close()
//	spider := crawler.NewSpider(f, nil, nil, crawler.WithMaxDepth(2), crawler.WithOutputDir("out"))
//	run, err := spider.Crawl(ctx, "https://example.com")
package crawler
