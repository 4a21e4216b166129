package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/crawlmd/internal/convert"
	"github.com/nao1215/crawlmd/internal/download"
	"github.com/nao1215/crawlmd/internal/fetcher"
	"github.com/nao1215/crawlmd/internal/log"
	"github.com/nao1215/crawlmd/internal/model"
)

// Output subdirectories created under the output directory.
const (
	PDFDirName      = "pdfs"
	MarkdownDirName = "markdown"
)

// Default crawl limits.
const (
	// DefaultMaxDepth means unlimited depth.
	DefaultMaxDepth = -1

	// DefaultMaxPages means unlimited pages.
	DefaultMaxPages = 0

	// DefaultDelay is the politeness delay before every request.
	DefaultDelay = time.Second
)

// Downloader saves a PDF into a directory.
type Downloader interface {
	Download(ctx context.Context, rawURL, dir string) (*download.Result, error)
}

// Converter renders an HTML page as Markdown.
// An empty result means there is nothing worth saving.
type Converter interface {
	Convert(body []byte, pageURL string) (string, error)
}

// Spider crawls one website breadth-first and records every page and PDF
// it meets in a crawl log.
//
// Design decision: We call it "Spider" rather than "Crawler" because:
//  1. "Spider" is the traditional term for web crawlers
//  2. Distinguishes the component from the package name
//  3. Clearer in code: crawler.NewSpider() vs crawler.NewCrawler()
//
// A Spider holds configuration only. Each call to Crawl or Run builds its
// own frontier and visited set, so one Spider can run several crawls in
// sequence.
type Spider struct {
	fetcher    fetcher.Fetcher
	downloader Downloader
	converter  Converter

	// maxDepth limits link distance from the start page.
	// 0 means only the start page; negative means unlimited.
	maxDepth int

	// maxPages limits how many HTML pages are fetched.
	// Zero or negative means unlimited.
	maxPages int

	// delay is waited before every page fetch and every linked-PDF download.
	delay time.Duration

	mode      model.Mode
	outputDir string

	// ignorePatterns are URL path globs that are never enqueued.
	ignorePatterns []string

	// followPatterns, when set, restrict enqueued URLs to matching paths.
	followPatterns []string

	logger   *slog.Logger
	progress *log.Progress
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth. Negative means unlimited.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to crawl. Zero or
// negative means unlimited.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the delay before each request. Negative values become zero.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = max(d, 0)
	}
}

// WithMode sets the crawl mode.
func WithMode(mode model.Mode) SpiderOption {
	return func(s *Spider) {
		s.mode = mode
	}
}

// WithOutputDir sets the directory under which "pdfs" and "markdown"
// are created. It is ignored in dry-run mode.
func WithOutputDir(dir string) SpiderOption {
	return func(s *Spider) {
		s.outputDir = dir
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.php", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are enqueued.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress sets where progress lines are written.
func WithProgress(p *log.Progress) SpiderOption {
	return func(s *Spider) {
		if p != nil {
			s.progress = p
		}
	}
}

// NewSpider creates a Spider that fetches through f.
// A nil downloader or converter is replaced by the default implementation.
//
// Design decision: The fetcher is injected rather than created here because:
//  1. The rendered backend owns a browser whose lifetime the caller manages
//  2. The backend is chosen once per run by configuration
//  3. Tests can substitute a fake without a network
func NewSpider(f fetcher.Fetcher, d Downloader, c Converter, opts ...SpiderOption) *Spider {
	if d == nil {
		d = download.NewDownloader()
	}
	if c == nil {
		c = convert.NewConverter()
	}

	s := &Spider{
		fetcher:    f,
		downloader: d,
		converter:  c,
		maxDepth:   DefaultMaxDepth,
		maxPages:   DefaultMaxPages,
		delay:      DefaultDelay,
		mode:       model.ModeFull,
		logger:     slog.New(slog.DiscardHandler),
		progress:   log.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// crawlState is the mutable state of a single crawl.
type crawlState struct {
	domain   string
	frontier []model.CrawlTask
	visited  map[string]struct{}
	pdfs     map[string]struct{}
	log      *model.CrawlLog

	// pagesCrawled counts HTML pages fetched successfully; it drives the
	// page bound.
	pagesCrawled int

	pdfDir string
	mdDir  string
}

// Crawl runs a crawl from startURL and returns its record.
// The returned run is never nil; on cancellation it holds the partial log.
func (s *Spider) Crawl(ctx context.Context, startURL string) (*model.CrawlRun, error) {
	run := model.NewCrawlRun(startURL)
	err := s.Run(ctx, run)
	return run, err
}

// Run crawls run.Target and fills in the rest of run.
//
// It returns ErrInvalidStartURL when the target has no host, an error when
// output directories cannot be created, or ctx.Err() when the context is
// cancelled. Failures of individual pages and PDFs are recorded in the log
// and never end the crawl.
func (s *Spider) Run(ctx context.Context, run *model.CrawlRun) error {
	start, err := ParseStartURL(run.Target)
	if err != nil {
		run.SetError(err)
		return err
	}

	run.StartURL = Normalize(start.String())
	run.Domain = start.Host
	run.Mode = s.mode

	st := &crawlState{
		domain:   start.Host,
		frontier: []model.CrawlTask{{URL: run.StartURL, Depth: 0}},
		visited:  make(map[string]struct{}),
		pdfs:     make(map[string]struct{}),
		log:      model.NewCrawlLog(),
	}

	if err := s.prepareOutput(st, run); err != nil {
		run.SetError(err)
		return err
	}

	s.printBanner(run)
	s.logger.Debug("crawl started", "url", run.StartURL, "domain", run.Domain, "mode", string(run.Mode))

	run.StartedAt = time.Now()
	err = s.loop(ctx, st)
	run.Finish(st.log, time.Now())

	if err != nil {
		run.SetError(err)
		s.logger.Warn("crawl interrupted", "url", run.StartURL, "error", err)
		return err
	}

	s.logger.Debug("crawl finished",
		"url", run.StartURL,
		"pages", run.Results.PagesCrawled,
		"pdfs", run.Results.PDFsFound,
		"errors", len(run.Results.Errors),
	)
	return nil
}

// prepareOutput creates the output subdirectories the mode needs.
// Dry runs create nothing.
func (s *Spider) prepareOutput(st *crawlState, run *model.CrawlRun) error {
	if s.mode == model.ModeDryRun || s.outputDir == "" {
		return nil
	}
	run.OutputDir = s.outputDir

	if s.mode.WritesPDFs() {
		st.pdfDir = filepath.Join(s.outputDir, PDFDirName)
		if err := os.MkdirAll(st.pdfDir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.pdfDir, err)
		}
	}
	if s.mode.WritesMarkdown() {
		st.mdDir = filepath.Join(s.outputDir, MarkdownDirName)
		if err := os.MkdirAll(st.mdDir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.mdDir, err)
		}
	}
	return nil
}

// loop drains the frontier in FIFO order.
func (s *Spider) loop(ctx context.Context, st *crawlState) error {
	for len(st.frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.maxPages > 0 && st.pagesCrawled >= s.maxPages {
			s.progress.Printf("\n[INFO] Reached max pages limit (%d)", s.maxPages)
			return nil
		}

		task := st.frontier[0]
		st.frontier = st.frontier[1:]

		if _, seen := st.visited[task.URL]; seen {
			continue
		}
		if s.maxDepth >= 0 && task.Depth > s.maxDepth {
			continue
		}
		st.visited[task.URL] = struct{}{}

		if err := s.visit(ctx, st, task); err != nil {
			return err
		}
	}
	return nil
}

// visit fetches one task and routes it by content type.
// Only context errors are returned; everything else becomes a log entry.
func (s *Spider) visit(ctx context.Context, st *crawlState, task model.CrawlTask) error {
	if err := sleep(ctx, s.delay); err != nil {
		return err
	}

	s.logger.Debug("fetching", "url", task.URL, "depth", task.Depth)
	resp, err := s.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.recordPageError(st, task, err)
		return nil
	}

	switch {
	case fetcher.IsPDF(resp.ContentType):
		return s.handleDirectPDF(ctx, st, task)
	case fetcher.IsHTML(resp.ContentType):
		return s.handlePage(ctx, st, task, resp)
	default:
		s.logger.Debug("skipping non-HTML response", "url", task.URL, "content_type", resp.ContentType)
		return nil
	}
}

// handleDirectPDF records a PDF that was reached as a page URL.
// A PDF already recorded from a link is not downloaded again.
func (s *Spider) handleDirectPDF(ctx context.Context, st *crawlState, task model.CrawlTask) error {
	if _, seen := st.pdfs[task.URL]; seen {
		return nil
	}
	st.pdfs[task.URL] = struct{}{}

	entry, err := s.processPDF(ctx, st, task.URL, task.Depth, model.FoundOnDirect, 0)
	if err != nil {
		return err
	}
	st.log.Append(entry)
	return nil
}

// handlePage processes a fetched HTML page: PDFs, Markdown, log entry and
// outgoing links, in that order.
func (s *Spider) handlePage(ctx context.Context, st *crawlState, task model.CrawlTask, resp *fetcher.Response) error {
	st.pagesCrawled++
	s.progress.Printf("  [%4d]  depth=%d  %s", st.pagesCrawled, task.Depth, task.URL)

	base := resp.FinalURL
	if base == "" {
		base = task.URL
	}

	parser, err := NewParser(base)
	if err != nil {
		s.recordPageError(st, task, err)
		return nil
	}
	result, err := parser.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		s.recordPageError(st, task, fmt.Errorf("failed to parse HTML: %w", err))
		return nil
	}

	for _, link := range result.PDFLinks {
		pdfURL := Normalize(link)
		if _, seen := st.pdfs[pdfURL]; seen {
			continue
		}
		st.pdfs[pdfURL] = struct{}{}

		entry, err := s.processPDF(ctx, st, pdfURL, task.Depth, task.URL, s.delay)
		if err != nil {
			return err
		}
		st.log.Append(entry)
	}

	savedAs := ""
	if s.mode.WritesMarkdown() && st.mdDir != "" {
		savedAs, err = s.saveMarkdown(st, task.URL, resp.Body)
		if err != nil {
			s.recordPageError(st, task, err)
			return nil
		}
	}

	st.log.Append(model.CrawlLogEntry{
		URL:           task.URL,
		Type:          model.EntryTypePage,
		Status:        model.StatusCrawled,
		Depth:         task.Depth,
		Title:         result.Title,
		PDFLinksCount: len(result.PDFLinks),
		SavedAs:       savedAs,
	})

	s.enqueueLinks(st, task, result.Links)
	return nil
}

// saveMarkdown converts and writes a page. It returns "" when the page
// converted to nothing.
func (s *Spider) saveMarkdown(st *crawlState, pageURL string, body []byte) (string, error) {
	content, err := s.converter.Convert(body, pageURL)
	if err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}
	if content == "" {
		s.logger.Debug("page has no content, markdown not saved", "url", pageURL)
		return "", nil
	}
	return convert.Save(st.mdDir, pageURL, content)
}

// enqueueLinks adds crawlable same-domain links at depth+1.
func (s *Spider) enqueueLinks(st *crawlState, task model.CrawlTask, links []string) {
	for _, link := range links {
		next := Normalize(link)
		if _, seen := st.visited[next]; seen {
			continue
		}
		if !IsSameDomain(next, st.domain) {
			continue
		}
		if reason := rejectReason(next); reason != "" {
			s.logger.Debug("skipping link", "url", next, "reason", reason)
			continue
		}
		if !s.shouldCrawl(next) {
			continue
		}
		st.frontier = append(st.frontier, model.CrawlTask{URL: next, Depth: task.Depth + 1})
	}
}

// processPDF downloads a PDF (unless the mode forbids it) and returns
// its log entry. delay is waited before the download.
func (s *Spider) processPDF(ctx context.Context, st *crawlState, pdfURL string, depth int, foundOn string, delay time.Duration) (model.CrawlLogEntry, error) {
	s.progress.Printf("  [PDF]  %s", pdfURL)

	entry := model.CrawlLogEntry{
		URL:     pdfURL,
		Type:    model.EntryTypePDF,
		Status:  model.StatusFound,
		Depth:   depth,
		FoundOn: foundOn,
	}
	if !s.mode.WritesPDFs() || st.pdfDir == "" {
		return entry, nil
	}

	if err := sleep(ctx, delay); err != nil {
		return entry, err
	}

	res, err := s.downloader.Download(ctx, pdfURL, st.pdfDir)
	if err != nil {
		if ctx.Err() != nil {
			return entry, ctx.Err()
		}
		entry.Status = model.StatusError
		entry.Error = err.Error()
		s.progress.Printf("  [ERR]  %s: %v", pdfURL, err)
		s.logger.Warn("pdf download failed", "url", pdfURL, "error", err)
		return entry, nil
	}

	entry.Status = model.StatusDownloaded
	entry.SavedAs = res.Path
	entry.SizeKB = res.SizeKB
	s.progress.Printf("         -> saved (%.1f KB)", res.SizeKB)
	return entry, nil
}

// recordPageError appends an error entry for a page.
func (s *Spider) recordPageError(st *crawlState, task model.CrawlTask, err error) {
	st.log.Append(model.CrawlLogEntry{
		URL:    task.URL,
		Type:   model.EntryTypePage,
		Status: model.StatusError,
		Depth:  task.Depth,
		Error:  err.Error(),
	})
	s.progress.Printf("  [ERR]  %s: %v", task.URL, err)

	var fe *fetcher.FetchError
	if errors.As(err, &fe) {
		s.logger.Debug("fetch failed", "url", task.URL, "kind", string(fe.Kind), "status", fe.StatusCode)
	}
}

// printBanner writes the run header.
func (s *Spider) printBanner(run *model.CrawlRun) {
	depth := "unlimited"
	if s.maxDepth >= 0 {
		depth = fmt.Sprintf("%d", s.maxDepth)
	}
	pages := "unlimited"
	if s.maxPages > 0 {
		pages = fmt.Sprintf("%d", s.maxPages)
	}

	s.progress.Banner("Web Crawler", [][2]string{
		{"Target", run.Target},
		{"Domain", run.Domain},
		{"Max depth", depth},
		{"Max pages", pages},
		{"Delay", s.delay.String()},
		{"Mode", s.mode.String()},
	})
	s.progress.Printf("")
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
