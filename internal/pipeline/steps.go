package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/crawlmd/internal/crawler"
	"github.com/nao1215/crawlmd/internal/database"
	"github.com/nao1215/crawlmd/internal/fetcher"
	"github.com/nao1215/crawlmd/internal/log"
	"github.com/nao1215/crawlmd/internal/model"
	"github.com/nao1215/crawlmd/internal/report"
)

// FetcherFactory creates the fetch backend for one run.
type FetcherFactory func(mode fetcher.Mode, opts fetcher.Options) (fetcher.Fetcher, error)

// CrawlStep runs the BFS crawl for the run's target.
//
// Design decision: The step creates its fetcher per run and closes it
// when the crawl ends, because the rendered backend owns a browser process
// that must not outlive the run.
type CrawlStep struct {
	// newFetcher creates the backend. Defaults to fetcher.New.
	newFetcher FetcherFactory

	// mode selects the static or rendered backend.
	mode fetcher.Mode

	// fetchOpts are passed to newFetcher.
	fetchOpts fetcher.Options

	// downloader and converter are handed to the spider; nil means default.
	downloader crawler.Downloader
	converter  crawler.Converter

	// spiderOpts configure depth, pages, delay, mode and output.
	spiderOpts []crawler.SpiderOption

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithFetcherFactory replaces fetcher.New, mainly for tests.
func WithFetcherFactory(f FetcherFactory) CrawlStepOption {
	return func(s *CrawlStep) {
		s.newFetcher = f
	}
}

// WithFetchMode selects the fetch backend.
func WithFetchMode(mode fetcher.Mode) CrawlStepOption {
	return func(s *CrawlStep) {
		s.mode = mode
	}
}

// WithFetchOptions sets the backend options.
func WithFetchOptions(opts fetcher.Options) CrawlStepOption {
	return func(s *CrawlStep) {
		s.fetchOpts = opts
	}
}

// WithDownloader sets the PDF downloader.
func WithDownloader(d crawler.Downloader) CrawlStepOption {
	return func(s *CrawlStep) {
		s.downloader = d
	}
}

// WithConverter sets the Markdown converter.
func WithConverter(c crawler.Converter) CrawlStepOption {
	return func(s *CrawlStep) {
		s.converter = c
	}
}

// WithSpiderOptions appends spider options.
func WithSpiderOptions(opts ...crawler.SpiderOption) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, opts...)
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a new crawling step using the static backend.
func NewCrawlStep(opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		newFetcher: fetcher.New,
		mode:       fetcher.ModeStatic,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do creates the backend, crawls run.Target and closes the backend.
func (s *CrawlStep) Do(ctx context.Context, run *model.CrawlRun) error {
	run.Fetcher = string(s.mode)

	f, err := s.newFetcher(s.mode, s.fetchOpts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.Warn("failed to close fetcher", "mode", string(s.mode), "error", cerr)
		}
	}()

	spider := crawler.NewSpider(f, s.downloader, s.converter, s.spiderOpts...)
	if err := spider.Run(ctx, run); err != nil {
		return err
	}

	s.logger.Info("crawl completed",
		"target", run.Target,
		"pages", run.Results.PagesCrawled,
		"pdfs", run.Results.PDFsFound,
		"errors", len(run.Results.Errors),
	)
	return nil
}

// ReportStep writes the report file for a run.
type ReportStep struct {
	// paths are explicit report paths. When empty a CSV name is derived.
	paths []string

	// now returns the time used in derived names.
	now func() time.Time

	progress *log.Progress
	logger   *slog.Logger
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithReportPaths sets explicit report paths. Each extension picks the
// format of its file. Empty paths are ignored.
func WithReportPaths(paths ...string) ReportStepOption {
	return func(s *ReportStep) {
		for _, p := range paths {
			if p != "" {
				s.paths = append(s.paths, p)
			}
		}
	}
}

// WithReportClock sets the clock used for derived report names.
func WithReportClock(now func() time.Time) ReportStepOption {
	return func(s *ReportStep) {
		s.now = now
	}
}

// WithReportProgress sets where the "Report saved" lines go.
func WithReportProgress(p *log.Progress) ReportStepOption {
	return func(s *ReportStep) {
		s.progress = p
	}
}

// WithReportLogger sets a custom logger for the report step.
func WithReportLogger(logger *slog.Logger) ReportStepOption {
	return func(s *ReportStep) {
		s.logger = logger
	}
}

// NewReportStep creates a report step.
func NewReportStep(opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		now:      time.Now,
		progress: log.Discard(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the report. A run whose start URL never parsed has no domain
// and gets no report.
func (s *ReportStep) Do(_ context.Context, run *model.CrawlRun) error {
	if run.Domain == "" {
		s.logger.Debug("skipping report, run has no domain", "target", run.Target)
		return nil
	}

	paths := s.paths
	if len(paths) == 0 {
		paths = []string{report.DerivePath(run.OutputDir, run.Domain, s.now(), run.Mode == model.ModeDryRun)}
	}

	if err := report.WriteFiles(paths, run); err != nil {
		return err
	}
	run.ReportPath = paths[0]

	for _, path := range paths {
		s.progress.Printf("  Report saved: %s", path)
	}
	s.progress.Printf("  Total entries: %d", len(run.Entries))
	return nil
}

// SummaryStep prints the end-of-run summary banner.
type SummaryStep struct {
	progress *log.Progress
}

// NewSummaryStep creates a summary step that writes to p.
func NewSummaryStep(p *log.Progress) *SummaryStep {
	return &SummaryStep{progress: p}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do prints the summary. It prints nothing for a run that never started.
func (s *SummaryStep) Do(_ context.Context, run *model.CrawlRun) error {
	if run.StartedAt.IsZero() {
		return nil
	}
	s.progress.Banner("Summary", report.SummaryRows(run))
	return nil
}

// HistoryStep archives the run in the history database.
type HistoryStep struct {
	db     *database.HistoryDB
	logger *slog.Logger
}

// NewHistoryStep creates a history step. The database is shared between
// runs and closed by the caller.
func NewHistoryStep(db *database.HistoryDB, logger *slog.Logger) *HistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do stores the run. Runs that never started are not archived.
func (s *HistoryStep) Do(ctx context.Context, run *model.CrawlRun) error {
	if run.StartedAt.IsZero() {
		return nil
	}

	id, err := s.db.SaveRun(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to save crawl history: %w", err)
	}

	s.logger.Debug("run saved to history", "id", id, "domain", run.Domain)
	return nil
}
