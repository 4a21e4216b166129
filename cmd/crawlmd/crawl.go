package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/crawlmd/internal/config"
	"github.com/nao1215/crawlmd/internal/crawler"
	"github.com/nao1215/crawlmd/internal/database"
	"github.com/nao1215/crawlmd/internal/download"
	"github.com/nao1215/crawlmd/internal/fetcher"
	"github.com/nao1215/crawlmd/internal/log"
	"github.com/nao1215/crawlmd/internal/model"
	"github.com/nao1215/crawlmd/internal/pipeline"
	"github.com/nao1215/crawlmd/internal/report"
	"github.com/nao1215/crawlmd/internal/tor"
	"github.com/spf13/cobra"
)

var (
	// ErrCrawlFailed is returned when no page was crawled or a run could
	// not start. The process exits with status 1.
	ErrCrawlFailed = errors.New("crawl failed")

	// ErrCrawlDegraded is returned when pages were crawled but errors were
	// recorded on the way. The process exits with status 1.
	ErrCrawlDegraded = errors.New("crawl completed with errors")

	// ErrOnionRequiresProxy is returned for an onion target without --tor
	// or a SOCKS proxy.
	ErrOnionRequiresProxy = errors.New("onion targets need --tor or a socks5h:// --proxy")
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]...",
		Short: "Crawl a website and save pages as Markdown and PDFs",
		Long: `Crawl visits every page reachable from the start URL without leaving its
domain, in breadth-first order.

For each HTML page the main content is converted to Markdown and saved
under <output>/markdown/. Every linked PDF is downloaded once into
<output>/pdfs/. Every URL handled is written to a report.

Examples:
  # Crawl a site into ./crawled
  crawlmd crawl https://example.com

  # List what would be crawled, two levels deep, without saving anything
  crawlmd crawl --dry-run --max-depth 2 example.com

  # Only collect PDFs, half a second between requests
  crawlmd crawl --pdfs-only --delay 0.5 https://example.com/papers/

  # Render JavaScript with headless Chrome
  crawlmd crawl --render --settle 3s https://spa.example.com

  # Crawl an onion service through an embedded Tor daemon
  crawlmd crawl --tor http://<56 characters>.onion/

  # Crawl two sites concurrently and keep a history of the runs
  crawlmd crawl -b 2 --history https://a.example.com https://b.example.com

Configuration file (.crawlmd) example:
  defaults:
    delay: 500ms
  sites:
    docs.example.com:
      cookie: "session=abc123"
      maxDepth: 3
      ignorePatterns:
        - "/blog/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory for pdfs/, markdown/ and the report")
	cmd.Flags().Bool("dry-run", false,
		"Discover URLs and write the report only")
	cmd.Flags().Bool("pdfs-only", false,
		"Download PDFs but do not save Markdown")
	cmd.Flags().BoolP("quiet", "q", false,
		"Suppress progress output")

	// Crawl bounds
	cmd.Flags().Int("max-depth", config.DefaultMaxDepth,
		"Maximum link depth from the start URL (-1 for unlimited)")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages,
		"Maximum number of pages to crawl per target (0 for unlimited)")
	cmd.Flags().Float64("delay", config.DefaultDelay.Seconds(),
		"Seconds to wait before every request")

	// Fetch flags
	cmd.Flags().Bool("render", false,
		"Fetch pages with headless Chrome instead of plain HTTP")
	cmd.Flags().Duration("settle", config.DefaultSettleDelay,
		"Time to let a rendered page run its scripts")
	cmd.Flags().String("browser", "",
		"Chrome or Chromium executable for --render")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("proxy", "",
		"Proxy URL (http://, https://, socks5://)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header to send")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and crawl through it (needed for .onion sites)")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for the embedded Tor startup")

	// Report flags
	cmd.Flags().StringSlice("report", nil,
		"Report file path; .csv, .md or .json selects the format (repeatable)")
	cmd.Flags().Bool("no-report", false,
		"Do not write a report")

	// Batch and history
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of targets crawled concurrently")
	cmd.Flags().Bool("history", false,
		"Save each run in the crawl history database")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .crawlmd in current or home directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := log.NewLogger(cmd.ErrOrStderr(), getLogFormatFlag(cmd), cfg.Verbose)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	slog.SetDefault(logger)
	progress := log.NewProgress(cmd.OutOrStdout(), cfg.Quiet)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, stopping crawl...")
			cancel()
		case <-ctx.Done():
		}
	}()

	runs, err := runCrawl(ctx, cfg, logger, progress)
	if err != nil {
		return err
	}
	return crawlExitError(runs)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getLogFormatFlag returns the --log-format value, which is only defined
// when the command runs under the root command.
func getLogFormatFlag(cmd *cobra.Command) string {
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return log.FormatText
	}
	return format
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.DryRun, err = flags.GetBool("dry-run"); err != nil {
		return nil, err
	}
	if cfg.PDFsOnly, err = flags.GetBool("pdfs-only"); err != nil {
		return nil, err
	}
	if cfg.Quiet, err = flags.GetBool("quiet"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("max-depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}

	delay, err := flags.GetFloat64("delay")
	if err != nil {
		return nil, err
	}
	cfg.Delay = time.Duration(delay * float64(time.Second))

	render, err := flags.GetBool("render")
	if err != nil {
		return nil, err
	}
	if render {
		cfg.FetchMode = fetcher.ModeRendered
	}

	if cfg.SettleDelay, err = flags.GetDuration("settle"); err != nil {
		return nil, err
	}
	if cfg.BrowserPath, err = flags.GetString("browser"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Tor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.ReportFiles, err = flags.GetStringSlice("report"); err != nil {
		return nil, err
	}
	if cfg.NoReport, err = flags.GetBool("no-report"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.SaveHistory, err = flags.GetBool("history"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicit -c that does not exist is an error; otherwise a missing
	// file just means no site settings.
	if _, err := config.Load(cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args

	return cfg, nil
}

// runCrawl crawls every target and returns the finished runs in target order.
// Only setup failures are returned as errors; crawl failures stay on the runs.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, progress *log.Progress) ([]*model.CrawlRun, error) {
	if len(cfg.Targets) == 0 {
		return nil, config.ErrNoTarget
	}

	if err := validateTargets(cfg); err != nil {
		return nil, err
	}

	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"mode", string(cfg.Mode()),
		"fetcher", string(cfg.FetchMode),
		"batchSize", cfg.BatchSize,
		"history", cfg.SaveHistory,
	)

	if cfg.Tor {
		stop, err := startTor(ctx, cfg, logger, progress)
		if err != nil {
			return nil, err
		}
		defer stop()
	}

	var db *database.HistoryDB
	if cfg.SaveHistory {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		logger.Info("history database opened", "path", db.Path())
	}

	// Concurrent runs would interleave their per-page lines, so they only
	// print a completion line and their summary.
	concurrent := cfg.BatchSize > 1 && len(cfg.Targets) > 1
	runProgress := progress
	if concurrent {
		runProgress = log.Discard()
	}

	var mu sync.Mutex
	bp := pipeline.NewBatchProcessor(
		newPipelineFactory(cfg, db, logger, runProgress),
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
		pipeline.WithOnComplete(func(run *model.CrawlRun, index int) {
			if len(cfg.Targets) == 1 {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			progress.Printf("[%d/%d] Crawl finished: %s (%d pages, %d errors)",
				index+1, len(cfg.Targets), run.Target,
				run.Results.PagesCrawled, len(run.Results.Errors))
			if concurrent && !run.StartedAt.IsZero() {
				progress.Banner("Summary: "+run.Domain, report.SummaryRows(run))
			}
		}),
	)

	runs, err := bp.ProcessBatch(ctx, cfg.Targets)
	if err != nil {
		logger.Warn("crawl interrupted", "error", err)
	}
	return runs, nil
}

// validateTargets checks every start URL before anything is started.
func validateTargets(cfg *config.Config) error {
	for _, target := range cfg.Targets {
		u, err := crawler.ParseStartURL(target)
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", target, err)
		}
		if !tor.IsOnionHost(u.Host) {
			continue
		}
		if err := tor.ValidateHost(u.Host); err != nil {
			return fmt.Errorf("invalid target %q: %w", target, err)
		}
		if !cfg.Tor && !strings.HasPrefix(cfg.Proxy, "socks5") {
			return fmt.Errorf("%w: %s", ErrOnionRequiresProxy, target)
		}
	}
	return nil
}

// startTor launches the embedded Tor daemon and points cfg.Proxy at it.
// The returned function stops the daemon.
func startTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, progress *log.Progress) (func(), error) {
	progress.Printf("Starting Tor (this can take a few minutes)...")

	daemon := tor.NewDaemon(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := daemon.Start(ctx); err != nil {
		return nil, err
	}

	proxyURL, err := daemon.ProxyURL()
	if err != nil {
		_ = daemon.Stop() //nolint:errcheck // already failing
		return nil, err
	}
	cfg.Proxy = proxyURL
	logger.Info("tor daemon started", "socks", daemon.SocksAddr())

	return func() {
		logger.Info("stopping tor daemon")
		if err := daemon.Stop(); err != nil {
			logger.Warn("failed to stop tor daemon", "error", err)
		}
	}, nil
}

// newPipelineFactory returns a factory building the crawl pipeline for one
// target. Settings are resolved per domain so every target gets its own
// site configuration, also in batch mode.
func newPipelineFactory(cfg *config.Config, db *database.HistoryDB, logger *slog.Logger, progress *log.Progress) pipeline.PipelineFactory {
	multi := len(cfg.Targets) > 1

	return func(target string) *pipeline.Pipeline {
		domain := targetDomain(target)
		settings := cfg.SettingsFor(domain)
		outputDir := targetOutputDir(cfg.OutputDir, domain, multi)

		p := pipeline.New(
			pipeline.WithLogger(logger),
			pipeline.WithContinueOnError(true),
		)

		p.AddStep(pipeline.NewCrawlStep(
			pipeline.WithFetchMode(cfg.FetchMode),
			pipeline.WithFetchOptions(fetcher.Options{
				Timeout:     cfg.Timeout,
				UserAgent:   settings.UserAgent,
				Headers:     settings.Headers,
				Cookie:      settings.Cookie,
				Proxy:       cfg.Proxy,
				MaxBodySize: cfg.MaxBodySize,
				SettleDelay: cfg.SettleDelay,
				ExecPath:    cfg.BrowserPath,
			}),
			pipeline.WithDownloader(newDownloader(cfg, settings, logger)),
			pipeline.WithSpiderOptions(
				crawler.WithMaxDepth(settings.MaxDepth),
				crawler.WithMaxPages(settings.MaxPages),
				crawler.WithDelay(settings.Delay),
				crawler.WithMode(cfg.Mode()),
				crawler.WithOutputDir(outputDir),
				crawler.WithIgnorePatterns(settings.IgnorePatterns),
				crawler.WithFollowPatterns(settings.FollowPatterns),
				crawler.WithLogger(logger),
				crawler.WithProgress(progress),
			),
			pipeline.WithCrawlLogger(logger),
		))

		if !cfg.NoReport {
			p.AddFinalSteps(pipeline.NewReportStep(
				pipeline.WithReportPaths(targetReportPaths(cfg.ReportFiles, domain, multi)...),
				pipeline.WithReportProgress(progress),
				pipeline.WithReportLogger(logger),
			))
		}
		p.AddFinalSteps(pipeline.NewSummaryStep(progress))
		if db != nil {
			p.AddFinalSteps(pipeline.NewHistoryStep(db, logger))
		}

		return p
	}
}

// newDownloader creates the PDF downloader for one target. It shares the
// proxy, user agent and credentials of the page fetcher.
func newDownloader(cfg *config.Config, settings config.Settings, logger *slog.Logger) *download.Downloader {
	headers := make(map[string]string, len(settings.Headers)+1)
	maps.Copy(headers, settings.Headers)
	if settings.Cookie != "" {
		headers["Cookie"] = settings.Cookie
	}

	opts := []download.Option{
		download.WithTimeout(cfg.Timeout),
		download.WithUserAgent(settings.UserAgent),
		download.WithHeaders(headers),
	}

	client, err := fetcher.NewHTTPClient(cfg.Proxy)
	if err != nil {
		// The static fetcher rejects the same proxy and fails the run, so
		// the downloader is never reached.
		logger.Warn("failed to create download client", "error", err)
	} else {
		opts = append(opts, download.WithHTTPClient(client))
	}

	return download.NewDownloader(opts...)
}

// targetDomain returns the host a target is confined to, or "" when the
// target does not parse.
func targetDomain(target string) string {
	u, err := crawler.ParseStartURL(target)
	if err != nil {
		return ""
	}
	return u.Host
}

// domainSlug makes a domain usable as a file name component.
func domainSlug(domain string) string {
	return strings.NewReplacer(".", "_", ":", "_").Replace(domain)
}

// targetOutputDir returns the output directory for one target. With several
// targets each one writes into its own subdirectory.
func targetOutputDir(outputDir, domain string, multi bool) string {
	if !multi || outputDir == "" || domain == "" {
		return outputDir
	}
	return filepath.Join(outputDir, domainSlug(domain))
}

// targetReportPaths applies targetReportPath to every requested report.
func targetReportPaths(reportFiles []string, domain string, multi bool) []string {
	paths := make([]string, 0, len(reportFiles))
	for _, f := range reportFiles {
		paths = append(paths, targetReportPath(f, domain, multi))
	}
	return paths
}

// targetReportPath returns the explicit report path for one target, or ""
// when the name is derived. With several targets the domain is inserted
// before the extension so runs do not overwrite each other's report.
func targetReportPath(reportFile, domain string, multi bool) string {
	if reportFile == "" || !multi || domain == "" {
		return reportFile
	}
	ext := filepath.Ext(reportFile)
	return strings.TrimSuffix(reportFile, ext) + "_" + domainSlug(domain) + ext
}

// crawlExitError maps finished runs to the command's error.
//
// The command succeeds only when every run crawled at least one page and
// recorded no errors:
//  1. A run-level error (bad start URL, browser unavailable, interrupt) or
//     zero pages crawled gives ErrCrawlFailed
//  2. Any recorded page or PDF error gives ErrCrawlDegraded
func crawlExitError(runs []*model.CrawlRun) error {
	var degraded []string
	for _, run := range runs {
		if run == nil {
			continue
		}
		if run.Error != nil {
			return fmt.Errorf("%w: %s: %w", ErrCrawlFailed, run.Target, run.Error)
		}
		if run.Results == nil || run.Results.PagesCrawled == 0 {
			return fmt.Errorf("%w: %s: no pages were crawled", ErrCrawlFailed, run.Target)
		}
		if run.Results.HasErrors() {
			degraded = append(degraded,
				fmt.Sprintf("%s (%d)", run.Target, len(run.Results.Errors)))
		}
	}

	if len(degraded) > 0 {
		return fmt.Errorf("%w: %s", ErrCrawlDegraded, strings.Join(degraded, ", "))
	}
	return nil
}
