package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/crawlmd/internal/fetcher"
	"github.com/nao1215/crawlmd/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "crawlmd"

	// DefaultOutputDir is where pages and PDFs are written when -o is not given.
	DefaultOutputDir = "./crawled"

	// DefaultMaxDepth of -1 means the crawl depth is unlimited.
	DefaultMaxDepth = -1

	// DefaultMaxPages of 0 means the number of crawled pages is unlimited.
	DefaultMaxPages = 0

	// DefaultDelay is the politeness delay before every request.
	// 1 second keeps a single crawler well below what most sites tolerate.
	DefaultDelay = 1 * time.Second

	// DefaultTorStartupTimeout is how long --tor waits for Tor to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultBatchSize of 1 crawls targets one after another.
	DefaultBatchSize = 1

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = fetcher.DefaultTimeout

	// DefaultSettleDelay is how long the rendered backend waits after
	// navigation before capturing the DOM.
	DefaultSettleDelay = fetcher.DefaultSettleDelay

	// DefaultUserAgent identifies crawlmd in HTTP requests.
	DefaultUserAgent = fetcher.DefaultUserAgent

	// DefaultMaxBodySize limits the page body read into memory.
	DefaultMaxBodySize = fetcher.DefaultMaxBodySize
)

// Config holds all configuration options for a crawlmd invocation.
// It is populated from CLI flags and the optional .crawlmd file and passed
// through the application rather than kept as global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., FetchConfig, ReportConfig). The number of options is manageable,
// and per-site overrides live in SiteConfigs.
type Config struct {
	// Targets is the list of start URLs. Each target is crawled independently.
	Targets []string

	// OutputDir is the root directory for pdfs/ and markdown/.
	OutputDir string

	// MaxDepth is the maximum link depth. Negative means unlimited.
	MaxDepth int

	// MaxPages is the maximum number of pages counted per target.
	// Zero or negative means unlimited.
	MaxPages int

	// Delay is slept before every page request and every PDF download.
	Delay time.Duration

	// DryRun discovers and reports URLs without writing pages or PDFs.
	DryRun bool

	// PDFsOnly downloads PDFs but skips Markdown conversion.
	PDFsOnly bool

	// Quiet suppresses progress lines on stdout.
	Quiet bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ReportFiles are explicit report paths. Each format follows its
	// extension. When empty, a timestamped CSV name is derived per target.
	ReportFiles []string

	// NoReport disables report writing entirely.
	NoReport bool

	// FetchMode selects the static HTTP or the rendered headless-browser backend.
	FetchMode fetcher.Mode

	// SettleDelay is the rendered backend's post-navigation wait.
	SettleDelay time.Duration

	// BrowserPath overrides the Chrome or Chromium executable.
	BrowserPath string

	// Timeout is the per-request timeout for pages and PDFs.
	Timeout time.Duration

	// Proxy is an optional http, https, socks5 or socks5h proxy URL.
	Proxy string

	// Tor starts an embedded Tor daemon and uses it as the proxy.
	Tor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum page body size in bytes.
	MaxBodySize int64

	// BatchSize is the number of targets crawled concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the standard locations are searched.
	ConfigFilePath string

	// SiteConfigs holds defaults and per-domain settings from the config file.
	SiteConfigs *File

	// SaveHistory stores every finished run in the history database.
	SaveHistory bool

	// DBDir is the directory holding the history database.
	DBDir string
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because several defaults are non-zero (depth -1, 1s delay).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		OutputDir:   DefaultOutputDir,
		MaxDepth:    DefaultMaxDepth,
		MaxPages:    DefaultMaxPages,
		Delay:       DefaultDelay,
		FetchMode:   fetcher.ModeStatic,
		SettleDelay: DefaultSettleDelay,
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		BatchSize:   DefaultBatchSize,
		DBDir:       XDGDataDir(),

		TorStartupTimeout: DefaultTorStartupTimeout,
	}
}

// Mode returns the crawl mode implied by the dry-run and pdfs-only flags.
func (c *Config) Mode() model.Mode {
	switch {
	case c.DryRun:
		return model.ModeDryRun
	case c.PDFsOnly:
		return model.ModePDFsOnly
	default:
		return model.ModeFull
	}
}

// XDGDataDir returns the XDG data directory for crawlmd.
// On Linux: ~/.local/share/crawlmd
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for crawlmd.
// On Linux: ~/.config/crawlmd
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
//
// Design decision: We validate once after flag parsing, before any
// network activity, so a bad flag never costs a partial crawl.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Delay < 0 {
		return ErrInvalidDelay
	}

	if c.SettleDelay < 0 {
		return ErrInvalidSettleDelay
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.DryRun && c.PDFsOnly {
		return ErrConflictingModes
	}

	switch c.FetchMode {
	case "", fetcher.ModeStatic, fetcher.ModeRendered:
	default:
		return ErrInvalidFetchMode
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.NoReport && len(c.ReportFiles) > 0 {
		return ErrConflictingReportFlags
	}

	if c.Tor && c.Proxy != "" {
		return ErrConflictingProxy
	}

	if c.Tor && c.TorStartupTimeout <= 0 {
		return ErrInvalidTorTimeout
	}

	return nil
}

// Settings are the effective crawl options for one target domain.
type Settings struct {
	Headers        map[string]string
	Cookie         string
	UserAgent      string
	MaxDepth       int
	MaxPages       int
	Delay          time.Duration
	IgnorePatterns []string
	FollowPatterns []string
}

// SettingsFor resolves the options for a domain. Values from the config
// file's defaults section override the global flags, and values from the
// matching site entry override both.
func (c *Config) SettingsFor(domain string) Settings {
	s := Settings{
		UserAgent: c.UserAgent,
		MaxDepth:  c.MaxDepth,
		MaxPages:  c.MaxPages,
		Delay:     c.Delay,
	}

	if c.SiteConfigs == nil {
		return s
	}

	site := c.SiteConfigs.GetSiteConfig(domain)

	s.Headers = site.Headers
	s.Cookie = site.Cookie
	s.IgnorePatterns = site.IgnorePatterns
	s.FollowPatterns = site.FollowPatterns
	if site.UserAgent != "" {
		s.UserAgent = site.UserAgent
	}
	if site.MaxDepth != nil {
		s.MaxDepth = *site.MaxDepth
	}
	if site.MaxPages != nil {
		s.MaxPages = *site.MaxPages
	}
	if site.Delay != nil {
		s.Delay = *site.Delay
	}

	return s
}
