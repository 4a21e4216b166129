package model

import (
	"time"
)

// Mode selects which side effects a crawl run performs.
type Mode string

const (
	// ModeFull fetches pages, downloads PDFs and writes Markdown.
	ModeFull Mode = "full"

	// ModeDryRun only discovers pages and PDFs. Nothing but the report is written.
	ModeDryRun Mode = "dry-run"

	// ModePDFsOnly downloads PDFs but never writes Markdown.
	ModePDFsOnly Mode = "pdfs-only"
)

// String returns the human-readable mode name used in progress output.
func (m Mode) String() string {
	switch m {
	case ModeDryRun:
		return "dry run"
	case ModePDFsOnly:
		return "pdfs only"
	default:
		return "full crawl"
	}
}

// WritesPDFs reports whether the mode downloads PDFs.
func (m Mode) WritesPDFs() bool {
	return m != ModeDryRun
}

// WritesMarkdown reports whether the mode saves Markdown files.
func (m Mode) WritesMarkdown() bool {
	return m == ModeFull || m == ""
}

// CrawlRun is the complete record of one crawl of one target.
// It is created before the crawl, filled in by the crawler, and then
// consumed by report writers and the history database.
type CrawlRun struct {
	// Target is the start URL as given by the user.
	Target string `json:"target"`

	// StartURL is the start URL after scheme defaulting and normalization.
	StartURL string `json:"start_url"`

	// Domain is the host (with port, if any) the crawl is confined to.
	Domain string `json:"domain"`

	// Mode is the crawl mode.
	Mode Mode `json:"mode"`

	// Fetcher names the fetch backend used (static or rendered).
	Fetcher string `json:"fetcher"`

	// OutputDir is the directory PDFs and Markdown are written under.
	// Empty for dry runs.
	OutputDir string `json:"output_dir,omitempty"`

	// StartedAt is when the crawl loop started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl loop ended.
	FinishedAt time.Time `json:"finished_at"`

	// Entries is the crawl log in recording order.
	Entries []CrawlLogEntry `json:"entries"`

	// Results is the summary derived from Entries.
	Results *CrawlResults `json:"results"`

	// ReportPath is where the report was written, if it was. When several
	// reports were requested it is the first of them.
	ReportPath string `json:"report_path,omitempty"`

	// Error is set when the run could not start or was interrupted.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`
}

// NewCrawlRun creates a run record for the given target.
func NewCrawlRun(target string) *CrawlRun {
	return &CrawlRun{
		Target:  target,
		Mode:    ModeFull,
		Entries: make([]CrawlLogEntry, 0),
		Results: NewCrawlResults(nil),
	}
}

// Finish stores the log in the run and recomputes the summary.
func (r *CrawlRun) Finish(log *CrawlLog, at time.Time) {
	r.Entries = log.Entries()
	r.Results = NewCrawlResults(r.Entries)
	r.FinishedAt = at
}

// SetError records a run-level failure.
func (r *CrawlRun) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Duration returns how long the crawl loop ran.
func (r *CrawlRun) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
