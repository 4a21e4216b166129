package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/crawlmd/internal/model"
)

// Format identifies a report file format.
type Format string

const (
	// FormatCSV is the default one-row-per-entry report.
	FormatCSV Format = "csv"

	// FormatMarkdown is a tabular Markdown report.
	FormatMarkdown Format = "markdown"

	// FormatJSON is the full run serialized as JSON.
	FormatJSON Format = "json"
)

// reportTimeLayout is the timestamp layout used in derived report names.
const reportTimeLayout = "20060102_150405"

// FormatFromPath picks the report format from the file extension.
// Unknown extensions fall back to CSV.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".json":
		return FormatJSON
	default:
		return FormatCSV
	}
}

// NewWriterForFormat returns the report Writer for the given format.
func NewWriterForFormat(format Format, output io.Writer) Writer {
	switch format {
	case FormatMarkdown:
		return NewMarkdownWriter(output)
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint())
	default:
		return NewCSVWriter(output)
	}
}

// DerivePath returns the automatic report path for a run:
// crawl_report_<domain>_<YYYYMMDD_HHMMSS>.csv, with dots in the domain
// replaced by underscores. The file goes into outputDir, or into the
// working directory when outputDir is empty or the run is a dry run.
func DerivePath(outputDir, domain string, now time.Time, dryRun bool) string {
	name := fmt.Sprintf("crawl_report_%s_%s.csv",
		strings.ReplaceAll(domain, ".", "_"),
		now.Format(reportTimeLayout),
	)
	if dryRun || outputDir == "" {
		return name
	}
	return filepath.Join(outputDir, name)
}

// WriteFile renders the run in the format implied by path and writes it,
// creating parent directories as needed.
func WriteFile(path string, run *model.CrawlRun) error {
	return WriteFiles([]string{path}, run)
}

// WriteFiles renders the run once per path, each in the format implied by
// its extension, and writes the files with 0600 permissions. Nothing is
// written unless every format renders.
func WriteFiles(paths []string, run *model.CrawlRun) error {
	bufs := make([]*bytes.Buffer, len(paths))
	writers := make([]Writer, len(paths))
	for i, path := range paths {
		bufs[i] = &bytes.Buffer{}
		writers[i] = NewWriterForFormat(FormatFromPath(path), bufs[i])
	}

	if _, err := NewMultiWriter(writers...).Write(run); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	for i, path := range paths {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		if err := os.WriteFile(path, bufs[i].Bytes(), 0o600); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}
