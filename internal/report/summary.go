package report

import (
	"io"
	"strconv"

	"github.com/nao1215/crawlmd/internal/log"
	"github.com/nao1215/crawlmd/internal/model"
)

// SummaryWriter outputs the end-of-run summary banner for terminal display.
//
// The counters shown depend on the mode: a dry run never downloads or
// saves, so those rows are left out, and the error row only appears when
// something failed.
type SummaryWriter struct {
	baseWriter
}

// NewSummaryWriter creates a SummaryWriter that outputs to the given writer.
func NewSummaryWriter(output io.Writer) *SummaryWriter {
	return &SummaryWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary banner for the run.
func (w *SummaryWriter) Write(run *model.CrawlRun) (int, error) {
	cw := &countingWriter{w: w.output}
	log.NewProgress(cw, false).Banner("Summary", SummaryRows(run))
	return cw.n, nil
}

// SummaryRows returns the label/value rows of the summary banner.
func SummaryRows(run *model.CrawlRun) [][2]string {
	res := run.Results
	if res == nil {
		res = model.NewCrawlResults(run.Entries)
	}

	rows := [][2]string{
		{"Pages found", strconv.Itoa(res.PagesFound)},
		{"Pages crawled", strconv.Itoa(res.PagesCrawled)},
		{"PDFs found", strconv.Itoa(res.PDFsFound)},
	}
	if run.Mode != model.ModeDryRun {
		rows = append(rows,
			[2]string{"PDFs downloaded", strconv.Itoa(res.PDFsDownloaded)},
			[2]string{"MD files saved", strconv.Itoa(len(res.MarkdownFiles))},
		)
	}
	if res.HasErrors() {
		rows = append(rows, [2]string{"Errors", strconv.Itoa(len(res.Errors))})
	}
	if run.Mode != model.ModeDryRun && run.OutputDir != "" {
		rows = append(rows, [2]string{"Output", run.OutputDir})
	}
	if run.ReportPath != "" {
		rows = append(rows, [2]string{"Report", run.ReportPath})
	}
	return rows
}
