package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/crawlmd/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs crawl reports in Markdown format.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation rather than string concatenation, so tables and alerts stay
// well-formed regardless of entry content.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run as a Markdown document with a summary table
// and one row per log entry.
func (w *MarkdownWriter) Write(run *model.CrawlRun) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeEntries(md, run)
	w.writeErrors(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report title and run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.CrawlRun) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Start URL", "`" + run.StartURL + "`"},
		{"Domain", run.Domain},
		{"Mode", run.Mode.String()},
	}
	if run.Fetcher != "" {
		rows = append(rows, []string{"Fetcher", run.Fetcher})
	}
	if !run.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	if d := run.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(time.Millisecond).String()})
	}
	rows = append(rows, []string{"Status", statusText(run)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusText returns a one-line description of how the run ended.
func statusText(run *model.CrawlRun) string {
	switch {
	case run.ErrorMessage != "":
		return "❌ Error - " + run.ErrorMessage
	case run.Results != nil && run.Results.HasErrors():
		return fmt.Sprintf("⚠️ Completed with %d error(s)", len(run.Results.Errors))
	default:
		return "✅ Complete"
	}
}

// writeSummary writes the counters table and a status chart.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *model.CrawlRun) {
	res := run.Results
	if res == nil {
		res = model.NewCrawlResults(run.Entries)
	}

	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Pages found", strconv.Itoa(res.PagesFound)},
			{"Pages crawled", strconv.Itoa(res.PagesCrawled)},
			{"PDFs found", strconv.Itoa(res.PDFsFound)},
			{"PDFs downloaded", strconv.Itoa(res.PDFsDownloaded)},
			{"Markdown files", strconv.Itoa(len(res.MarkdownFiles))},
			{"Errors", strconv.Itoa(len(res.Errors))},
		},
	})
	md.PlainText("")

	if len(run.Entries) > 0 {
		w.writeStatusChart(md, run.Entries)
	}

	if res.HasErrors() {
		md.Warningf("%d URL(s) could not be fetched or saved.", len(res.Errors))
	} else {
		md.Tip("All URLs were processed without errors.")
	}
	md.PlainText("")
}

// writeStatusChart writes a mermaid pie chart of entry statuses.
func (w *MarkdownWriter) writeStatusChart(md *markdown.Markdown, entries []model.CrawlLogEntry) {
	counts := make(map[model.EntryStatus]uint64)
	for _, e := range entries {
		counts[e.Status]++
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Entry Status"),
		piechart.WithShowData(true),
	)
	for _, s := range []model.EntryStatus{
		model.StatusCrawled,
		model.StatusDownloaded,
		model.StatusFound,
		model.StatusError,
	} {
		if counts[s] > 0 {
			chart.LabelAndIntValue(string(s), counts[s])
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeEntries writes one table row per log entry in crawl order.
func (w *MarkdownWriter) writeEntries(md *markdown.Markdown, run *model.CrawlRun) {
	md.H2("Entries")
	md.PlainText("")

	if len(run.Entries) == 0 {
		md.PlainText("No URLs were processed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(run.Entries))
	for i, e := range run.Entries {
		rec := csvRecord(e)
		rows[i] = []string{
			cell(truncateString(e.URL, 80)),
			rec[1],
			rec[2],
			rec[3],
			cell(truncateString(e.Title, 50)),
			rec[5],
			cell(truncateString(e.FoundOn, 60)),
			cell(e.SavedAs),
			cell(rec[8]),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Type", "Status", "Depth", "Title", "PDF Links", "Found On", "Saved As", "Size (KB)"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeErrors lists every failed URL with its message.
func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, run *model.CrawlRun) {
	if run.Results == nil || !run.Results.HasErrors() {
		return
	}

	md.H2("Errors")
	md.PlainText("")

	items := make([]string, len(run.Results.Errors))
	for i, e := range run.Results.Errors {
		items[i] = "`" + e.URL + "`: " + e.Message
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [crawlmd](https://github.com/nao1215/crawlmd)*")
}

// cell makes a value safe for a table cell. Empty values become "-".
func cell(s string) string {
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
