package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/crawlmd/internal/model"
)

// csvHeader is the column order of the crawl report.
var csvHeader = []string{
	"url",
	"type",
	"status",
	"depth",
	"title",
	"pdf_links_count",
	"found_on",
	"saved_as",
	"size_kb",
	"error",
}

// CSVWriter outputs one row per crawl log entry.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the header row followed by every entry of the run.
func (w *CSVWriter) Write(run *model.CrawlRun) (int, error) {
	cw := &countingWriter{w: w.output}
	enc := csv.NewWriter(cw)

	if err := enc.Write(csvHeader); err != nil {
		return cw.n, err
	}
	for _, e := range run.Entries {
		if err := enc.Write(csvRecord(e)); err != nil {
			return cw.n, err
		}
	}

	enc.Flush()
	return cw.n, enc.Error()
}

// csvRecord converts an entry into a row matching csvHeader.
func csvRecord(e model.CrawlLogEntry) []string {
	size := ""
	if e.HasSize() {
		size = fmt.Sprintf("%.1f", e.SizeKB)
	}

	return []string{
		e.URL,
		string(e.Type),
		string(e.Status),
		strconv.Itoa(e.Depth),
		e.Title,
		strconv.Itoa(e.PDFLinksCount),
		e.FoundOn,
		e.SavedAs,
		size,
		e.Error,
	}
}
