package report

import (
	"io"

	"github.com/nao1215/crawlmd/internal/model"
)

// Writer defines the interface for report output.
// Implementations write crawl runs in various formats.
//
// Design decision: We use an interface so the same crawl run can be sent
// to a CSV file, a Markdown document, or the terminal with the same API.
type Writer interface {
	// Write outputs the crawl run to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.CrawlRun) (int, error)
}

// MultiWriter writes to multiple Writers in order.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface writes runs,
// not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(run *model.CrawlRun) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// countingWriter counts the bytes that pass through it.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
