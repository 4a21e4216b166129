package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/crawlmd/internal/model"
)

// JSONWriter outputs crawl runs in JSON format.
// This format is designed for integration with other tools and automation.
type JSONWriter struct {
	baseWriter

	// indent controls whether output is pretty-printed.
	indent bool

	// indentPrefix is the prefix for each line when indenting.
	indentPrefix string

	// indentString is the string used for each indentation level.
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
// By default, output is compact JSON without indentation.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full run, including every log entry, as JSON.
func (w *JSONWriter) Write(run *model.CrawlRun) (int, error) {
	var (
		data []byte
		err  error
	)

	if w.indent {
		data, err = json.MarshalIndent(run, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(run)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
