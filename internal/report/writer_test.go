package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/crawlmd/internal/model"
)

// createTestRun creates a finished run with one entry of every kind.
func createTestRun() *model.CrawlRun {
	run := model.NewCrawlRun("https://example.com")
	run.StartURL = "https://example.com/"
	run.Domain = "example.com"
	run.Fetcher = "static"
	run.OutputDir = "out"
	run.StartedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	log := model.NewCrawlLog()
	log.Append(model.CrawlLogEntry{
		URL:           "https://example.com/",
		Type:          model.EntryTypePage,
		Status:        model.StatusCrawled,
		Title:         "Home, sweet home",
		PDFLinksCount: 1,
		SavedAs:       "out/markdown/index.md",
	})
	log.Append(model.CrawlLogEntry{
		URL:     "https://example.com/a.pdf",
		Type:    model.EntryTypePDF,
		Status:  model.StatusDownloaded,
		FoundOn: "https://example.com/",
		SavedAs: "out/pdfs/a.pdf",
		SizeKB:  4,
	})
	log.Append(model.CrawlLogEntry{
		URL:    "https://example.com/missing",
		Type:   model.EntryTypePage,
		Status: model.StatusError,
		Depth:  1,
		Error:  "http-status error fetching https://example.com/missing: 404 Not Found",
	})
	run.Finish(log, run.StartedAt.Add(1500*time.Millisecond))

	return run
}

// errWriter fails every write.
type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

// TestCSVWriter tests the CSV report rows.
func TestCSVWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and one row per entry", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewCSVWriter(&buf).Write(createTestRun())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}

		records, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(records) != 4 {
			t.Fatalf("expected 4 records, got %d", len(records))
		}

		if strings.Join(records[0], ",") != "url,type,status,depth,title,pdf_links_count,found_on,saved_as,size_kb,error" {
			t.Errorf("unexpected header %v", records[0])
		}

		page := records[1]
		if page[4] != "Home, sweet home" {
			t.Errorf("expected quoted title to round trip, got %q", page[4])
		}
		if page[5] != "1" || page[8] != "" {
			t.Errorf("unexpected page row %v", page)
		}

		pdf := records[2]
		if pdf[1] != "pdf" || pdf[2] != "downloaded" || pdf[8] != "4.0" {
			t.Errorf("unexpected pdf row %v", pdf)
		}
		if pdf[6] != "https://example.com/" {
			t.Errorf("expected found_on to be the page, got %q", pdf[6])
		}

		failed := records[3]
		if failed[2] != "error" || failed[3] != "1" || !strings.Contains(failed[9], "404") {
			t.Errorf("unexpected error row %v", failed)
		}
	})

	t.Run("empty run writes only the header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewCSVWriter(&buf).Write(model.NewCrawlRun("x")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Errorf("expected a single line, got %q", buf.String())
		}
	})

	t.Run("size is blank unless downloaded", func(t *testing.T) {
		t.Parallel()

		rec := csvRecord(model.CrawlLogEntry{
			Type:   model.EntryTypePDF,
			Status: model.StatusFound,
			SizeKB: 12.34,
		})
		if rec[8] != "" {
			t.Errorf("expected empty size for found pdf, got %q", rec[8])
		}
	})

	t.Run("propagates write errors", func(t *testing.T) {
		t.Parallel()

		if _, err := NewCSVWriter(errWriter{}).Write(createTestRun()); err == nil {
			t.Error("expected error from failing writer")
		}
	})
}

// TestJSONWriter tests the JSON output.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got model.CrawlRun
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if got.Domain != "example.com" {
			t.Errorf("expected domain example.com, got %s", got.Domain)
		}
		if len(got.Entries) != 3 {
			t.Errorf("expected 3 entries, got %d", len(got.Entries))
		}
		if got.Results == nil || got.Results.PDFsDownloaded != 1 {
			t.Errorf("expected results with 1 download, got %+v", got.Results)
		}
	})

	t.Run("compact by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected compact single-line JSON")
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"target\"") {
			t.Errorf("expected two-space indentation, got %q", buf.String()[:40])
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent("", "\t")).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n\t\"target\"") {
			t.Error("expected tab indentation")
		}
	})
}

// TestMarkdownWriter tests the Markdown report.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		for _, want := range []string{
			"# Crawl Report",
			"## Summary",
			"## Entries",
			"## Errors",
			"`https://example.com/`",
			"Pages crawled",
			"```mermaid",
			"out/pdfs/a.pdf",
			"Completed with 1 error(s)",
			"crawlmd",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("empty run", func(t *testing.T) {
		t.Parallel()

		run := model.NewCrawlRun("https://example.com")
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "No URLs were processed.") {
			t.Error("expected empty entries message")
		}
		if strings.Contains(out, "## Errors") {
			t.Error("expected no errors section")
		}
		if strings.Contains(out, "```mermaid") {
			t.Error("expected no chart for empty run")
		}
	})

	t.Run("run error is shown", func(t *testing.T) {
		t.Parallel()

		run := createTestRun()
		run.SetError(errors.New("context canceled"))

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Error - context canceled") {
			t.Error("expected run error in status")
		}
	})
}

// TestCell tests table cell escaping.
func TestCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "-"},
		{name: "plain", input: "title", want: "title"},
		{name: "pipe", input: "a|b", want: `a\|b`},
		{name: "newline", input: "a\nb", want: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := cell(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestTruncateString tests rune-aware truncation.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"日本語のタイトルです", 6, "日本語..."},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestSummaryWriter tests the terminal summary banner.
func TestSummaryWriter(t *testing.T) {
	t.Parallel()

	t.Run("full run", func(t *testing.T) {
		t.Parallel()

		run := createTestRun()
		run.ReportPath = "out/report.csv"

		var buf bytes.Buffer
		n, err := NewSummaryWriter(&buf).Write(run)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}

		out := buf.String()
		for _, want := range []string{
			"Summary",
			"Pages found:",
			"PDFs downloaded: 1",
			"MD files saved:  1",
			"Errors:",
			"out/report.csv",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got %q", want, out)
			}
		}
	})

	t.Run("dry run hides write counters", func(t *testing.T) {
		t.Parallel()

		run := model.NewCrawlRun("https://example.com")
		run.Mode = model.ModeDryRun
		run.OutputDir = "out"

		rows := SummaryRows(run)
		for _, r := range rows {
			switch r[0] {
			case "PDFs downloaded", "MD files saved", "Output", "Errors":
				t.Errorf("unexpected row %q in dry run", r[0])
			}
		}
		if len(rows) != 3 {
			t.Errorf("expected 3 rows, got %d", len(rows))
		}
	})
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all", func(t *testing.T) {
		t.Parallel()

		var csvBuf, jsonBuf bytes.Buffer
		mw := NewMultiWriter(NewCSVWriter(&csvBuf), NewJSONWriter(&jsonBuf))

		n, err := mw.Write(createTestRun())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != csvBuf.Len()+jsonBuf.Len() {
			t.Errorf("expected total %d, got %d", csvBuf.Len()+jsonBuf.Len(), n)
		}
		if csvBuf.Len() == 0 || jsonBuf.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		mw := NewMultiWriter(NewJSONWriter(errWriter{}), NewCSVWriter(&after))
		if _, err := mw.Write(createTestRun()); err == nil {
			t.Error("expected error")
		}
		if after.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}

// TestFormatFromPath tests extension based format selection.
func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want Format
	}{
		{"report.csv", FormatCSV},
		{"report.CSV", FormatCSV},
		{"report.md", FormatMarkdown},
		{"dir/report.markdown", FormatMarkdown},
		{"report.json", FormatJSON},
		{"report.txt", FormatCSV},
		{"report", FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := FormatFromPath(tt.path); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestDerivePath tests automatic report naming.
func TestDerivePath(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 4, 15, 16, 17, 0, time.UTC)

	tests := []struct {
		name      string
		outputDir string
		dryRun    bool
		want      string
	}{
		{
			name:      "output dir",
			outputDir: "out",
			want:      filepath.Join("out", "crawl_report_docs_example_com_20260304_151617.csv"),
		},
		{
			name:      "dry run uses working directory",
			outputDir: "out",
			dryRun:    true,
			want:      "crawl_report_docs_example_com_20260304_151617.csv",
		},
		{
			name: "no output dir",
			want: "crawl_report_docs_example_com_20260304_151617.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DerivePath(tt.outputDir, "docs.example.com", now, tt.dryRun); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestWriteFile tests writing reports to disk.
func TestWriteFile(t *testing.T) {
	t.Parallel()

	t.Run("csv with parent dirs", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "report.csv")
		if err := WriteFile(path, createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("report not written: %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("expected mode 0600, got %o", info.Mode().Perm())
		}

		data, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), "url,type,status") {
			t.Errorf("expected CSV header, got %q", string(data))
		}
	})

	t.Run("json by extension", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "report.json")
		if err := WriteFile(path, createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatal(err)
		}
		if !json.Valid(data) {
			t.Error("expected valid JSON")
		}
	})
}

// TestWriteFiles tests writing one run in several formats.
func TestWriteFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "report.csv"),
		filepath.Join(dir, "md", "report.md"),
		filepath.Join(dir, "report.json"),
	}
	if err := WriteFiles(paths, createTestRun()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []func(string) bool{
		func(s string) bool { return strings.HasPrefix(s, "url,type,status") },
		func(s string) bool { return strings.Contains(s, "# Crawl Report") },
		func(s string) bool { return json.Valid([]byte(s)) },
	}
	for i, path := range paths {
		data, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatalf("report %s not written: %v", path, err)
		}
		if !checks[i](string(data)) {
			t.Errorf("unexpected content in %s: %q", path, string(data))
		}
	}
}
