package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nao1215/crawlmd/internal/config"
	"github.com/nao1215/crawlmd/internal/database"
	"github.com/nao1215/crawlmd/internal/model"
	"github.com/nao1215/crawlmd/internal/report"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs listed when --limit is not given.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [domain]",
		Short: "List past crawl runs",
		Long: `History lists crawl runs saved with 'crawlmd crawl --history'.

Runs are stored in the XDG data directory (~/.local/share/crawlmd/crawlmd.db).

Examples:
  # List the most recent runs
  crawlmd history

  # List runs for one domain
  crawlmd history example.com

  # Print the entries of run 12 as a Markdown report
  crawlmd history --show 12 --format markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 for all)")
	cmd.Flags().Int64("show", 0,
		"Print the entries of the run with this ID")
	cmd.Flags().StringP("format", "f", string(report.FormatCSV),
		"Output format for --show: csv, markdown or json")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	showID, err := cmd.Flags().GetInt64("show")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}

	f, err := parseFormat(format)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	dbDir := config.XDGDataDir()

	if _, err := os.Stat(database.Path(dbDir)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No crawl history found.")
		fmt.Fprintln(out, "\nUse 'crawlmd crawl --history <url>' to record runs.")
		return nil
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if showID > 0 {
		return showRun(ctx, out, db, showID, f)
	}

	var domain string
	if len(args) > 0 {
		domain = args[0]
	}
	return listHistory(ctx, out, db, domain, limit)
}

// parseFormat maps a --format value to a report format.
func parseFormat(s string) (report.Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return report.FormatCSV, nil
	case "md", "markdown":
		return report.FormatMarkdown, nil
	case "json":
		return report.FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (use csv, markdown or json)", s)
	}
}

// listHistory prints stored runs, newest first.
func listHistory(ctx context.Context, w io.Writer, db *database.HistoryDB, domain string, limit int) error {
	runs, err := db.ListRuns(ctx, domain, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		if domain != "" {
			fmt.Fprintf(w, "No crawl history found for %s\n", domain)
		} else {
			fmt.Fprintln(w, "No crawl history found.")
		}
		return nil
	}

	if domain != "" {
		fmt.Fprintf(w, "Crawl history for %s (%d runs):\n\n", domain, len(runs))
	} else {
		fmt.Fprintf(w, "Crawl history (%d runs):\n\n", len(runs))
	}
	fmt.Fprintf(w, "  %-6s  %-19s  %-10s  %6s  %5s  %6s  %s\n",
		"ID", "Started", "Mode", "Pages", "PDFs", "Errors", "Start URL")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 76))

	for _, r := range runs {
		startURL := r.StartURL
		if r.Error != "" {
			startURL += "  (" + r.Error + ")"
		}
		fmt.Fprintf(w, "  %-6d  %-19s  %-10s  %6d  %5d  %6d  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(r.Mode),
			r.PagesCrawled,
			r.PDFsFound,
			r.Errors,
			startURL,
		)
	}

	fmt.Fprintln(w, "\nUse 'crawlmd history --show <id>' to print the entries of a run.")
	return nil
}

// showRun prints one stored run as a report in the given format.
func showRun(ctx context.Context, w io.Writer, db *database.HistoryDB, id int64, format report.Format) error {
	summary, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}

	entries, err := db.GetEntries(ctx, id)
	if err != nil {
		return err
	}

	_, err = report.NewWriterForFormat(format, w).Write(runFromHistory(summary, entries))
	return err
}

// runFromHistory rebuilds a CrawlRun from its stored form so the report
// writers can render it.
func runFromHistory(s *database.RunSummary, entries []model.CrawlLogEntry) *model.CrawlRun {
	run := &model.CrawlRun{
		Target:       s.Target,
		StartURL:     s.StartURL,
		Domain:       s.Domain,
		Mode:         s.Mode,
		Fetcher:      s.Fetcher,
		OutputDir:    s.OutputDir,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		Entries:      entries,
		Results:      model.NewCrawlResults(entries),
		ReportPath:   s.ReportPath,
		ErrorMessage: s.Error,
	}
	if s.Error != "" {
		run.Error = errors.New(s.Error)
	}
	return run
}
