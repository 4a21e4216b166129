package main

import (
	"fmt"
	"os"

	"github.com/nao1215/crawlmd/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for crawlmd.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawlmd",
		Short: "Crawl a website into Markdown files and PDFs",
		Long: `crawlmd crawls a website breadth-first, staying on the start URL's domain.
Every HTML page is converted to Markdown, every linked PDF is downloaded,
and each URL visited is recorded in a CSV, Markdown or JSON report.

Pages are fetched over plain HTTP by default.
Use --render to load pages in a headless Chrome for JavaScript-heavy sites.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", log.FormatText, "Log format on stderr: text or json")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
