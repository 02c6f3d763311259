// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"

	"github.com/pdiddy/curation-engine/internal/analyzer"
	"github.com/pdiddy/curation-engine/internal/browser"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url|file>",
	Short: "Count pages and extract keywords from a PDF",
	Long: `Send a PDF to the analysis service and print its page count and keywords.

A local file is uploaded directly. A URL runs the acquisition chain: an
open browser tab showing the PDF, then a direct download, then delegation
of the URL to the service. With --browser the chain may also open a new
tab in the connected browser.

Keywords are normalized with the stored exception list (see
"curation-engine settings exceptions").

Examples:
  curation-engine analyze paper.pdf
  curation-engine analyze https://example.org/article.pdf --browser`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Bool("browser", false, "use the configured browser (tabs, cookies, opening a new tab)")
	analyzeCmd.Flags().Bool("raw", false, "print the service response unmodified")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	useBrowser, _ := cmd.Flags().GetBool("browser")
	var host *browser.Host
	if useBrowser {
		host, err = connectBrowser(ctx, cfg.Browser)
		if err != nil {
			return err
		}
		if host == nil {
			return fmt.Errorf("--browser needs browser.control_url or browser.launch")
		}
		defer host.Close()
	}

	eng, err := newEngine(ctx, cfg, host)
	if err != nil {
		return err
	}
	defer eng.Close()

	input := args[0]
	var raw json.RawMessage
	switch {
	case strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://"):
		if host != nil {
			raw, err = eng.chain.AnalyzeViaTab(ctx, input)
		} else {
			raw, err = eng.chain.AnalyzeURL(ctx, input)
		}
	default:
		data, rerr := os.ReadFile(input)
		if rerr != nil {
			return fmt.Errorf("reading %s: %w", input, rerr)
		}
		raw, err = eng.analyzer.AnalyzeBytes(ctx, data, filepath.Base(input))
	}
	if err != nil {
		return err
	}

	if rawOut, _ := cmd.Flags().GetBool("raw"); rawOut {
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	}

	res, err := analyzer.Decode(raw)
	if err != nil {
		return err
	}
	exc, err := eng.store.Exceptions(ctx)
	if err != nil {
		return err
	}
	if res.Status != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Status:   %s\n", res.Status)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pages:    %d\n", res.PageCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Keywords: %s\n", strings.Join(exc.NormalizeAll(res.Keywords), "; "))
	return nil
}
