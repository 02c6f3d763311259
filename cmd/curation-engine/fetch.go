// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <doi>",
	Short: "Reconcile a DOI across the registries",
	Long: `Query Unpaywall, Crossref, OpenAlex, Scopus and DOAJ for a DOI and print
the reconciled record with its assessment and conflicts.

The DOI may be given bare (10.1000/xyz), with a "doi:" label, or as a
https://doi.org/ link.

Examples:
  curation-engine fetch 10.1038/s41586-020-2649-2
  curation-engine fetch https://doi.org/10.1016/j.cell.2020.01.001 --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringP("format", "f", "json", "output format (json, yaml)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unknown format %q (use json or yaml)", format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := newEngine(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	rec, err := eng.reconciler.Reconcile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	for _, c := range rec.Assessment.Conflicts {
		logger.Warn("conflict", "kind", c.Kind, "detail", c.Message)
	}
	return printValue(cmd.OutOrStdout(), rec, format)
}

// printValue writes v as indented JSON or as YAML.
func printValue(w io.Writer, v any, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}
