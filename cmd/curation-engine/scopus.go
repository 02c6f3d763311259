// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import "github.com/spf13/cobra"

var scopusCmd = &cobra.Command{
	Use:   "scopus <doi>",
	Short: "Check the corresponding-author affiliation in Scopus",
	Long: `Look up a DOI in Scopus and report whether its corresponding author is
affiliated with a member institution. Requires a Scopus API key, stored with
"curation-engine settings set scopus-api-key <key>" or placed in
.secrets/scopus-api-key.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		eng, err := newEngine(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer eng.Close()

		rec, err := eng.reconciler.CheckScopus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printValue(cmd.OutOrStdout(), rec, format)
	},
}

func init() {
	scopusCmd.Flags().StringP("format", "f", "json", "output format (json, yaml)")
	rootCmd.AddCommand(scopusCmd)
}
