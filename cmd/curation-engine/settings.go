// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/curation-engine/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage stored settings",
	Long: `Read and write the persistent settings: the Scopus API key, the contact
email sent to Unpaywall and OpenAlex, and the keyword exception list.

Known keys: ` + strings.Join(settings.Known, ", "),
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			v, ok, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not set", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting (an empty value clears it)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *settings.Store) error {
			if err := s.Set(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", args[0])
			return nil
		})
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored settings (secrets masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(s *settings.Store) error {
			all, err := s.All(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", s.Path())
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				v := all[k]
				switch k {
				case settings.KeyScopusAPIKey:
					v = mask(v)
				case settings.KeyExceptionList:
					v = fmt.Sprintf("(%d lines)", strings.Count(v, "\n")+1)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", k, v)
			}
			return nil
		})
	},
}

var settingsExceptionsCmd = &cobra.Command{
	Use:   "exceptions",
	Short: "Show or import the keyword exception list",
	Long: `Without flags, print the current exception list. With --import, replace it
with the contents of a file; with --reset, restore the built-in list.

Each line is either a term kept as written (e.g. "DNA") or a mapping
"from -> to" (e.g. "CO2 -> CO₂"). Lines starting with # are comments.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		file, _ := cmd.Flags().GetString("import")
		reset, _ := cmd.Flags().GetBool("reset")
		ctx := cmd.Context()
		return withStore(func(s *settings.Store) error {
			switch {
			case reset:
				if err := s.SetExceptionList(ctx, ""); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Restored the built-in exception list")
				return nil
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("reading %s: %w", file, err)
				}
				if err := s.SetExceptionList(ctx, string(data)); err != nil {
					return err
				}
				exc, err := s.Exceptions(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Imported %d exceptions\n", len(exc))
				return nil
			}
			text, err := s.ExceptionList(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			if !strings.HasSuffix(text, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		})
	},
}

func init() {
	settingsExceptionsCmd.Flags().String("import", "", "replace the list with the contents of a file")
	settingsExceptionsCmd.Flags().Bool("reset", false, "restore the built-in list")
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsListCmd, settingsExceptionsCmd)
	rootCmd.AddCommand(settingsCmd)
}

// withStore opens the settings store for the duration of fn.
func withStore(fn func(*settings.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := settings.Open(cfg.Settings)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// mask hides all but the last four characters of a secret.
func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
