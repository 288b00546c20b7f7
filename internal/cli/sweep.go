package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewSweepCommand creates the sweep command with one subcommand per sweep.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a scheduled sweep once",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "archive",
		Short: "Archive every activity whose date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Archiver.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts.Format, res,
				fmt.Sprintf("matched=%d archived=%d", res.Matched, res.Archived))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete chat data of deleted or expired activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Cleaner.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts.Format, res,
				fmt.Sprintf("scanned=%d deleted=%d kept=%d failed=%d indexes_cleared=%d",
					res.Scanned, res.Deleted, res.Kept, res.Failed, res.IndexesCleared))
		},
	})

	return cmd
}

func printResult(w io.Writer, format string, v any, text string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
