package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export [file]",
	Short:   "Write a JSONL backup of all models and documents",
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || args[0] == "-" {
			return httpClient.Export(cmd.Context(), cmd.OutOrStdout())
		}

		tmp := args[0] + ".tmp"
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		if err := httpClient.Export(cmd.Context(), f); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("exporting: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(tmp)
			return err
		}
		if err := os.Rename(tmp, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file|->",
	Short:   "Restore a JSONL backup",
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		stats, err := httpClient.Import(cmd.Context(), r)
		if err != nil {
			return fmt.Errorf("importing: %w", err)
		}
		return render(cmd.OutOrStdout(), stats, func(w io.Writer) {
			fmt.Fprintf(w, "Imported %d models and %d documents (%d skipped)\n", stats.Models, stats.Documents, stats.Skipped)
			for _, p := range stats.Problems {
				fmt.Fprintf(w, "  %s\n", p)
			}
		})
	},
}
