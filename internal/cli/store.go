package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStoreCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and maintain the sidecar store",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show sidecar and thread statistics",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			sum, err := a.svc.Summarize(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading store: %w", err)
			}
			return a.out.WriteSummary(a.stdout, sum)
		},
	}

	var olderThan time.Duration
	clean := &cobra.Command{
		Use:   "clean",
		Short: "Remove temporary files left by interrupted writes",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			n, err := a.svc.CleanTemps(olderThan)
			if err != nil {
				return fmt.Errorf("cleaning store: %w", err)
			}
			fmt.Fprintf(a.stdout, "Removed %d temporary file(s).\n", n)
			return nil
		},
	}
	clean.Flags().DurationVar(&olderThan, "older-than", time.Minute, "Only remove files at least this old")

	cmd.AddCommand(show, clean)
	return cmd
}
