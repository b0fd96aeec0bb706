package main

import (
	"fmt"

	"github.com/silt-vcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newGcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove unreachable objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			result, err := r.GC()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Removed == 0 {
				fmt.Fprintln(out, "nothing to prune")
				return nil
			}
			fmt.Fprintf(out, "pruned %d of %d object(s)\n", result.Removed, result.Scanned)
			return nil
		},
	}
}
