package main

import (
	"fmt"

	"github.com/silt-vcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newCheckoutCmd() *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "checkout <branch|tag|commit>",
		Short: "Switch branches or restore a commit's tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			target := args[0]
			if create {
				if err := r.CreateBranch(target, ""); err != nil {
					return err
				}
			}
			if err := r.Checkout(target); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "switched to '%s'\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&create, "branch", "b", false, "create the branch before switching")

	return cmd
}
