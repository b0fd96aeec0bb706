package main

import (
	"errors"
	"fmt"

	"github.com/silt-vcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge a branch into the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			outcome, err := r.Merge(args[0], commitAuthor(r))
			out := cmd.OutOrStdout()

			if errors.Is(err, repo.ErrMergeConflicts) {
				fmt.Fprintln(out, "merge stopped with conflicts:")
				for _, c := range outcome.Result.Conflicts {
					fmt.Fprintf(out, "  ! %s\n", c.Path)
				}
				fmt.Fprintln(out, "resolve the marked files, then add and commit")
				return fmt.Errorf("merge of %q has conflicts", args[0])
			}
			if err != nil {
				return err
			}

			switch {
			case outcome.AlreadyUpToDate:
				fmt.Fprintln(out, "already up to date")
			case outcome.FastForward:
				fmt.Fprintf(out, "fast-forward to %s\n", shortHash(outcome.CommitHash))
			default:
				fmt.Fprintf(out, "merged %q: %s\n", args[0], shortHash(outcome.CommitHash))
			}
			return nil
		},
	}
}
