package main

import (
	"fmt"
	"io"

	"github.com/silt-vcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			st, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case st.Detached:
				fmt.Fprintf(out, "HEAD detached at %s\n", shortHash(st.Head))
			case st.Head == "":
				fmt.Fprintf(out, "on %s (no commits yet)\n", st.Branch)
			default:
				fmt.Fprintf(out, "on %s\n", st.Branch)
			}

			printChanges(out, "staged:", st.Staged)
			printChanges(out, "unstaged:", st.Unstaged)

			if len(st.Untracked) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "untracked:")
				for _, p := range st.Untracked {
					fmt.Fprintf(out, "  %s\n", p)
				}
			}

			if st.Clean() {
				fmt.Fprintln(out, "nothing to commit, working tree clean")
			}
			return nil
		},
	}
}

func printChanges(out io.Writer, header string, changes []repo.PathChange) {
	if len(changes) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, header)
	for _, c := range changes {
		fmt.Fprintf(out, "  %s %s\n", changeMarker(c.Kind), c.Path)
	}
}

func changeMarker(kind repo.ChangeKind) string {
	switch kind {
	case repo.ChangeAdded:
		return "+"
	case repo.ChangeRemoved:
		return "-"
	case repo.ChangeModeChanged:
		return "m"
	default:
		return "~"
	}
}
