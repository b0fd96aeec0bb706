package main

import (
	"fmt"
	"os"

	"github.com/silt-vcs/silt/pkg/object"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "silt",
		Short: "Content-addressed version control",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newBranchCmd())
	root.AddCommand(newCheckoutCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newTagCmd())
	root.AddCommand(newReflogCmd())
	root.AddCommand(newGcCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// shortHash abbreviates a digest for display: first 8 characters.
func shortHash(h object.Hash) string {
	s := string(h)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("silt 0.1.0-dev")
		},
	}
}
