package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/silt-vcs/silt/pkg/object"
	"github.com/silt-vcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [ref]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			ref := "HEAD"
			if len(args) == 1 {
				ref = args[0]
			}
			startHash, err := r.ResolveRef(ref)
			if err != nil {
				return fmt.Errorf("cannot resolve %q: %w", ref, err)
			}

			entries, err := r.Log(startHash, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no commits yet")
				return nil
			}

			headHash, _ := r.ResolveRef("HEAD")
			branchName := ""
			head, err := r.Head()
			if err == nil && strings.HasPrefix(head, "refs/heads/") {
				branchName = strings.TrimPrefix(head, "refs/heads/")
			}

			out := cmd.OutOrStdout()
			for _, entry := range entries {
				h := entry.Hash
				c := entry.Commit
				decoration := buildDecoration(h, headHash, branchName)

				if oneline {
					if decoration != "" {
						fmt.Fprintf(out, "%s %s %s\n", shortHash(h), decoration, c.Message)
					} else {
						fmt.Fprintf(out, "%s %s\n", shortHash(h), c.Message)
					}
					continue
				}

				if decoration != "" {
					fmt.Fprintf(out, "commit %s %s\n", h, decoration)
				} else {
					fmt.Fprintf(out, "commit %s\n", h)
				}
				if len(c.Parents) > 1 {
					shorts := make([]string, len(c.Parents))
					for i, p := range c.Parents {
						shorts[i] = shortHash(p)
					}
					fmt.Fprintf(out, "Merge:  %s\n", strings.Join(shorts, " "))
				}
				fmt.Fprintf(out, "Author: %s\n", c.Author)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Timestamp, 0).Format("2006-01-02 15:04:05"))
				fmt.Fprintln(out)
				fmt.Fprintf(out, "    %s\n", c.Message)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show")

	return cmd
}

// buildDecoration returns "(HEAD -> main)" for the current HEAD commit,
// or "" otherwise.
func buildDecoration(commitHash, headHash object.Hash, branchName string) string {
	if commitHash != headHash {
		return ""
	}
	if branchName != "" {
		return "(HEAD -> " + branchName + ")"
	}
	return "(HEAD)"
}
