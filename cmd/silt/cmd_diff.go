package main

import (
	"fmt"
	"io"

	"github.com/silt-vcs/silt/pkg/object"
	"github.com/silt-vcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [<commit> <commit>]",
		Short: "Show changed paths between two commits",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			oldRef, newRef := "HEAD", ""
			if len(args) == 2 {
				oldRef, newRef = args[0], args[1]
			}

			var oldTree object.Hash
			if len(args) == 2 {
				oldTree, err = commitTree(r, oldRef)
				if err != nil {
					return err
				}
			} else if h, err := r.ResolveRef("HEAD"); err == nil {
				// An unborn branch diffs against the empty tree.
				commit, err := r.Store.ReadCommit(h)
				if err != nil {
					return err
				}
				oldTree = commit.TreeHash
			}

			var newTree = oldTree
			if newRef != "" {
				newTree, err = commitTree(r, newRef)
				if err != nil {
					return err
				}
			} else {
				// Against HEAD: compare the index's tree.
				stg, err := r.ReadStaging()
				if err != nil {
					return err
				}
				if len(stg.Entries) > 0 {
					newTree, err = r.BuildTree(stg)
					if err != nil {
						return err
					}
				}
			}

			out := cmd.OutOrStdout()
			walker := r.DiffTrees(oldTree, newTree)
			for {
				change, err := walker.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s\n", changeMarker(change.Kind), change.Path)
			}
			return nil
		},
	}
}

func commitTree(r *repo.Repo, ref string) (object.Hash, error) {
	commitHash, err := r.ResolveRef(ref)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %q: %w", ref, err)
	}
	commit, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		return "", err
	}
	return commit.TreeHash, nil
}
