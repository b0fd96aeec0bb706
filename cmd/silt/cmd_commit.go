package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/silt-vcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	var message string
	var author string
	var sign bool
	var signKey string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record changes to the repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			if author == "" {
				author = commitAuthor(r)
			}

			var signer repo.CommitSigner
			if sign || signKey != "" {
				s, keyPath, err := newSSHCommitSigner(signKey)
				if err != nil {
					return err
				}
				signer = s
				fmt.Fprintf(cmd.OutOrStdout(), "signing with %s\n", keyPath)
			}

			h, err := r.CommitWithSigner(message, author, signer)
			if err != nil {
				return err
			}

			branch := "HEAD"
			head, err := r.Head()
			if err == nil && strings.HasPrefix(head, "refs/heads/") {
				branch = strings.TrimPrefix(head, "refs/heads/")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, shortHash(h), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", "override author (default: config, then $USER)")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with the default SSH key")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "sign the commit with the given SSH private key")

	return cmd
}

// commitAuthor picks the author identity: repository config first,
// then $USER, then a fixed fallback.
func commitAuthor(r *repo.Repo) string {
	if author, err := r.DefaultAuthor(); err == nil && author != "" {
		return author
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}
