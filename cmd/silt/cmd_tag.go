package main

import (
	"fmt"

	"github.com/silt-vcs/silt/pkg/repo"
	"github.com/spf13/cobra"
)

func newTagCmd() *cobra.Command {
	var deleteTag string
	var annotate bool
	var message string

	cmd := &cobra.Command{
		Use:   "tag [name]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			if deleteTag != "" {
				if err := r.DeleteTag(deleteTag); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted tag '%s'\n", deleteTag)
				return nil
			}

			if len(args) == 1 {
				name := args[0]
				if annotate || message != "" {
					return r.CreateAnnotatedTag(name, "", commitAuthor(r), message)
				}
				return r.CreateTag(name, "")
			}

			tags, err := r.ListTags()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range tags {
				fmt.Fprintln(out, t.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteTag, "delete", "d", "", "delete the named tag")
	cmd.Flags().BoolVarP(&annotate, "annotate", "a", false, "create an annotated tag object")
	cmd.Flags().StringVarP(&message, "message", "m", "", "annotated tag message")

	return cmd
}
