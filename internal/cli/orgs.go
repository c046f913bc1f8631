package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewOrgsCommand groups organization directory commands.
func NewOrgsCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orgs",
		Short: "Manage the organization directory",
	}
	cmd.AddCommand(newOrgsAddCommand(root))
	return cmd
}

func newOrgsAddCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add ID NAME",
		Short: "Register or rename an organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, release, err := root.core()
			if err != nil {
				return err
			}
			defer release()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			org, err := core.Organizations.Register(ctx, args[0], args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "register organization", err)
			}
			return root.formatter(cmd).Success(org, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "registered %s (%s)\n", org.ID, org.Name)
				return err
			})
		},
	}
}
