package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type issuedToken struct {
	Token     string    `json:"token" yaml:"token"`
	UserID    string    `json:"userId" yaml:"userId"`
	OrgID     string    `json:"orgId" yaml:"orgId"`
	ExpiresAt time.Time `json:"expiresAt" yaml:"expiresAt"`
}

// NewTokenCommand mints a bearer token for local testing.
func NewTokenCommand(root *RootOptions) *cobra.Command {
	var userID, orgID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user acting for an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, release, err := root.core()
			if err != nil {
				return err
			}
			defer release()

			token, expiresAt, err := core.Tokens.Issue(userID, orgID)
			if err != nil {
				return WrapExitError(ExitCommandError, "issue token", err)
			}
			out := issuedToken{Token: token, UserID: userID, OrgID: orgID, ExpiresAt: expiresAt}
			return root.formatter(cmd).Success(out, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, token)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&orgID, "org", "", "organization id (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
