package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/datashare-api/internal/models"
)

// NewHistoryCommand prints the approval ledger of one transaction.
func NewHistoryCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history ID",
		Short: "Print the approval ledger of a transaction",
		Args:  cobra.ExactArgs(1),
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
			events, err := core.Workflow.History(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "history "+args[0], err)
			}
			return root.formatter(cmd).Success(events, func(w io.Writer) error {
				return writeHistory(w, events)
			})
		},
	}
}

func writeHistory(w io.Writer, events []models.ApprovalEvent) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tAT\tACTOR\tROLE\tACTION\tFROM\tTO\tNOTES")
	for _, ev := range events {
		notes := ""
		if ev.Notes != nil {
			notes = *ev.Notes
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.Seq, ev.CreatedAt.UTC().Format(time.RFC3339), ev.ActorOrgID, ev.ActorRole, ev.Action, ev.FromStatus, ev.ToStatus, notes)
	}
	return tw.Flush()
}
