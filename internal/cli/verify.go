package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/datashare-api/internal/dto"
)

// NewVerifyCommand replays ledgers and compares them with stored status.
func NewVerifyCommand(root *RootOptions) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay approval ledgers and compare them with stored status",
		Long:  "Replays the ledger of one transaction (--id) or of every transaction. Exits 1 when any mismatch is found.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, release, err := root.core()
			if err != nil {
				return err
			}
			defer release()

			out := root.formatter(cmd)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var reports []dto.ProjectionReport
			if id != "" {
				report, err := core.Workflow.VerifyProjection(ctx, id)
				if err != nil {
					return WrapExitError(ExitCommandError, "verify "+id, err)
				}
				reports = append(reports, *report)
			} else {
				reports, err = core.Workflow.VerifyAll(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "verify all", err)
				}
			}
			out.VerboseLog("verified %d transaction(s)", len(reports))

			mismatches := 0
			for _, r := range reports {
				if !r.Consistent {
					mismatches++
				}
			}
			if err := out.Success(reports, func(w io.Writer) error {
				return writeReports(w, reports, mismatches)
			}); err != nil {
				return err
			}
			if mismatches > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d transaction(s) disagree with their ledger", mismatches, len(reports)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "verify a single transaction")
	return cmd
}

func writeReports(w io.Writer, reports []dto.ProjectionReport, mismatches int) error {
	for _, r := range reports {
		if r.Consistent {
			if _, err := fmt.Fprintf(w, "ok        %s  %s (%d events)\n", r.TransactionID, r.StoredStatus, r.EventCount); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "MISMATCH  %s  %s: %s\n", r.TransactionID, r.StoredStatus, r.Problem); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d checked, %d mismatched\n", len(reports), mismatches)
	return err
}
