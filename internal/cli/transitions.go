package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/datashare-api/internal/models"
	"github.com/noah-isme/datashare-api/internal/workflow"
)

type transitionRow struct {
	From          models.TransactionStatus `json:"from" yaml:"from"`
	Action        models.ApprovalAction    `json:"action" yaml:"action"`
	Actors        []models.Role            `json:"actors" yaml:"actors"`
	To            models.TransactionStatus `json:"to" yaml:"to"`
	Tags          []models.EventTag        `json:"tags" yaml:"tags"`
	RequiresNotes bool                     `json:"requiresNotes" yaml:"requiresNotes"`
}

// NewTransitionsCommand prints the workflow transition table.
func NewTransitionsCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transitions",
		Short: "Print the workflow transition table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules := workflow.Rules()
			rows := make([]transitionRow, 0, len(rules))
			for _, r := range rules {
				rows = append(rows, transitionRow{
					From:          r.From,
					Action:        r.Action,
					Actors:        r.Actors,
					To:            r.To,
					Tags:          r.Tags,
					RequiresNotes: r.RequiresNotes,
				})
			}
			return root.formatter(cmd).Success(rows, func(w io.Writer) error {
				return writeTransitions(w, rows)
			})
		},
	}
}

func writeTransitions(w io.Writer, rows []transitionRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tACTION\tACTORS\tTO\tTAGS\tNOTES")
	for _, r := range rows {
		actors := make([]string, 0, len(r.Actors))
		for _, a := range r.Actors {
			actors = append(actors, string(a))
		}
		tags := make([]string, 0, len(r.Tags))
		for _, t := range r.Tags {
			tags = append(tags, string(t))
		}
		notes := "optional"
		if r.RequiresNotes {
			notes = "required"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.From, r.Action, strings.Join(actors, ","), r.To, strings.Join(tags, ","), notes)
	}
	return tw.Flush()
}
