package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/datashare-api/internal/server"
)

// CoreLoader opens storage and returns the workflow core with a release func.
type CoreLoader func() (*server.Core, func(), error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string

	load CoreLoader
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the datashare-admin command tree.
func NewRootCommand(load CoreLoader) *cobra.Command {
	opts := &RootOptions{load: load}

	cmd := &cobra.Command{
		Use:           "datashare-admin",
		Short:         "Operator tooling for the datashare API",
		Long:          "Inspect approval ledgers, verify stored status against ledger replay and seed organizations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")

	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTransitionsCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewOrgsCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) core() (*server.Core, func(), error) {
	if o.load == nil {
		return nil, nil, NewExitError(ExitCommandError, "no storage configured")
	}
	core, release, err := o.load()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "open storage", err)
	}
	return core, release, nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
