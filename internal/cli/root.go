// Package cli implements the timegrid command line: serve runs the HTTP API,
// check runs the feasibility pre-check on a request file and solve invokes
// the engine once.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/seantiz/timegrid/internal/backend"
	"github.com/seantiz/timegrid/internal/backend/process"
	"github.com/seantiz/timegrid/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string

	// NewBackend builds the engine backend. Tests replace it with a stub.
	NewBackend func(cfg config.Config, logger *slog.Logger) backend.Backend
}

// ValidFormats are the accepted values of --format.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{NewBackend: processBackend})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timegrid",
		Short: "Timetable solver runner",
		Long: `timegrid runs an external timetable solver under a deadline and turns
its output into a timetable or a classified, user-facing error.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log engine activity to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewSolveCommand(opts))

	return cmd
}

func processBackend(cfg config.Config, logger *slog.Logger) backend.Backend {
	return process.NewBackend(cfg.Engine, logger)
}

// commandLogger logs to stderr when --verbose is set and discards otherwise.
func commandLogger(opts *RootOptions, cfg config.Config, stderr io.Writer) *slog.Logger {
	if !opts.Verbose {
		stderr = io.Discard
	}
	return config.NewLogger(stderr, cfg.LogLevel)
}
