package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/timegrid/internal/config"
	"github.com/seantiz/timegrid/internal/engine"
	"github.com/seantiz/timegrid/internal/model"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	Timeout time.Duration
	Engine  string
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{}

	cmd := &cobra.Command{
		Use:   "solve <request-file>",
		Short: "Invoke the solver once and print the result",
		Long: `Run the feasibility pre-check, invoke the solver and print the resulting
timetable or the classified error.

Exits 1 when the solve fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(rootOpts, opts, cmd, args[0])
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "engine deadline (default from TIMEGRID_ENGINE_TIMEOUT_S)")
	cmd.Flags().StringVar(&opts.Engine, "engine", "", "engine entry point, bypassing engine lookup")

	return cmd
}

func runSolve(rootOpts *RootOptions, opts *SolveOptions, cmd *cobra.Command, path string) error {
	p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}

	req, err := LoadRequest(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "load request", err)
	}
	req.Options = model.InvocationOptions{Timeout: opts.Timeout, EnginePath: opts.Engine}

	cfg := config.Load()
	logger := commandLogger(rootOpts, cfg, cmd.ErrOrStderr())
	eng := engine.NewEngine(rootOpts.NewBackend(cfg, logger), nil, logger,
		engine.WithThresholds(cfg.Thresholds),
		engine.WithDefaultTimeout(cfg.EngineTimeout),
	)

	res := eng.Invoke(cmd.Context(), req)

	if p.json() {
		resp := Response{Status: "ok", Data: res}
		if !res.OK() {
			resp = Response{Status: "error", Data: res.Warnings, Error: res.Error}
		}
		if err := p.encode(resp); err != nil {
			return err
		}
	} else {
		printWarnings(p, res.Warnings)
		printResult(p, res)
	}

	if !res.OK() {
		return NewExitError(ExitFailure, string(res.Error.Kind))
	}
	return nil
}

func printResult(p printer, res model.Result) {
	if !res.OK() {
		e := res.Error
		p.linef("✗ %s: %s", e.Kind, e.Details)
		if e.SuggestedStep != "" {
			p.linef("  fix it in: %s", e.SuggestedStep)
		}
		if e.Kind.Retryable() {
			p.linef("  the same request may succeed if retried")
		}
		return
	}

	lessons, err := res.Lessons()
	if err != nil {
		p.linef("✓ solved")
		p.linef("%s", res.Payload)
		return
	}
	p.linef("✓ solved: %d lessons", len(lessons))
	for _, l := range lessons {
		room := "-"
		if l.RoomID != nil {
			room = model.EntityRef{Type: model.EntityRoom, ID: *l.RoomID}.String()
		}
		p.linef("  %-10s %2d  class %d  subject %d  teacher %d  %s",
			l.Day, l.Period, l.ClassID, l.SubjectID, l.TeacherID, room)
	}
}
