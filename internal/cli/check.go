package cli

import (
	"github.com/spf13/cobra"

	"github.com/seantiz/timegrid/internal/config"
	"github.com/seantiz/timegrid/internal/feasibility"
	"github.com/seantiz/timegrid/internal/model"
)

// CheckResult is the JSON data of the check command.
type CheckResult struct {
	Warnings []model.FeasibilityWarning `json:"warnings"`
	Blocking bool                       `json:"blocking"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <request-file>",
		Short: "Run the feasibility pre-check on a request",
		Long: `Run the feasibility pre-check on a solve request without starting the engine.

Exits 1 when a finding would block the solve.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd, args[0])
		},
	}
}

func runCheck(opts *RootOptions, cmd *cobra.Command, path string) error {
	p := printer{format: opts.Format, w: cmd.OutOrStdout()}

	req, err := LoadRequest(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "load request", err)
	}

	cfg := config.Load()
	ws := feasibility.NewChecker(cfg.Thresholds).Check(req.Payload)
	if ws == nil {
		ws = []model.FeasibilityWarning{}
	}
	blocking := feasibility.HasErrors(ws)

	if p.json() {
		status := "ok"
		if blocking {
			status = "error"
		}
		if err := p.encode(Response{Status: status, Data: CheckResult{Warnings: ws, Blocking: blocking}}); err != nil {
			return err
		}
	} else {
		printWarnings(p, ws)
		if len(ws) == 0 {
			p.linef("✓ no feasibility findings")
		}
	}

	if blocking {
		return NewExitError(ExitFailure, "request is infeasible")
	}
	return nil
}

func printWarnings(p printer, ws []model.FeasibilityWarning) {
	for _, w := range ws {
		p.linef("%s [%s] %s", w.Severity, w.Rule, w.Message)
	}
}
