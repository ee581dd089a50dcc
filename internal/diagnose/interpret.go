package diagnose

import (
	"fmt"
	"strings"

	"github.com/seantiz/timegrid/internal/backend"
	"github.com/seantiz/timegrid/internal/model"
)

// Interpret converts a terminal event into a Result. It never panics; any
// unexpected failure while interpreting becomes an unknown-kind error.
func Interpret(ev backend.TerminalEvent) (res model.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = model.Failure(model.NewClassifiedError(model.KindUnknown, MessageUnknown,
				fmt.Sprintf("interpret panic: %v", r)), nil)
		}
	}()

	if ev.TimedOut() {
		return model.Failure(model.NewClassifiedError(model.KindTimeout, MessageTimeout,
			fmt.Sprintf("engine exceeded its deadline after %s", ev.Duration)), nil)
	}

	if ev.ExitCode == 0 && strings.TrimSpace(string(ev.Stdout)) != "" {
		payload, err := DecodeOutput(ev.Stdout)
		if err == nil {
			return model.Success(payload, nil)
		}
		raw := tail(string(ev.Stdout), MaxRawDiagnostic)
		if s := strings.TrimSpace(string(ev.Stderr)); s != "" {
			raw = tail(raw+"\n--- stderr ---\n"+s, MaxRawDiagnostic)
		}
		return model.Failure(model.NewClassifiedError(model.KindParse, MessageParse, raw), nil)
	}

	return model.Failure(Classify(string(ev.Stderr), string(ev.Stdout)), nil)
}
