package diagnose

import (
	"regexp"
	"strings"

	"github.com/seantiz/timegrid/internal/model"
)

var (
	validationPhrase = regexp.MustCompile(`(?i)validation\s*error|value\s*error`)
	timeoutPhrase    = regexp.MustCompile(`(?i)\btimed\s+out\b`)
	parsePhrase      = regexp.MustCompile(`(?i)decodeerror|parseerror|\bdecod(?:e|ing)\b|\bpars(?:e|er|ing)\b|\bmalformed\b`)
)

// Classify builds a typed error from the diagnostic stream of a failed run.
// stdout is consulted only when the diagnostic stream is empty.
func Classify(diag, stdout string) *model.ClassifiedError {
	full := strings.TrimSpace(diag)
	if full == "" {
		full = strings.TrimSpace(stdout)
	}
	// Records are scanned over the whole stream; only the kept copy is bounded.
	raw := tail(full, MaxRawDiagnostic)

	msg, marked := primary(Records(full))
	if msg == "" {
		msg = raw
	}

	kind := coarseKind(msg, marked)
	ce := model.NewClassifiedError(kind, "", raw)
	if kind == model.KindUnknown {
		ce.Details = MessageFor(kind)
		return ce
	}

	t, m := lookup(msg)
	ce.EntityType = m.EntityType
	ce.EntityID = m.EntityID
	ce.Field = m.Field
	ce.Day = m.Day
	ce.Expected = m.Expected
	ce.Actual = m.Actual
	ce.SuggestedStep = model.StepFor(m.EntityType)

	switch rendered := t.render(m); {
	case rendered != "":
		ce.Details = rendered
	case kind == model.KindValidation:
		ce.Details = cleanup(msg)
		if ce.Details == "" {
			ce.Details = MessageFor(kind)
		}
	default:
		ce.Details = MessageFor(kind)
	}
	return ce
}

// coarseKind applies the phrase rules in precedence order.
func coarseKind(msg string, validationMarker bool) model.Kind {
	switch {
	case validationMarker || validationPhrase.MatchString(msg):
		return model.KindValidation
	case timeoutPhrase.MatchString(msg):
		return model.KindTimeout
	case parsePhrase.MatchString(msg):
		return model.KindParse
	case strings.TrimSpace(msg) != "":
		return model.KindRuntime
	}
	return model.KindUnknown
}
