package diagnose

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/seantiz/timegrid/internal/model"
)

// MaxRawDiagnostic bounds the raw text kept on a ClassifiedError.
const MaxRawDiagnostic = 8 << 10

const maxDetails = 500

// Fixed user-facing messages for failures that carry no entity detail.
const (
	MessageSpawn   = "The scheduling engine is not available. Please contact your administrator."
	MessageTimeout = "The solver did not finish in time. Try again, or relax some constraints."
	MessageParse   = "The solver returned a result that could not be read."
	MessageRuntime = "The solver stopped with an unexpected error."
	MessageUnknown = "The solver failed without reporting a reason."
	messageInvalid = "The timetable configuration is invalid."
)

// MessageFor returns the fixed message shown for a failure of kind k.
func MessageFor(k model.Kind) string {
	switch k {
	case model.KindSpawn:
		return MessageSpawn
	case model.KindTimeout:
		return MessageTimeout
	case model.KindParse:
		return MessageParse
	case model.KindRuntime:
		return MessageRuntime
	case model.KindValidation:
		return messageInvalid
	}
	return MessageUnknown
}

var (
	escapeReplacer = strings.NewReplacer(
		`\r\n`, " ",
		`\n`, " ",
		`\r`, " ",
		`\t`, " ",
		`\"`, `"`,
		`\'`, "'",
		`\\`, `\`,
	)
	exceptionPrefix = regexp.MustCompile(`^(?:[\w.]+\.)?\w*(?:Error|Exception):\s*`)
)

// cleanup turns an escaped diagnostic string into a single readable line.
func cleanup(s string) string {
	s = escapeReplacer.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = exceptionPrefix.ReplaceAllString(s, "")
	if utf8.RuneCountInString(s) > maxDetails {
		r := []rune(s)
		s = string(r[:maxDetails]) + "…"
	}
	return s
}

// tail keeps the last max bytes of s, cut on a rune boundary.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[len(s)-max:]
	for len(s) > 0 && !utf8.RuneStart(s[0]) {
		s = s[1:]
	}
	return s
}
