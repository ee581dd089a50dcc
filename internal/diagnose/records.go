package diagnose

import (
	"strings"

	"github.com/tidwall/gjson"
)

// validationTypes are exception type names that mark a record as a
// validation failure.
var validationTypes = []string{"ValidationError", "ValueError"}

// Records returns the lines of diag that are self-contained JSON objects, in order.
func Records(diag string) []gjson.Result {
	var recs []gjson.Result
	for line := range strings.SplitSeq(diag, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		if !gjson.Valid(line) {
			continue
		}
		recs = append(recs, gjson.Parse(line))
	}
	return recs
}

// primary returns the first "error" field found across recs and whether any
// record carries a validation-failure marker.
func primary(recs []gjson.Result) (msg string, validation bool) {
	for _, rec := range recs {
		if msg == "" {
			if v := rec.Get("error"); v.Exists() && v.Type != gjson.Null {
				msg = strings.TrimSpace(v.String())
			}
		}
		if isValidationRecord(rec) {
			validation = true
		}
	}
	return msg, validation
}

func isValidationRecord(rec gjson.Result) bool {
	if rec.Get("validation_failed").Bool() || rec.Get("validation_error").Bool() {
		return true
	}
	for _, key := range []string{"error_type", "exc_type"} {
		name := rec.Get(key).String()
		for _, vt := range validationTypes {
			if strings.EqualFold(name, vt) {
				return true
			}
		}
	}
	return false
}
