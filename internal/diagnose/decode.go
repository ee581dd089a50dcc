package diagnose

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	errEmptyOutput = errors.New("engine produced no output")
	errUndecodable = errors.New("engine output is not valid JSON")
)

// DecodeOutput extracts the engine's answer from stdout. The whole trimmed
// output is tried first; failing that, the last top-level object or array at
// the end of the output is used, which recovers an answer printed after log
// lines.
func DecodeOutput(stdout []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, errEmptyOutput
	}
	if json.Valid(trimmed) {
		return json.RawMessage(bytes.Clone(trimmed)), nil
	}
	if block, ok := lastBlock(trimmed); ok {
		return json.RawMessage(bytes.Clone(block)), nil
	}
	return nil, errUndecodable
}

// lastBlock finds the top-level {...} or [...] block that ends s by scanning
// backwards and balancing brackets outside string literals. s must already be
// trimmed. The block is returned only if it is valid JSON on its own.
func lastBlock(s []byte) ([]byte, bool) {
	if len(s) == 0 {
		return nil, false
	}
	if last := s[len(s)-1]; last != '}' && last != ']' {
		return nil, false
	}

	depth := 0
	inString := false
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if inString {
			if c == '"' && !escaped(s, i) {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if !escaped(s, i) {
				inString = true
			}
		case '}', ']':
			depth++
		case '{', '[':
			depth--
			if depth == 0 {
				block := s[i:]
				if json.Valid(block) {
					return block, true
				}
				return nil, false
			}
			if depth < 0 {
				return nil, false
			}
		}
	}
	return nil, false
}

// escaped reports whether the byte at i is preceded by an odd number of backslashes.
func escaped(s []byte, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}
