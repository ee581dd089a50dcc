package process

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/seantiz/timegrid/internal/backend"
)

// Locate resolves the engine entry point. An explicit override wins, then the
// configured override, then the first candidate directory containing the
// entry point. Only read-only stat probes are performed.
func Locate(cfg Config, override string) (string, error) {
	if override == "" {
		override = cfg.EnginePath
	}
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", &backend.SpawnError{
				Reason: backend.SpawnNotFound,
				Path:   override,
				Err:    fmt.Errorf("%w: %v", backend.ErrEngineNotFound, err),
			}
		}
		return absPath(override), nil
	}

	entry := cfg.Entrypoint()
	dirs := cfg.CandidateDirs()
	for _, dir := range dirs {
		candidate := filepath.Join(dir, entry)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return absPath(candidate), nil
		}
	}

	return "", &backend.SpawnError{
		Reason: backend.SpawnNotFound,
		Err:    fmt.Errorf("%w: %s not in %s", backend.ErrEngineNotFound, entry, strings.Join(dirs, ", ")),
	}
}

// commandLines returns the argv candidates for running path, tried in order.
// Scripts get one candidate per interpreter; anything else, including an
// unrecognised extension, is executed directly.
func commandLines(path string) [][]string {
	return commandLinesFor(path, runtime.GOOS)
}

func commandLinesFor(path, goos string) [][]string {
	interpreters, ok := scriptInterpreters(strings.ToLower(filepath.Ext(path)), goos)
	if !ok {
		return [][]string{{path}}
	}
	lines := make([][]string, 0, len(interpreters))
	for _, bin := range interpreters {
		lines = append(lines, []string{bin, path})
	}
	return lines
}

// absPath makes p absolute so it stays valid once the child runs in the
// engine's own directory.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
