package process

import (
	"path/filepath"
	"runtime"
	"time"
)

// BackendName identifies this backend in logs.
const BackendName = "process"

// Engine entry points probed inside each candidate directory.
const (
	// DevEntrypoint is the solver script used outside production.
	DevEntrypoint = "solver.py"

	// ProdEntrypoint is the bundled solver executable shipped with production builds.
	ProdEntrypoint = "timegrid-solver"
)

// DefaultReapGrace is how long the pipes may stay open after the child has
// exited before they are force-closed so that the drains can finish.
const DefaultReapGrace = 2 * time.Second

// ProductionDirs returns the candidate engine directories for production
// builds, relative to the directory holding the running executable.
func ProductionDirs(exeDir string) []string {
	dirs := []string{}
	if exeDir != "" {
		dirs = append(dirs, filepath.Join(exeDir, "solver"), filepath.Join(exeDir, "resources", "solver"))
	}
	return append(dirs, "/opt/timegrid/solver")
}

// DevelopmentDirs returns the candidate engine directories for development runs.
func DevelopmentDirs(exeDir string) []string {
	dirs := []string{"solver", filepath.Join("..", "solver")}
	if exeDir != "" {
		dirs = append(dirs, filepath.Join(exeDir, "..", "solver"))
	}
	return dirs
}

// scriptInterpreters maps a script extension to its interpreters in the order
// they are tried on the given platform.
func scriptInterpreters(ext, goos string) ([]string, bool) {
	switch ext {
	case ".py":
		if goos == "windows" {
			return []string{"py", "python", "python3"}, true
		}
		return []string{"python3", "python"}, true
	case ".sh":
		return []string{"sh", "bash"}, true
	default:
		return nil, false
	}
}

func prodEntrypointName() string {
	if runtime.GOOS == "windows" {
		return ProdEntrypoint + ".exe"
	}
	return ProdEntrypoint
}
