package process

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment variable names for engine process configuration.
const (
	envEnginePath = "TIMEGRID_ENGINE_PATH"
	envEngineDirs = "TIMEGRID_ENGINE_DIRS"
	envProduction = "TIMEGRID_PRODUCTION"
	envReapGrace  = "TIMEGRID_ENGINE_REAP_GRACE_MS"
)

// Config holds configuration for the process backend.
type Config struct {
	// EnginePath is the hosting process's engine override. A per-run
	// override in backend.Spec takes precedence.
	EnginePath string

	// EngineDirs replaces the built-in candidate directory list when set.
	EngineDirs []string

	// Production selects the bundled executable and production directories.
	Production bool

	// ReapGrace bounds how long the pipes may stay open after the child exits.
	ReapGrace time.Duration
}

// LoadConfig reads engine configuration from environment variables,
// applying defaults for values not set.
func LoadConfig() Config {
	cfg := Config{
		ReapGrace: DefaultReapGrace,
	}

	if v := os.Getenv(envEnginePath); v != "" {
		cfg.EnginePath = v
	}
	if v := os.Getenv(envEngineDirs); v != "" {
		for _, d := range filepath.SplitList(v) {
			if d = strings.TrimSpace(d); d != "" {
				cfg.EngineDirs = append(cfg.EngineDirs, d)
			}
		}
	}
	if v := os.Getenv(envProduction); v != "" {
		cfg.Production = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv(envReapGrace); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.ReapGrace = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg
}

// Entrypoint returns the file name probed in each candidate directory.
func (c Config) Entrypoint() string {
	if c.Production {
		return prodEntrypointName()
	}
	return DevEntrypoint
}

// CandidateDirs returns the ordered directories probed for the entry point.
func (c Config) CandidateDirs() []string {
	if len(c.EngineDirs) > 0 {
		return c.EngineDirs
	}
	exeDir := executableDir()
	if c.Production {
		return ProductionDirs(exeDir)
	}
	return DevelopmentDirs(exeDir)
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}
