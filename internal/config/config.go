package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/seantiz/timegrid/internal/backend"
	"github.com/seantiz/timegrid/internal/backend/process"
	"github.com/seantiz/timegrid/internal/feasibility"
)

const (
	defaultListenAddr     = ":8080"
	defaultDBPath         = "timegrid.db"
	defaultSolveRate      = 2.0
	defaultSolveBurst     = 4
	defaultRetentionHours = 7 * 24

	envListenAddr      = "TIMEGRID_LISTEN_ADDR"
	envDBPath          = "TIMEGRID_DB_PATH"
	envLogLevel        = "TIMEGRID_LOG_LEVEL"
	envEngineTimeoutS  = "TIMEGRID_ENGINE_TIMEOUT_S"
	envMaxFixedPerRoom = "TIMEGRID_MAX_FIXED_PER_ROOM"
	envOverbookRatio   = "TIMEGRID_OVERBOOK_RATIO"
	envSolveRate       = "TIMEGRID_SOLVE_RATE"
	envSolveBurst      = "TIMEGRID_SOLVE_BURST"
	envRetentionHours  = "TIMEGRID_RETENTION_HOURS"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// EngineTimeout is the solver deadline when a request sets none.
	EngineTimeout time.Duration

	// Engine locates and runs the solver process.
	Engine process.Config

	// Thresholds tune the feasibility pre-check.
	Thresholds feasibility.Thresholds

	// SolveRate limits solve requests per second across the API; SolveBurst
	// is the bucket size. A non-positive rate disables limiting.
	SolveRate  float64
	SolveBurst int

	// Retention is how long finished runs are kept. Zero keeps them forever.
	Retention time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed numeric values fall back to the default.
func Load() Config {
	cfg := Config{
		ListenAddr:    defaultListenAddr,
		DBPath:        defaultDBPath,
		LogLevel:      slog.LevelInfo,
		EngineTimeout: backend.DefaultTimeout,
		Engine:        process.LoadConfig(),
		Thresholds:    feasibility.DefaultThresholds,
		SolveRate:     defaultSolveRate,
		SolveBurst:    defaultSolveBurst,
		Retention:     defaultRetentionHours * time.Hour,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if n, ok := positiveInt(envEngineTimeoutS); ok {
		cfg.EngineTimeout = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt(envMaxFixedPerRoom); ok {
		cfg.Thresholds.MaxFixedPerRoom = n
	}
	if v := os.Getenv(envOverbookRatio); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Thresholds.OverbookRatio = f
		}
	}
	if v := os.Getenv(envSolveRate); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SolveRate = f
		}
	}
	if n, ok := positiveInt(envSolveBurst); ok {
		cfg.SolveBurst = n
	}
	if v := os.Getenv(envRetentionHours); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Retention = time.Duration(n) * time.Hour
		}
	}

	return cfg
}

func positiveInt(env string) (int, bool) {
	v := os.Getenv(env)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
