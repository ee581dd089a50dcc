package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/seantiz/timegrid/internal/api"
	"github.com/seantiz/timegrid/internal/config"
	"github.com/seantiz/timegrid/internal/engine"
	"github.com/seantiz/timegrid/internal/store"
)

// retentionSchedule is how often finished runs older than the retention
// window are purged.
const retentionSchedule = "@every 1h"

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	Addr string
	DB   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted.

Configuration comes from TIMEGRID_* environment variables; --addr and --db
override the listen address and database path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from TIMEGRID_LISTEN_ADDR)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database path (default from TIMEGRID_DB_PATH)")

	return cmd
}

func runServe(rootOpts *RootOptions, opts *ServeOptions, cmd *cobra.Command) error {
	cfg := config.Load()
	if opts.Addr != "" {
		cfg.ListenAddr = opts.Addr
	}
	if opts.DB != "" {
		cfg.DBPath = opts.DB
	}
	logger := config.NewLogger(cmd.OutOrStdout(), cfg.LogLevel)

	logger.Info("timegrid: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"engine_timeout", cfg.EngineTimeout.String(),
		"retention", cfg.Retention.String(),
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer db.Close()

	eng := engine.NewEngine(rootOpts.NewBackend(cfg, logger), db, logger,
		engine.WithThresholds(cfg.Thresholds),
		engine.WithDefaultTimeout(cfg.EngineTimeout),
	)
	srv := api.NewServer(cfg.ListenAddr, db, eng, api.NewLimiter(cfg.SolveRate, cfg.SolveBurst), logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := scheduleRetention(ctx, eng, cfg.Retention, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "schedule retention", err)
	}
	if sched != nil {
		sched.Start()
	}

	runErr := srv.Run(ctx)

	if sched != nil {
		<-sched.Stop().Done()
	}
	// Background solves finish before the store closes.
	eng.Wait()

	if runErr != nil {
		return WrapExitError(ExitCommandError, "serve", runErr)
	}
	return nil
}

// scheduleRetention registers the periodic purge of finished runs. It
// returns nil when retention is disabled.
func scheduleRetention(ctx context.Context, eng *engine.Engine, keep time.Duration, logger *slog.Logger) (*cron.Cron, error) {
	if keep <= 0 {
		return nil, nil
	}
	sched := cron.New()
	_, err := sched.AddFunc(retentionSchedule, func() {
		if _, err := eng.Purge(ctx, keep); err != nil && ctx.Err() == nil {
			// Retried on the next tick.
			logger.Error("retention sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}
