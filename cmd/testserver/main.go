// testserver starts the timegrid API with a stub engine for frontend and
// E2E work. The engine echoes a fixed timetable after a short delay and
// streams a few diagnostic lines.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/seantiz/timegrid/internal/api"
	"github.com/seantiz/timegrid/internal/backend/stub"
	"github.com/seantiz/timegrid/internal/config"
	"github.com/seantiz/timegrid/internal/engine"
	"github.com/seantiz/timegrid/internal/store"
)

const sampleTimetable = `{"lessons":[
{"classId":1,"subjectId":1,"teacherId":1,"roomId":1,"day":"Monday","period":0},
{"classId":1,"subjectId":2,"teacherId":2,"roomId":1,"day":"Monday","period":1},
{"classId":2,"subjectId":1,"teacherId":1,"roomId":2,"day":"Tuesday","period":0}
]}`

func main() {
	cfg := config.Load()
	if os.Getenv("TIMEGRID_LISTEN_ADDR") == "" {
		cfg.ListenAddr = ":8080"
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	b := &stub.Backend{
		Stdout:   sampleTimetable,
		Delay:    500 * time.Millisecond,
		LogLines: []string{"[stub] loading request", "[stub] searching", "[stub] done"},
	}
	eng := engine.NewEngine(b, db, logger, engine.WithThresholds(cfg.Thresholds))
	srv := api.NewServer(cfg.ListenAddr, db, eng, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("testserver: starting", "addr", cfg.ListenAddr)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	eng.Wait()
}
