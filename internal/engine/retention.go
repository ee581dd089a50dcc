package engine

import (
	"context"
	"fmt"
	"time"
)

// Purge deletes runs that finished more than olderThan ago and drops their
// log streams. It returns the number of runs removed.
func (e *Engine) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	if e.store == nil {
		return 0, ErrNoStore
	}
	ids, err := e.store.PurgeFinishedBefore(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	for _, id := range ids {
		e.broker.Forget(id)
	}
	if len(ids) > 0 {
		e.logger.Info("purged finished runs", "count", len(ids), "older_than", olderThan.String())
	}
	return len(ids), nil
}
