package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"goredis/internal/metrics"
	"goredis/internal/store"
)

// RunExpirationSweep is the periodic task of spec.md §4.7: every ~1
// second it acquires the keyspace write lock, removes every expired
// key, and stops when ctx is cancelled (connection-close-style
// cancellation for the process's one long-running background task).
func RunExpirationSweep(ctx context.Context, ks *store.Keyspace, metric *metrics.Registry, log *zap.SugaredLogger) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := ks.ExpireSweep()
			if removed > 0 {
				log.Debugw("expiration sweep removed keys", "count", removed)
				if metric != nil {
					metric.ExpiredKeysTotal.Add(float64(removed))
				}
			}
		}
	}
}
