package batch

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/kbo-data/importer/internal/jobstore"
	"github.com/kbo-data/importer/internal/metrics"
)

// SweepStaleLocks resets batches stuck in "running" for longer than
// threshold back to "pending", recovering from a worker that crashed
// or was killed mid-batch. Safe to run concurrently with other
// workers; it only ever moves a batch backward to pending, never
// forward, so it cannot race a healthy in-flight executor into a bad
// state.
func SweepStaleLocks(ctx context.Context, conn *sql.Conn, log *slog.Logger, threshold time.Duration) error {
	reclaimed, err := jobstore.SweepStaleLocks(ctx, conn, threshold)
	if err != nil {
		return err
	}
	for table, count := range reclaimed {
		metrics.StaleLocksReclaimed.WithLabelValues(table).Add(float64(count))
		log.Warn("reclaimed stale batch locks", "table", table, "count", count, "threshold", threshold)
	}
	return nil
}
