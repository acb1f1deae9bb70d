package sqlite

import (
	"context"
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
	"time"
)

// StartOptimizer runs PRAGMA optimize every interval until ctx is done.
// See https://www.sqlite.org/pragma.html#pragma_optimize.
func (db *Database) StartOptimizer(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if _, err := db.ReadWrite.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
				err = errors.Wrap(err, "optimize database")
				db.logger.LogAttrs(ctx, slog.LevelError, "failed to optimize database", errors.SlogError(err))
				continue
			}
			db.logger.LogAttrs(ctx, slog.LevelDebug, "optimized database",
				slog.Duration("duration", time.Since(start)))
		}
	}
}
