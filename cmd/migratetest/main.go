package main

import (
	"context"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/sqlite"
	"github.com/myrjola/casebot/internal/testhelpers"
	"log/slog"
	"os"
	"time"
)

// migratetest applies the pending migrations to a copy of a production database and checks that the case
// records survived. Run it against a copy, never against the live file.
func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}
	defer db.Close()

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error reading schema version", errors.SlogError(err))
		os.Exit(1)
	}

	// Every evidence row must still belong to a case after the migration.
	var cases, orphans int
	if err = db.ReadOnly.GetContext(ctx, &cases, `SELECT COUNT(*) FROM cases`); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error counting cases", errors.SlogError(err))
		os.Exit(1)
	}
	if err = db.ReadOnly.GetContext(ctx, &orphans,
		`SELECT COUNT(*) FROM evidence WHERE case_id NOT IN (SELECT id FROM cases)`); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error counting orphaned evidence", errors.SlogError(err))
		os.Exit(1)
	}
	if orphans > 0 {
		logger.LogAttrs(ctx, slog.LevelError, "orphaned evidence rows found", slog.Int("count", orphans))
		os.Exit(1)
	}
	if cases == 0 {
		logger.LogAttrs(ctx, slog.LevelWarn, "no cases found, is this the right database?")
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "case count", slog.Int("count", cases), slog.Int("schema_version", version))

	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
	os.Exit(0) //nolint:gocritic // db is closed by the process exit
}
