package sqlite

import (
	"context"
	"embed"
	"fmt"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/random"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // Enable sqlite3 driver
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Database struct {
	ReadWrite *sqlx.DB
	ReadOnly  *sqlx.DB
	logger    *slog.Logger
}

// NewDatabase connects to database and applies the pending migrations.
//
// It establishes two database connections, one for read/write operations and one for read-only operations.
// This is a best practice mentioned in https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995
//
// The url parameter is the path to the SQLite database file or ":memory:" for an in-memory database.
func NewDatabase(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	var (
		err         error
		readWriteDB *sqlx.DB
		readDB      *sqlx.DB
	)

	// For in-memory databases, we need shared cache mode so that both databases access the same data.
	//
	// For parallel tests, we need to use a different database file for each test to avoid sharing data.
	// See https://www.sqlite.org/inmemorydb.html.
	isInMemory := strings.Contains(url, ":memory:")
	inMemoryConfig := ""
	if isInMemory {
		var randomID string
		if randomID, err = random.Name(20); err != nil { //nolint:mnd // collisions are negligible
			return nil, errors.Wrap(err, "generate random ID")
		}
		url = randomID
		inMemoryConfig = "&mode=memory&cache=shared"
	}
	commonConfig := strings.Join([]string{
		// Write-ahead logging enables concurrent readers while the engine writes.
		"_journal_mode=wal",
		// Avoids SQLITE_BUSY errors when the admin server reads during a transition.
		"_busy_timeout=5000",
		// Case records must survive power loss, so every commit is synced.
		"_synchronous=full",
		// Evidence rows cascade with their case.
		"_foreign_keys=on",
		"_temp_store=memory",
	}, "&")

	// The options prefixed with underscore '_' are SQLite pragmas documented at https://www.sqlite.org/pragma.html.
	// The options without leading underscore are SQLite URI parameters documented at https://www.sqlite.org/uri.html.
	readWriteConfig := fmt.Sprintf("file:%s?_txlock=immediate&%s%s", url, commonConfig, inMemoryConfig)
	readConfig := fmt.Sprintf("file:%s?_txlock=deferred&_query_only=true&%s%s", url, commonConfig, inMemoryConfig)
	if !isInMemory {
		readWriteConfig += "&mode=rwc"
		readConfig += "&mode=ro"
	}

	if readWriteDB, err = sqlx.Open("sqlite3", readWriteConfig); err != nil {
		return nil, errors.Wrap(err, "open read-write database")
	}
	readWriteDB.SetMaxOpenConns(1)
	readWriteDB.SetMaxIdleConns(1)
	readWriteDB.SetConnMaxLifetime(time.Hour)
	readWriteDB.SetConnMaxIdleTime(time.Hour)

	db := Database{
		ReadWrite: readWriteDB,
		ReadOnly:  nil,
		logger:    logger.With(slog.String("source", "Database")),
	}

	// The read-only pool can only open an existing database, so migrate first.
	if err = db.migrate(ctx); err != nil {
		_ = readWriteDB.Close()
		return nil, errors.Wrap(err, "migrate schema")
	}

	if readDB, err = sqlx.Open("sqlite3", readConfig); err != nil {
		_ = readWriteDB.Close()
		return nil, errors.Wrap(err, "open read database")
	}
	maxReadConns := 10
	readDB.SetMaxOpenConns(maxReadConns)
	readDB.SetMaxIdleConns(maxReadConns)
	readDB.SetConnMaxLifetime(time.Hour)
	readDB.SetConnMaxIdleTime(time.Hour)
	db.ReadOnly = readDB

	return &db, nil
}

// Close closes both connection pools.
func (db *Database) Close() error {
	return errors.Join(db.ReadOnly.Close(), db.ReadWrite.Close())
}

// SchemaVersion returns the number of applied migrations.
func (db *Database) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.ReadWrite.GetContext(ctx, &version, "PRAGMA user_version"); err != nil {
		return 0, errors.Wrap(err, "read user_version")
	}
	return version, nil
}

// migrate applies the embedded migrations newer than PRAGMA user_version, one transaction each.
func (db *Database) migrate(ctx context.Context) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	for i := version; i < len(migrations); i++ {
		if err = db.apply(ctx, i+1, migrations[i]); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) apply(ctx context.Context, version int, migration string) error {
	var (
		tx  *sqlx.Tx
		err error
	)
	if tx, err = db.ReadWrite.BeginTxx(ctx, nil); err != nil {
		return errors.Wrap(err, "start transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err = tx.ExecContext(ctx, migration); err != nil {
		return errors.Wrap(err, "apply migration", slog.Int("version", version))
	}
	// PRAGMA does not accept bound parameters.
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return errors.Wrap(err, "bump user_version", slog.Int("version", version))
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit migration", slog.Int("version", version))
	}
	db.logger.LogAttrs(ctx, slog.LevelInfo, "applied migration", slog.Int("version", version))
	return nil
}

func loadMigrations() ([]string, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, errors.Wrap(err, "glob migrations")
	}
	sort.Strings(names)
	migrations := make([]string, 0, len(names))
	for _, name := range names {
		data, readErr := migrationFiles.ReadFile(name)
		if readErr != nil {
			return nil, errors.Wrap(readErr, "read migration", slog.String("name", name))
		}
		migrations = append(migrations, string(data))
	}
	return migrations, nil
}
