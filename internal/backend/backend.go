// Package backend opens the state and case stores selected by the configuration.
package backend

import (
	"context"
	"github.com/myrjola/casebot/internal/blobstore"
	"github.com/myrjola/casebot/internal/casestore"
	"github.com/myrjola/casebot/internal/config"
	"github.com/myrjola/casebot/internal/envstruct"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"github.com/myrjola/casebot/internal/repositories"
	"github.com/myrjola/casebot/internal/sqlite"
	"github.com/myrjola/casebot/internal/statestore"
	"github.com/myrjola/casebot/internal/workflow"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StateStore is implemented by [statestore.FileStore] and [repositories.StateRepository].
type StateStore interface {
	workflow.StateStore
	Reset(ctx context.Context) error
}

// CaseStore is implemented by [casestore.FileStore] and [repositories.CaseRepository].
type CaseStore interface {
	workflow.CaseStore
	OpenFile(ctx context.Context, caseID, rel string) (*os.File, error)
}

var (
	_ StateStore = (*statestore.FileStore)(nil)
	_ StateStore = (*repositories.StateRepository)(nil)
	_ CaseStore  = (*casestore.FileStore)(nil)
	_ CaseStore  = (*repositories.CaseRepository)(nil)
)

const optimizeInterval = 24 * time.Hour

type Stores struct {
	States StateStore
	Cases  CaseStore
	db     *sqlite.Database
}

// Open creates the data directory and the stores of cfg.StorageBackend. Raw files always live in the case
// containers under cfg.DataDir; the backend decides where the case records and the AppState are kept.
func Open(ctx context.Context, logger *slog.Logger, cfg config.Config) (*Stores, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil { //nolint:mnd // rwxr-xr-x
		return nil, errors.Join(errors.ErrPersistence, errors.Wrap(err, "create data dir",
			slog.String("data_dir", cfg.DataDir)))
	}
	blobs := blobstore.New(cfg.DataDir)

	switch cfg.StorageBackend {
	case config.BackendSQLite:
		if !strings.Contains(cfg.SQLiteURL, ":memory:") {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLiteURL), 0o755); err != nil { //nolint:mnd // rwxr-xr-x
				return nil, errors.Join(errors.ErrPersistence, errors.Wrap(err, "create database dir"))
			}
		}
		db, err := sqlite.NewDatabase(ctx, cfg.SQLiteURL, logger)
		if err != nil {
			return nil, errors.Wrap(err, "open database", slog.String("sqlite_url", cfg.SQLiteURL))
		}
		go db.StartOptimizer(ctx, optimizeInterval)
		return &Stores{
			States: repositories.NewStateRepository(db, logger),
			Cases:  repositories.NewCaseRepository(db, blobs, cfg.CaseIDPrefix, logger),
			db:     db,
		}, nil
	case config.BackendFile:
		return &Stores{
			States: statestore.NewFileStore(logger, cfg.StateFile),
			Cases:  casestore.NewFileStore(logger, blobs, cfg.CaseIDPrefix),
			db:     nil,
		}, nil
	default:
		return nil, errors.Wrap(config.ErrInvalidConfig, "unknown storage backend",
			slog.String("backend", cfg.StorageBackend))
	}
}

// Close releases the database connections of the SQLite backend.
func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Snapshot is what the admin surfaces show about the workflow.
type Snapshot struct {
	State models.AppState       `json:"state"`
	Cases []models.CaseOverview `json:"cases"`
}

// Snapshot reads the persisted state and the case overview.
func (s *Stores) Snapshot(ctx context.Context) (Snapshot, error) {
	cases, err := s.Cases.List(ctx)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "list cases")
	}
	return Snapshot{State: s.States.Load(ctx), Cases: cases}, nil
}

// OpenFromEnv opens the configured stores for tools that never call the collaborators, so only the storage
// settings of the environment need to be valid.
func OpenFromEnv(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) (*Stores, error) {
	var cfg config.Config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return nil, errors.Wrap(err, "populate config")
	}
	return Open(ctx, logger, cfg)
}
