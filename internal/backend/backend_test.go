package backend_test

import (
	"context"
	"github.com/myrjola/casebot/internal/backend"
	"github.com/myrjola/casebot/internal/config"
	"github.com/myrjola/casebot/internal/models"
	"github.com/myrjola/casebot/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen(t *testing.T) {
	for _, storage := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(storage, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			dir := t.TempDir()
			cfg := config.Config{
				DataDir:        filepath.Join(dir, "data"),
				StateFile:      filepath.Join(dir, "data", "app_state.json"),
				StorageBackend: storage,
				SQLiteURL:      filepath.Join(dir, "db", "casebot.sqlite"),
				CaseIDPrefix:   "SEPPATRI",
			}
			stores, err := backend.Open(ctx, testhelpers.NewLogger(io.Discard), cfg)
			require.NoError(t, err)
			defer func() { require.NoError(t, stores.Close()) }()

			id, err := stores.Cases.CreateCase(ctx, models.NewCase{
				Fields:     models.ExtractedFields{CaseNumber: "12", ReportNumber: "345", CaseYear: 2024},
				Document:   []byte("%PDF"),
				ReceivedAt: time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC),
			})
			require.NoError(t, err)
			require.NoError(t, stores.States.Save(ctx, models.WaitingForPdf()))
			require.NoError(t, stores.States.Save(ctx, models.Collecting(id)))

			snapshot, err := stores.Snapshot(ctx)
			require.NoError(t, err)
			require.Equal(t, models.Collecting(id), snapshot.State)
			require.Len(t, snapshot.Cases, 1)

			require.NoError(t, stores.States.Reset(ctx))
			require.Equal(t, models.DefaultAppState(), stores.States.Load(ctx))
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := backend.Open(context.Background(), testhelpers.NewLogger(io.Discard), config.Config{
		DataDir: t.TempDir(), StorageBackend: "s3",
	})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
