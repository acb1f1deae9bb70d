package sqlite_test

import (
	"context"
	"github.com/myrjola/casebot/internal/sqlite"
	"github.com/myrjola/casebot/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDatabase(t *testing.T) {
	ctx := context.Background()
	logger := testhelpers.NewLogger(io.Discard)
	url := filepath.Join(t.TempDir(), "casebot.sqlite")

	db, err := sqlite.NewDatabase(ctx, url, logger)
	require.NoError(t, err)
	version, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, version)

	_, err = db.ReadWrite.ExecContext(ctx,
		`INSERT INTO app_state (id, mode, active_case_id, updated_at) VALUES (1, 'Idle', NULL, 'now')`)
	require.NoError(t, err)

	_, err = db.ReadOnly.ExecContext(ctx, `DELETE FROM app_state`)
	require.Error(t, err, "read-only pool must reject writes")
	require.NoError(t, db.Close())

	// Reopening does not reapply migrations and keeps the data.
	db, err = sqlite.NewDatabase(ctx, url, logger)
	require.NoError(t, err)
	var mode string
	require.NoError(t, db.ReadOnly.GetContext(ctx, &mode, `SELECT mode FROM app_state WHERE id = 1`))
	require.Equal(t, "Idle", mode)
	require.NoError(t, db.Close())
}

func TestSchemaConstraints(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{
			name:    "collecting requires an active case",
			query:   `INSERT INTO app_state (id, mode, active_case_id, updated_at) VALUES (1, 'EvidenceCollection', NULL, 'now')`,
			wantErr: true,
		},
		{
			name:    "idle forbids an active case",
			query:   `INSERT INTO app_state (id, mode, active_case_id, updated_at) VALUES (1, 'Idle', 'C1', 'now')`,
			wantErr: true,
		},
		{
			name:    "evidence needs its case",
			query:   `INSERT INTO evidence (case_id, id, seq, kind, timestamp) VALUES ('missing', 'ev-0001', 1, 'text', 'now')`,
			wantErr: true,
		},
		{
			name:    "unknown evidence kind",
			query:   `INSERT INTO evidence (case_id, id, seq, kind, timestamp) VALUES ('C1', 'ev-0001', 1, 'video', 'now')`,
			wantErr: true,
		},
		{
			name:    "valid state",
			query:   `INSERT INTO app_state (id, mode, active_case_id, updated_at) VALUES (1, 'WaitingForPdf', NULL, 'now')`,
			wantErr: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err = db.ReadWrite.ExecContext(ctx, tt.query)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStartOptimizer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	db, err := sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	done := make(chan struct{})
	go func() {
		db.StartOptimizer(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("optimizer did not stop")
	}
}
