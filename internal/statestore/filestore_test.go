package statestore

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"github.com/myrjola/casebot/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(testhelpers.NewLogger(io.Discard), filepath.Join(t.TempDir(), "app_state.json"))
}

func TestFileStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.True(t, store.Load(ctx).Equal(models.DefaultAppState()), "missing file loads the default")

	require.NoError(t, store.Save(ctx, models.Collecting("SEPPATRI_1_2_2024")))
	require.True(t, store.Load(ctx).Equal(models.Collecting("SEPPATRI_1_2_2024")))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.JSONEq(t, `{"mode":"EvidenceCollection","active_case_id":"SEPPATRI_1_2_2024"}`, string(data))

	require.NoError(t, store.Reset(ctx))
	require.True(t, store.Load(ctx).Equal(models.DefaultAppState()))
}

func TestFileStore_RefusesInvalidState(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	err := store.Save(ctx, models.AppState{Mode: models.ModeEvidenceCollection})
	require.ErrorIs(t, err, errors.ErrStateCorruption)
	_, statErr := os.Stat(store.Path())
	require.True(t, os.IsNotExist(statErr))
}

func TestFileStore_Corruption(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "garbage", content: "{not json"},
		{name: "truncated", content: `{"mode":"EvidenceColl`},
		{name: "collecting without case", content: `{"mode":"EvidenceCollection","active_case_id":null}`},
		{name: "unknown mode", content: `{"mode":"Archiving","active_case_id":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			store := NewFileStore(testhelpers.NewLogger(&logs), filepath.Join(t.TempDir(), "app_state.json"))
			require.NoError(t, os.WriteFile(store.Path(), []byte(tt.content), 0o600))

			require.True(t, store.Load(context.Background()).Equal(models.DefaultAppState()))
			require.Contains(t, logs.String(), "persisted state unusable")
		})
	}
}

func TestFileStore_InterruptedSave(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	before := models.Collecting("C1")
	require.NoError(t, store.Save(ctx, before))

	// Simulate a crash after the temporary file was partially written but before the rename.
	store.write = func(path string, data []byte) error {
		tmp := filepath.Join(filepath.Dir(path), ".app_state.json.123.tmp")
		if err := os.WriteFile(tmp, data[:len(data)/2], 0o600); err != nil {
			return err
		}
		return errors.Wrap(errors.ErrPersistence, "simulated crash")
	}
	err := store.Save(ctx, models.DefaultAppState())
	require.ErrorIs(t, err, errors.ErrPersistence)

	require.True(t, store.Load(ctx).Equal(before), "load returns the previous snapshot")
}

func TestFileStore_LeftoverTempFile(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	before := models.Collecting("SEPPATRI_1_2_2024")
	require.NoError(t, store.Save(ctx, before))

	// A writer that died before the rename leaves a partial temporary file next to the canonical one.
	full, err := json.MarshalIndent(models.WaitingForPdf(), "", "  ")
	require.NoError(t, err)
	tmp, err := os.CreateTemp(filepath.Dir(store.Path()), "."+filepath.Base(store.Path())+".*.tmp")
	require.NoError(t, err)
	_, err = tmp.Write(full[:len(full)/2])
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	require.True(t, store.Load(ctx).Equal(before), "load returns the previous snapshot")

	// The next save goes through the atomic writer and is unaffected by the leftover.
	require.NoError(t, store.Save(ctx, models.DefaultAppState()))
	require.True(t, store.Load(ctx).Equal(models.DefaultAppState()))
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.JSONEq(t, `{"mode":"Idle","active_case_id":null}`, string(data))
	require.FileExists(t, tmp.Name())
}
