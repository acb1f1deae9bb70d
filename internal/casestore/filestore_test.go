package casestore_test

import (
	"context"
	"github.com/myrjola/casebot/internal/blobstore"
	"github.com/myrjola/casebot/internal/casestore"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"github.com/myrjola/casebot/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var receivedAt = time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)

func newStore(t *testing.T) (*casestore.FileStore, *blobstore.Store) {
	t.Helper()
	blobs := blobstore.New(t.TempDir())
	return casestore.NewFileStore(testhelpers.NewLogger(io.Discard), blobs, "SEPPATRI"), blobs
}

func newCase() models.NewCase {
	summary := "burglary at a pharmacy"
	return models.NewCase{
		Fields:       models.ExtractedFields{CaseNumber: "12", ReportNumber: "345", CaseYear: 2024, City: "Recife"},
		Summary:      &summary,
		Document:     []byte("%PDF-1.4"),
		DocumentName: "boletim.pdf",
		ReceivedAt:   receivedAt,
	}
}

func TestFileStore_CreateCase(t *testing.T) {
	ctx := context.Background()
	store, blobs := newStore(t)

	id, err := store.CreateCase(ctx, newCase())
	require.NoError(t, err)
	require.Equal(t, "SEPPATRI_12_345_2024", id)

	c, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "SEPPATRI 12/345/2024", c.DisplayID)
	require.True(t, receivedAt.Equal(c.ReceivedAt))
	require.Equal(t, "burglary at a pharmacy", *c.Summary)
	require.Nil(t, c.Checklist)
	require.Equal(t, "intake.pdf", c.DocumentPath)
	require.Empty(t, c.Evidence)
	require.FileExists(t, filepath.Join(blobs.Container(2024, id), "intake.pdf"))
	require.FileExists(t, filepath.Join(blobs.Container(2024, id), casestore.MetadataFile))

	// The same document again gets a distinct id instead of overwriting the first case.
	second, err := store.CreateCase(ctx, newCase())
	require.NoError(t, err)
	require.Equal(t, "SEPPATRI_12_345_2024-2", second)
}

func TestFileStore_AppendEvidence(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	id, err := store.CreateCase(ctx, newCase())
	require.NoError(t, err)

	at := receivedAt.Add(time.Hour)
	photo := models.NewPhoto("ev-0001", at, "photos/ev-0001.jpg")
	require.NoError(t, store.AppendEvidence(ctx, id, photo, []byte("jpeg")))
	require.NoError(t, store.AppendEvidence(ctx, id, photo, []byte("jpeg")), "replay is a no-op")
	require.NoError(t, store.AppendEvidence(ctx, id, models.NewTextNote("ev-0002", at.Add(time.Minute), "window"), nil))

	c, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.Len(t, c.Evidence, 2)
	require.Equal(t, "ev-0001", c.Evidence[0].ID)
	require.False(t, c.Evidence[0].Fingerprint())
	require.True(t, at.Equal(*c.AttendanceStartedAt))

	missing, err := store.Verify(ctx, id)
	require.NoError(t, err)
	require.Empty(t, missing)

	f, err := store.OpenFile(ctx, id, "photos/ev-0001.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "jpeg", string(data))

	_, err = store.OpenFile(ctx, id, casestore.MetadataFile)
	require.ErrorIs(t, err, errors.ErrNotFound)

	err = store.AppendEvidence(ctx, id, models.NewTextNote("ev-0003", at, " "), nil)
	require.ErrorIs(t, err, errors.ErrInvalidEvidence)
}

func TestFileStore_MarkFingerprint(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	id, err := store.CreateCase(ctx, newCase())
	require.NoError(t, err)
	require.NoError(t, store.AppendEvidence(ctx, id, models.NewPhoto("ev-0001", receivedAt, "photos/ev-0001.jpg"), []byte("a")))
	require.NoError(t, store.AppendEvidence(ctx, id, models.NewTextNote("ev-0002", receivedAt, "note"), nil))

	require.NoError(t, store.MarkFingerprint(ctx, id, "ev-0001"))
	require.NoError(t, store.MarkFingerprint(ctx, id, "ev-0001"))
	require.ErrorIs(t, store.MarkFingerprint(ctx, id, "ev-0002"), errors.ErrInvalidEvidence)
	require.ErrorIs(t, store.MarkFingerprint(ctx, id, "ev-0099"), errors.ErrNotFound)

	c, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.True(t, c.Evidence[0].Fingerprint())
}

func TestFileStore_FinalizeAndLocation(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	id, err := store.CreateCase(ctx, newCase())
	require.NoError(t, err)

	recorded := receivedAt.Add(time.Minute)
	require.NoError(t, store.SetLocation(ctx, id, models.Location{Latitude: -8.05, Longitude: -34.9, RecordedAt: &recorded}))
	require.NoError(t, store.SetLocation(ctx, id, models.Location{Latitude: -8.06, Longitude: -34.8, RecordedAt: &recorded}))

	finishedAt := receivedAt.Add(2 * time.Hour)
	require.NoError(t, store.Finalize(ctx, id, finishedAt))
	require.NoError(t, store.Finalize(ctx, id, finishedAt.Add(time.Hour)), "finalizing twice keeps the first time")

	c, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.InDelta(t, -8.06, c.AttendanceLocation.Latitude, 0.0001)
	require.True(t, finishedAt.Equal(*c.CollectionFinishedAt))
	require.True(t, recorded.Equal(*c.AttendanceStartedAt))

	err = store.AppendEvidence(ctx, id, models.NewTextNote("ev-0001", finishedAt, "late"), nil)
	require.ErrorIs(t, err, errors.ErrCaseFinished)
}

func TestFileStore_ListVerifyDelete(t *testing.T) {
	ctx := context.Background()
	store, blobs := newStore(t)

	first, err := store.CreateCase(ctx, newCase())
	require.NoError(t, err)
	later := newCase()
	later.Fields = models.ExtractedFields{CaseNumber: "13", ReportNumber: "1", CaseYear: 2023}
	later.ReceivedAt = receivedAt.Add(time.Hour)
	second, err := store.CreateCase(ctx, later)
	require.NoError(t, err)

	overviews, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, overviews, 2)
	require.Equal(t, first, overviews[0].ID)
	require.Equal(t, second, overviews[1].ID)

	require.NoError(t, os.Remove(filepath.Join(blobs.Container(2023, second), "intake.pdf")))
	missing, err := store.Verify(ctx, second)
	require.NoError(t, err)
	require.Equal(t, []string{"intake.pdf"}, missing)

	require.NoError(t, store.Delete(ctx, first))
	_, err = store.Load(ctx, first)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestFileStore_CaseIDFor(t *testing.T) {
	store, _ := newStore(t)
	tests := []struct {
		name   string
		fields models.ExtractedFields
		want   string
		ok     bool
	}{
		{name: "identified", fields: newCase().Fields, want: "SEPPATRI_12_345_2024", ok: true},
		{name: "missing report number", fields: models.ExtractedFields{CaseNumber: "12", CaseYear: 2024}},
		{name: "empty", fields: models.ExtractedFields{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := store.CaseIDFor(tt.fields)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
