package workflow_test

import (
	"context"
	"github.com/myrjola/casebot/internal/models"
	"github.com/myrjola/casebot/internal/workflow"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecover_Idle(t *testing.T) {
	h := newHarness(t)
	directives, err := h.engine.Recover(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.DefaultAppState(), h.engine.State())
	prompt, ok := find[workflow.ShowPrompt](directives)
	require.True(t, ok)
	require.Equal(t, "start", prompt.Buttons[0].Action)
}

func TestRecover_ResumesCollection(t *testing.T) {
	h := newHarness(t)
	h.startCollecting(t)
	h.handle(t, workflow.PhotoReceived{Data: []byte("jpeg")})

	h.engine = h.restart()
	directives, err := h.engine.Recover(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.Collecting(caseID), h.engine.State())
	h.requireConsistent(t)
	require.Empty(t, findAll[workflow.Warn](directives))
	prompt, ok := find[workflow.ShowPrompt](directives)
	require.True(t, ok)
	require.Contains(t, prompt.Text, "Resuming evidence collection")

	// Collection continues with the next id.
	h.handle(t, workflow.TextReceived{Text: "after restart"})
	require.Equal(t, "ev-0002", h.loadCase(t).Evidence[1].ID)
}

func TestRecover_MissingFileIsReported(t *testing.T) {
	h := newHarness(t)
	h.startCollecting(t)
	h.handle(t, workflow.PhotoReceived{Data: []byte("jpeg")})

	c := h.loadCase(t)
	dir, err := h.blobs.Locate(caseID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, c.Evidence[0].StoragePath)))

	h.engine = h.restart()
	directives, err := h.engine.Recover(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.Collecting(caseID), h.engine.State(), "the record is trusted")
	_, warned := find[workflow.Warn](directives)
	require.True(t, warned)
}

func TestRecover_ActiveCaseGone(t *testing.T) {
	tests := []struct {
		name  string
		corrupt func(t *testing.T, h *harness)
	}{
		{
			name: "deleted",
			corrupt: func(t *testing.T, h *harness) {
				t.Helper()
				require.NoError(t, h.cases.Delete(context.Background(), caseID))
			},
		},
		{
			name: "finished",
			corrupt: func(t *testing.T, h *harness) {
				t.Helper()
				require.NoError(t, h.cases.Finalize(context.Background(), caseID, time.Now()))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.startCollecting(t)
			tt.corrupt(t, h)

			h.engine = h.restart()
			directives, err := h.engine.Recover(context.Background())
			require.NoError(t, err)
			require.Equal(t, models.DefaultAppState(), h.engine.State())
			h.requireConsistent(t)
			_, unpinned := find[workflow.Unpin](directives)
			require.True(t, unpinned)
		})
	}
}

func TestRecover_FinalizesAbandonedCases(t *testing.T) {
	h := newHarness(t)
	h.startCollecting(t)

	// Leave the case open while the state says Idle, as after a crash between finalize and save.
	h.states.state = models.DefaultAppState()
	h.engine = h.restart()
	_, err := h.engine.Recover(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.DefaultAppState(), h.engine.State())
	loaded := h.loadCase(t)
	require.True(t, loaded.Finished())
}

func TestRecover_CorruptStateFallsBackToIdle(t *testing.T) {
	h := newHarness(t)
	h.states.state = models.AppState{Mode: models.ModeEvidenceCollection, ActiveCaseID: nil}
	directives, err := h.engine.Recover(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.DefaultAppState(), h.engine.State())
	require.NotEmpty(t, directives)
}
