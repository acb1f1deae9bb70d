package repositories

import (
	"context"
	"database/sql"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"github.com/myrjola/casebot/internal/sqlite"
	"log/slog"
	"time"
)

// StateRepository persists the AppState as the single row of app_state. Each save is one transaction, which gives
// the same all-or-nothing guarantee as the file backend's rename.
type StateRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewStateRepository(dbs *sqlite.Database, logger *slog.Logger) *StateRepository {
	return &StateRepository{
		dbs:    dbs,
		logger: logger.With(slog.String("source", "StateRepository")),
	}
}

type stateRow struct {
	Mode         string         `db:"mode"`
	ActiveCaseID sql.NullString `db:"active_case_id"`
}

// Load reads the state row. A missing row yields the default state, unreadable rows are logged as state
// corruption and also yield the default state.
func (r *StateRepository) Load(ctx context.Context) models.AppState {
	var row stateRow
	err := r.dbs.ReadOnly.GetContext(ctx, &row, `SELECT mode, active_case_id FROM app_state WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "no persisted state, starting idle")
		return models.DefaultAppState()
	}
	if err != nil {
		err = errors.Wrap(errors.Join(errors.ErrStateCorruption, err), "read state")
		r.logger.LogAttrs(ctx, slog.LevelWarn, "persisted state unusable, resetting to idle", errors.SlogError(err))
		return models.DefaultAppState()
	}
	state := models.AppState{Mode: models.Mode(row.Mode), ActiveCaseID: nil}
	if row.ActiveCaseID.Valid {
		state.ActiveCaseID = &row.ActiveCaseID.String
	}
	if err = state.Validate(); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "persisted state unusable, resetting to idle", errors.SlogError(err))
		return models.DefaultAppState()
	}
	return state
}

// Save upserts the state row. Invalid states are refused.
func (r *StateRepository) Save(ctx context.Context, state models.AppState) error {
	if err := state.Validate(); err != nil {
		return errors.Wrap(err, "refuse to save invalid state")
	}
	stmt := `INSERT INTO app_state (id, mode, active_case_id, updated_at)
VALUES (1, :mode, :active_case_id, :updated_at)
ON CONFLICT (id) DO UPDATE SET mode           = excluded.mode,
                               active_case_id = excluded.active_case_id,
                               updated_at     = excluded.updated_at`
	params := map[string]any{
		"mode":           string(state.Mode),
		"active_case_id": nullString(state.CaseID()),
		"updated_at":     formatTime(time.Now()),
	}
	if _, err := r.dbs.ReadWrite.NamedExecContext(ctx, stmt, params); err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "upsert state")
	}
	return nil
}

// Reset overwrites the persisted state with the default state.
func (r *StateRepository) Reset(ctx context.Context) error {
	return r.Save(ctx, models.DefaultAppState())
}
