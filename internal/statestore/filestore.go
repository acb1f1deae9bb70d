// Package statestore persists the workflow AppState as a single JSON file.
package statestore

import (
	"context"
	"encoding/json"
	"github.com/myrjola/casebot/internal/atomicfile"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"io/fs"
	"log/slog"
	"os"
)

type FileStore struct {
	path   string
	logger *slog.Logger
	// write is atomicfile.WriteFile outside tests.
	write func(path string, data []byte) error
}

func NewFileStore(logger *slog.Logger, path string) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With(slog.String("source", "StateStore")),
		write:  atomicfile.WriteFile,
	}
}

// Path returns the canonical state file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the persisted state. A missing file yields the default state. Unreadable or invalid content is
// logged as state corruption and also yields the default state; collection is never assumed.
func (s *FileStore) Load(ctx context.Context) models.AppState {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "no persisted state, starting idle", slog.String("path", s.path))
		return models.DefaultAppState()
	}
	if err != nil {
		s.logCorruption(ctx, errors.Wrap(errors.Join(errors.ErrStateCorruption, err), "read state"))
		return models.DefaultAppState()
	}

	var state models.AppState
	if err = json.Unmarshal(data, &state); err != nil {
		s.logCorruption(ctx, errors.Wrap(errors.Join(errors.ErrStateCorruption, err), "unmarshal state"))
		return models.DefaultAppState()
	}
	if err = state.Validate(); err != nil {
		s.logCorruption(ctx, err)
		return models.DefaultAppState()
	}
	return state
}

// Save replaces the state file atomically. Invalid states are refused.
func (s *FileStore) Save(ctx context.Context, state models.AppState) error {
	if err := state.Validate(); err != nil {
		return errors.Wrap(err, "refuse to save invalid state")
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "marshal state")
	}
	if err = s.write(s.path, append(data, '\n')); err != nil {
		return errors.Wrap(err, "save state", slog.String("path", s.path))
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "state saved",
		slog.String("mode", string(state.Mode)), slog.String("active_case_id", state.CaseID()))
	return nil
}

// Reset overwrites the persisted state with the default state.
func (s *FileStore) Reset(ctx context.Context) error {
	return s.Save(ctx, models.DefaultAppState())
}

func (s *FileStore) logCorruption(ctx context.Context, err error) {
	s.logger.LogAttrs(ctx, slog.LevelWarn, "persisted state unusable, resetting to idle",
		slog.String("path", s.path), errors.SlogError(err))
}
