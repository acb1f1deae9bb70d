package models

import (
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
)

// Mode is the phase of the case workflow.
type Mode string

const (
	ModeIdle               Mode = "Idle"
	ModeWaitingForPdf      Mode = "WaitingForPdf"
	ModeEvidenceCollection Mode = "EvidenceCollection"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeIdle, ModeWaitingForPdf, ModeEvidenceCollection:
		return true
	default:
		return false
	}
}

// AppState is the single persisted record of the workflow. ActiveCaseID is set if and only if Mode is
// ModeEvidenceCollection.
type AppState struct {
	Mode         Mode    `json:"mode"`
	ActiveCaseID *string `json:"active_case_id"`
}

// DefaultAppState is the state of a fresh installation and the fallback for unreadable state.
func DefaultAppState() AppState {
	return AppState{Mode: ModeIdle, ActiveCaseID: nil}
}

// WaitingForPdf is the state after a case was started but before the intake document arrived.
func WaitingForPdf() AppState {
	return AppState{Mode: ModeWaitingForPdf, ActiveCaseID: nil}
}

// Collecting is the state while evidence is collected for caseID.
func Collecting(caseID string) AppState {
	return AppState{Mode: ModeEvidenceCollection, ActiveCaseID: &caseID}
}

// CaseID returns the active case id or the empty string.
func (s AppState) CaseID() string {
	if s.ActiveCaseID == nil {
		return ""
	}
	return *s.ActiveCaseID
}

// Validate checks the mode and the active case invariant.
func (s AppState) Validate() error {
	if !s.Mode.Valid() {
		return errors.Wrap(errors.ErrStateCorruption, "unknown mode", slog.String("mode", string(s.Mode)))
	}
	hasCase := s.ActiveCaseID != nil && *s.ActiveCaseID != ""
	if hasCase != (s.Mode == ModeEvidenceCollection) {
		return errors.Wrap(errors.ErrStateCorruption, "active case does not match mode",
			slog.String("mode", string(s.Mode)), slog.String("active_case_id", s.CaseID()))
	}
	return nil
}

// Equal compares two states by value.
func (s AppState) Equal(other AppState) bool {
	return s.Mode == other.Mode && s.CaseID() == other.CaseID()
}
