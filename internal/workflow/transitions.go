package workflow

import (
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"log/slog"
)

// allowedTransitions lists the mode changes a committed transition may make. Self transitions that do not
// change the AppState are never persisted and therefore not listed.
var allowedTransitions = map[models.Mode]map[models.Mode]struct{}{
	models.ModeIdle: {
		models.ModeWaitingForPdf: {},
	},
	models.ModeWaitingForPdf: {
		models.ModeIdle:               {},
		models.ModeEvidenceCollection: {},
	},
	models.ModeEvidenceCollection: {
		models.ModeIdle: {},
	},
}

// ValidateTransition reports whether the engine may move from one state to the other.
func ValidateTransition(from, to models.AppState) error {
	if err := to.Validate(); err != nil {
		return err
	}
	if _, ok := allowedTransitions[from.Mode][to.Mode]; !ok {
		return errors.Wrap(errors.ErrConcurrencyViolation, "invalid transition",
			slog.String("from", string(from.Mode)), slog.String("to", string(to.Mode)))
	}
	return nil
}
