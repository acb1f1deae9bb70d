package workflow

import (
	"context"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/logging"
	"github.com/myrjola/casebot/internal/models"
	"log/slog"
)

// Recover loads the persisted state and reconciles it with the case store after a restart. It returns the
// directives that bring the user back to where the workflow stands.
//
// Rules:
//   - a state that breaks the active case invariant was already reset to Idle by the state store;
//   - EvidenceCollection whose case is missing or finished falls back to Idle;
//   - EvidenceCollection with a valid case is trusted, missing raw files are logged and collection resumes;
//   - WaitingForPdf with an unfinished case adopts the newest one, because the crash happened between creating
//     the case and saving the state;
//   - every other unfinished case is finalized so that at most one case stays open.
func (e *Engine) Recover(ctx context.Context) ([]Directive, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loaded := e.states.Load(ctx)
	e.state = loaded
	ctx = logging.WithAttrs(ctx, slog.String("mode", string(loaded.Mode)), slog.String("case_id", loaded.CaseID()))

	overviews, err := e.cases.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list cases")
	}
	var unfinished []models.CaseOverview
	for _, o := range overviews {
		if !o.Finished() {
			unfinished = append(unfinished, o)
		}
	}

	var directives []Directive
	switch loaded.Mode {
	case models.ModeEvidenceCollection:
		directives, err = e.resumeCollection(ctx, loaded.CaseID())
	case models.ModeWaitingForPdf:
		directives, err = e.adoptOrphan(ctx, unfinished)
	case models.ModeIdle:
		directives = []Directive{idlePrompt(msgIdle)}
	default:
		directives = []Directive{idlePrompt(msgIdle)}
	}
	if err != nil {
		return directives, err
	}

	active := e.state.CaseID()
	for _, o := range unfinished {
		if o.ID == active {
			continue
		}
		e.logger.LogAttrs(ctx, slog.LevelWarn, "finalizing abandoned case", slog.String("abandoned_case_id", o.ID))
		if err = e.cases.Finalize(ctx, o.ID, e.now()); err != nil {
			return directives, errors.Wrap(err, "finalize abandoned case", slog.String("abandoned_case_id", o.ID))
		}
	}

	e.logger.LogAttrs(ctx, slog.LevelInfo, "recovered",
		slog.String("recovered_mode", string(e.state.Mode)), slog.String("active_case_id", e.state.CaseID()))
	return directives, nil
}

func (e *Engine) resumeCollection(ctx context.Context, caseID string) ([]Directive, error) {
	c, err := e.cases.Load(ctx, caseID)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		e.logger.LogAttrs(ctx, slog.LevelWarn, "active case missing, returning to idle")
		return e.resetToIdle(ctx)
	case err != nil:
		return nil, errors.Wrap(err, "load active case")
	case c.Finished():
		e.logger.LogAttrs(ctx, slog.LevelWarn, "active case already finished, returning to idle")
		return e.resetToIdle(ctx)
	}

	missing, err := e.cases.Verify(ctx, caseID)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "integrity check failed", errors.SlogError(err))
	}
	for _, rel := range missing {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "referenced file missing", slog.String("file", rel))
	}
	directives := []Directive{Pin{Text: statusText(c)}}
	if len(missing) > 0 {
		directives = append(directives, Warn{Text: "Some files of the active case are missing from storage."})
	}
	return append(directives, collectingPrompt(c.ID, "Resuming evidence collection for "+displayID(c)+".\n"+
		msgCollectHelp)), nil
}

func (e *Engine) adoptOrphan(ctx context.Context, unfinished []models.CaseOverview) ([]Directive, error) {
	if len(unfinished) == 0 {
		return []Directive{waitingPrompt(msgSendPdf)}, nil
	}
	newest := unfinished[0]
	for _, o := range unfinished[1:] {
		if o.ReceivedAt.After(newest.ReceivedAt) {
			newest = o
		}
	}
	e.logger.LogAttrs(ctx, slog.LevelWarn, "adopting case created before the crash",
		slog.String("adopted_case_id", newest.ID))
	if err := e.commit(ctx, models.Collecting(newest.ID)); err != nil {
		return nil, err
	}
	c, err := e.cases.Load(ctx, newest.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load adopted case")
	}
	return briefingDirectives(c), nil
}

func (e *Engine) resetToIdle(ctx context.Context) ([]Directive, error) {
	if err := e.commit(ctx, models.DefaultAppState()); err != nil {
		return nil, err
	}
	return []Directive{Unpin{}, idlePrompt(msgIdle)}, nil
}
