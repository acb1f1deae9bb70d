// Package workflow drives a single forensic case from intake document to the end of evidence collection.
//
// The Engine consumes [Event]s one at a time, applies the transition rules of the current mode, persists the
// result and answers with [Directive]s for the transport. A transition either commits fully (case mutation and
// AppState persisted) or leaves the last persisted snapshot untouched.
package workflow

import (
	"context"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/evidence"
	"github.com/myrjola/casebot/internal/logging"
	"github.com/myrjola/casebot/internal/models"
	"log/slog"
	"sync"
	"time"
)

// Options wires the Engine to its stores and collaborators.
type Options struct {
	States      StateStore
	Cases       CaseStore
	Extractor   Extractor
	Summarizer  Summarizer
	Transcriber Transcriber
	// Timeout bounds every collaborator call.
	Timeout time.Duration
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

type Engine struct {
	// mu serializes Handle and Recover. It is held for the whole transition including collaborator calls.
	mu          sync.Mutex
	state       models.AppState
	states      StateStore
	cases       CaseStore
	extractor   Extractor
	summarizer  Summarizer
	transcriber Transcriber
	ingest      *evidence.Ingestor
	// pending is the intake document waiting for a duplicate decision. It lives only while WaitingForPdf.
	pending     *pendingDocument
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewEngine creates an engine in the Idle state. Call Recover before handling events to load the persisted state.
func NewEngine(opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		mu:          sync.Mutex{},
		state:       models.DefaultAppState(),
		states:      opts.States,
		cases:       opts.Cases,
		extractor:   opts.Extractor,
		summarizer:  opts.Summarizer,
		transcriber: opts.Transcriber,
		ingest:      evidence.NewIngestor(now),
		pending:     nil,
		timeout:     opts.Timeout,
		now:         now,
		logger:      opts.Logger.With(slog.String("source", "WorkflowEngine")),
	}
}

// State returns the last persisted AppState.
func (e *Engine) State() models.AppState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Handle applies ev to the current state and returns the directives for the transport. The returned error is
// non-nil only when persistence failed; the directives then still carry a warning for the user.
func (e *Engine) Handle(ctx context.Context, ev Event) ([]Directive, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.state
	ctx = logging.WithAttrs(ctx,
		slog.String("event", ev.Name()),
		slog.String("mode", string(from.Mode)),
		slog.String("case_id", from.CaseID()),
	)

	directives, err := e.dispatch(ctx, from, ev)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelError, "event failed", errors.SlogError(err))
		return directives, err
	}
	e.logger.LogAttrs(ctx, slog.LevelInfo, "event handled", slog.String("new_mode", string(e.state.Mode)))
	return directives, nil
}

func (e *Engine) dispatch(ctx context.Context, from models.AppState, ev Event) ([]Directive, error) {
	if caseID, scoped := targetCase(ev); scoped && caseID != "" && caseID != from.CaseID() {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "ignoring event for stale case", slog.String("target_case_id", caseID))
		return []Directive{Warn{Text: msgNotApplicable}, e.reprompt(from)}, nil
	}
	if _, ok := ev.(ShowStatus); ok {
		return e.status(ctx, from)
	}

	switch from.Mode {
	case models.ModeIdle:
		return e.handleIdle(ctx, ev)
	case models.ModeWaitingForPdf:
		return e.handleWaitingForPdf(ctx, ev)
	case models.ModeEvidenceCollection:
		return e.handleEvidenceCollection(ctx, from.CaseID(), ev)
	default:
		// Validate on load and commit keeps unknown modes out of memory.
		return []Directive{e.reprompt(from)}, nil
	}
}

func (e *Engine) handleIdle(ctx context.Context, ev Event) ([]Directive, error) {
	switch ev.(type) {
	case StartCase:
		if err := e.commit(ctx, models.WaitingForPdf()); err != nil {
			return persistenceFailed(err)
		}
		return []Directive{waitingPrompt(msgSendPdf)}, nil
	default:
		return []Directive{idlePrompt(msgIdle)}, nil
	}
}

func (e *Engine) handleWaitingForPdf(ctx context.Context, ev Event) ([]Directive, error) {
	switch ev := ev.(type) {
	case Cancel:
		if err := e.commit(ctx, models.DefaultAppState()); err != nil {
			return persistenceFailed(err)
		}
		return []Directive{idlePrompt(msgCancelled)}, nil
	case DocumentReceived:
		return e.receiveDocument(ctx, ev)
	case ContinueCase:
		return e.continueCase(ctx, ev)
	case OverwriteCase:
		return e.overwriteCase(ctx, ev)
	default:
		return []Directive{waitingPrompt(msgSendPdf)}, nil
	}
}

func (e *Engine) handleEvidenceCollection(ctx context.Context, caseID string, ev Event) ([]Directive, error) {
	switch ev := ev.(type) {
	case TextReceived, PhotoReceived, VoiceReceived:
		return e.collect(ctx, caseID, ev)
	case LocationReceived:
		return e.locate(ctx, caseID, ev)
	case MarkFingerprint:
		return e.markFingerprint(ctx, caseID, ev)
	case RequestFinish:
		c, err := e.loadActive(ctx, caseID)
		if err != nil {
			return e.activeCaseUnavailable(ctx, err)
		}
		return []Directive{confirmFinishPrompt(c)}, nil
	case FinishCollection:
		return e.finish(ctx, caseID)
	case RequestDiscard, Cancel:
		c, err := e.loadActive(ctx, caseID)
		if err != nil {
			return e.activeCaseUnavailable(ctx, err)
		}
		return []Directive{confirmDiscardPrompt(c)}, nil
	case DiscardCase:
		return e.discard(ctx, caseID)
	case StartCase:
		return []Directive{collectingPrompt(caseID, msgFinishFirst)}, nil
	default:
		return []Directive{collectingPrompt(caseID, msgCollectHelp)}, nil
	}
}

// commit validates and persists next, and only then makes it the current state.
func (e *Engine) commit(ctx context.Context, next models.AppState) error {
	from := e.state
	if err := ValidateTransition(from, next); err != nil {
		return errors.Wrap(err, "validate transition")
	}
	if err := e.states.Save(ctx, next); err != nil {
		if !errors.Is(err, errors.ErrPersistence) {
			err = errors.Join(errors.ErrPersistence, err)
		}
		return errors.Wrap(err, "save state",
			slog.String("from", string(from.Mode)), slog.String("to", string(next.Mode)))
	}
	e.state = next
	if next.Mode != models.ModeWaitingForPdf {
		e.pending = nil
	}
	e.logger.LogAttrs(ctx, slog.LevelInfo, "state committed",
		slog.String("from", string(from.Mode)),
		slog.String("to", string(next.Mode)),
		slog.String("active_case_id", next.CaseID()))
	return nil
}

func (e *Engine) reprompt(state models.AppState) ShowPrompt {
	switch state.Mode {
	case models.ModeWaitingForPdf:
		return waitingPrompt(msgSendPdf)
	case models.ModeEvidenceCollection:
		return collectingPrompt(state.CaseID(), msgCollectHelp)
	case models.ModeIdle:
		return idlePrompt(msgIdle)
	default:
		return idlePrompt(msgIdle)
	}
}

func (e *Engine) status(ctx context.Context, state models.AppState) ([]Directive, error) {
	if state.Mode != models.ModeEvidenceCollection {
		return []Directive{e.reprompt(state)}, nil
	}
	c, err := e.loadActive(ctx, state.CaseID())
	if err != nil {
		return e.activeCaseUnavailable(ctx, err)
	}
	return []Directive{
		Pin{Text: statusText(c)},
		collectingPrompt(c.ID, statusText(c)+"\n\n"+msgCollectHelp),
	}, nil
}

// loadActive loads the active case. A finished case is reported with errors.ErrCaseFinished because an active
// case is always open.
func (e *Engine) loadActive(ctx context.Context, caseID string) (models.Case, error) {
	c, err := e.cases.Load(ctx, caseID)
	if err != nil {
		return models.Case{}, errors.Wrap(err, "load active case", slog.String("case_id", caseID))
	}
	if c.Finished() {
		return models.Case{}, errors.Wrap(errors.ErrCaseFinished, "load active case", slog.String("case_id", caseID))
	}
	return c, nil
}

// activeCaseUnavailable answers an event whose active case could not be loaded. When the case is gone or
// already finished, the state returns to Idle the same way Recover does after a restart.
func (e *Engine) activeCaseUnavailable(ctx context.Context, err error) ([]Directive, error) {
	gone := errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrCaseFinished)
	if !gone || e.state.Mode != models.ModeEvidenceCollection {
		return caseUnavailable(err)
	}
	e.logger.LogAttrs(ctx, slog.LevelWarn, "active case gone, returning to idle", errors.SlogError(err))
	directives, err := e.resetToIdle(ctx)
	if err != nil {
		return persistenceFailed(err)
	}
	return append([]Directive{Warn{Text: msgCaseGone}}, directives...), nil
}

func persistenceFailed(err error) ([]Directive, error) {
	return []Directive{Warn{Text: msgPersistence}}, err
}

func caseUnavailable(err error) ([]Directive, error) {
	return []Directive{Warn{Text: msgCaseUnavailable}}, err
}

// call runs fn with the collaborator timeout. A collaborator that ignores its context is abandoned when the
// deadline passes and its late result is discarded.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				var zero T
				done <- result{value: zero, err: errors.Wrap(errors.ErrService, "collaborator panicked",
					slog.Any("panic", rec))}
			}
		}()
		value, err := fn(ctx)
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Wrap(ctx.Err(), "collaborator timed out", slog.Duration("timeout", timeout))
	}
}

// categorize makes sure err matches sentinel with errors.Is.
func categorize(err, sentinel error) error {
	if err == nil || errors.Is(err, sentinel) {
		return err
	}
	return errors.Join(sentinel, err)
}
