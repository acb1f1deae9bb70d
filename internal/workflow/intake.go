package workflow

import (
	"context"
	"fmt"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"log/slog"
	"strings"
)

// pendingDocument is an intake document whose case id already exists, held until the user decides between
// continuing the existing case and overwriting it.
type pendingDocument struct {
	caseID   string
	data     []byte
	filename string
	fields   models.ExtractedFields
}

// receiveDocument turns the intake document into the active case.
func (e *Engine) receiveDocument(ctx context.Context, ev DocumentReceived) ([]Directive, error) {
	if len(ev.Data) == 0 {
		return []Directive{waitingPrompt(msgPdfEmpty)}, nil
	}

	fields, err := call(ctx, e.timeout, func(ctx context.Context) (models.ExtractedFields, error) {
		return e.extractor.Extract(ctx, ev.Data)
	})
	if err != nil {
		err = categorize(err, errors.ErrExtraction)
		e.logger.LogAttrs(ctx, slog.LevelWarn, "extraction failed", slog.String("filename", ev.Filename),
			errors.SlogError(err))
		return []Directive{waitingPrompt(msgPdfUnreadable)}, nil
	}

	e.pending = nil
	if id, ok := e.cases.CaseIDFor(fields); ok {
		existing, loadErr := e.cases.Load(ctx, id)
		switch {
		case loadErr == nil:
			e.logger.LogAttrs(ctx, slog.LevelInfo, "document matches an existing case",
				slog.String("existing_case_id", id), slog.Bool("finished", existing.Finished()))
			e.pending = &pendingDocument{caseID: id, data: ev.Data, filename: ev.Filename, fields: fields}
			return []Directive{duplicatePrompt(existing)}, nil
		case !errors.Is(loadErr, errors.ErrNotFound):
			return persistenceFailed(errors.Wrap(categorize(loadErr, errors.ErrPersistence), "look up existing case"))
		}
	}
	return e.openCase(ctx, ev.Data, ev.Filename, fields)
}

// continueCase makes an existing unfinished case the active case again.
func (e *Engine) continueCase(ctx context.Context, ev ContinueCase) ([]Directive, error) {
	if e.pending == nil || e.pending.caseID != ev.CaseID {
		return []Directive{Warn{Text: msgNotApplicable}, waitingPrompt(msgSendPdf)}, nil
	}
	c, err := e.cases.Load(ctx, ev.CaseID)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		e.pending = nil
		return []Directive{Warn{Text: msgNotApplicable}, waitingPrompt(msgSendPdf)}, nil
	case err != nil:
		return persistenceFailed(errors.Wrap(categorize(err, errors.ErrPersistence), "load existing case"))
	case c.Finished():
		// Finished cases are immutable; only overwriting or cancelling is offered.
		return []Directive{Warn{Text: msgCaseFinished}, duplicatePrompt(c)}, nil
	}
	if err = e.commit(ctx, models.Collecting(c.ID)); err != nil {
		return persistenceFailed(err)
	}
	return briefingDirectives(c), nil
}

// overwriteCase deletes the existing case and opens a new one from the held document.
func (e *Engine) overwriteCase(ctx context.Context, ev OverwriteCase) ([]Directive, error) {
	pending := e.pending
	if pending == nil || pending.caseID != ev.CaseID {
		return []Directive{Warn{Text: msgNotApplicable}, waitingPrompt(msgSendPdf)}, nil
	}
	if err := e.cases.Delete(ctx, pending.caseID); err != nil && !errors.Is(err, errors.ErrNotFound) {
		return persistenceFailed(errors.Wrap(categorize(err, errors.ErrPersistence), "delete overwritten case"))
	}
	e.logger.LogAttrs(ctx, slog.LevelInfo, "existing case overwritten", slog.String("overwritten_case_id", pending.caseID))
	e.pending = nil
	return e.openCase(ctx, pending.data, pending.filename, pending.fields)
}

// openCase summarizes the occurrence, creates the case and makes it active. When the state cannot be saved the
// new case is deleted again so that no second open case is left behind.
func (e *Engine) openCase(ctx context.Context, data []byte, filename string, fields models.ExtractedFields) (
	[]Directive, error) {
	var directives []Directive
	nc := models.NewCase{
		Fields:       fields,
		Summary:      nil,
		Checklist:    nil,
		Document:     data,
		DocumentName: filename,
		ReceivedAt:   e.now(),
	}
	briefing, err := call(ctx, e.timeout, func(ctx context.Context) (Briefing, error) {
		return e.summarizer.Summarize(ctx, fields)
	})
	if err != nil {
		err = categorize(err, errors.ErrService)
		e.logger.LogAttrs(ctx, slog.LevelWarn, "summarization failed, continuing without briefing",
			errors.SlogError(err))
		directives = append(directives, Warn{Text: msgSummaryFailed})
	} else {
		nc.Summary = optional(briefing.Summary)
		nc.Checklist = optional(briefing.Checklist)
	}

	caseID, err := e.cases.CreateCase(ctx, nc)
	if err != nil {
		err = errors.Wrap(categorize(err, errors.ErrPersistence), "create case")
		return append(directives, Warn{Text: msgPersistence}), err
	}
	if err = e.commit(ctx, models.Collecting(caseID)); err != nil {
		if delErr := e.cases.Delete(ctx, caseID); delErr != nil {
			// Recover adopts or finalizes the leftover on the next start.
			e.logger.LogAttrs(ctx, slog.LevelError, "could not roll back created case",
				slog.String("created_case_id", caseID), errors.SlogError(delErr))
		}
		return append(directives, Warn{Text: msgPersistence}), err
	}

	c, err := e.cases.Load(ctx, caseID)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "could not reload created case", errors.SlogError(err))
		c = models.Case{ID: caseID, ReceivedAt: nc.ReceivedAt, ExtractedFields: fields, Summary: nc.Summary,
			Checklist: nc.Checklist}
	}
	return append(directives, briefingDirectives(c)...), nil
}

// briefingDirectives introduce a freshly created or resumed case.
func briefingDirectives(c models.Case) []Directive {
	directives := []Directive{Pin{Text: statusText(c)}}
	if c.Summary != nil {
		directives = append(directives, ShowPrompt{Text: "Summary\n" + *c.Summary})
	}
	if c.Checklist != nil {
		directives = append(directives, ShowPrompt{Text: "Checklist\n" + *c.Checklist})
	}
	if address := addressLine(c.ExtractedFields); address != "" {
		directives = append(directives, ShowPrompt{Text: "Address: " + address})
	}
	if loc := c.ExtractedFields.Coordinates; loc != nil {
		directives = append(directives, ShowLocation{Latitude: loc.Latitude, Longitude: loc.Longitude})
	}
	return append(directives, collectingPrompt(c.ID,
		fmt.Sprintf("Collecting evidence for %s.\n%s", displayID(c), msgCollectHelp)))
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
