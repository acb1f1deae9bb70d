package workflow

import (
	"context"
	"fmt"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"log/slog"
)

// collect appends a text note, photo or voice note to the active case.
func (e *Engine) collect(ctx context.Context, caseID string, ev Event) ([]Directive, error) {
	c, err := e.loadActive(ctx, caseID)
	if err != nil {
		return e.activeCaseUnavailable(ctx, err)
	}

	var (
		item       models.EvidenceItem
		payload    []byte
		directives []Directive
	)
	switch ev := ev.(type) {
	case TextReceived:
		item, err = e.ingest.Text(&c, ev.Text)
	case PhotoReceived:
		item, err = e.ingest.Photo(&c, ev.Data)
		payload = ev.Data
	case VoiceReceived:
		if item, err = e.ingest.Audio(&c, ev.Data, nil); err == nil {
			payload = ev.Data
			item.Transcript, directives = e.transcribe(ctx, ev.Data)
		}
	default:
		return []Directive{collectingPrompt(caseID, msgCollectHelp)}, nil
	}
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "evidence rejected", errors.SlogError(err))
		if errors.Is(err, errors.ErrCaseFinished) {
			return []Directive{Warn{Text: msgCaseUnavailable}}, nil
		}
		return []Directive{Warn{Text: msgEmptyEvidence}}, nil
	}

	if err = e.cases.AppendEvidence(ctx, caseID, item, payload); err != nil {
		return persistenceFailed(errors.Wrap(categorize(err, errors.ErrPersistence), "append evidence",
			slog.String("evidence_id", item.ID)))
	}
	c.TouchAttendance(item.Timestamp)
	c.Evidence = append(c.Evidence, item)
	e.logger.LogAttrs(ctx, slog.LevelInfo, "evidence appended",
		slog.String("evidence_id", item.ID), slog.String("kind", string(item.Kind)))

	saved := ShowPrompt{Text: savedText(item), Buttons: nil}
	if item.Kind == models.KindPhoto {
		saved.Buttons = []Button{button("Mark as fingerprint", MarkFingerprint{CaseID: caseID, PhotoID: item.ID})}
	}
	return append(directives, saved, Pin{Text: statusText(c)}), nil
}

// transcribe degrades to a nil transcript and a warning when the transcriber fails.
func (e *Engine) transcribe(ctx context.Context, audio []byte) (*string, []Directive) {
	transcript, err := call(ctx, e.timeout, func(ctx context.Context) (string, error) {
		return e.transcriber.Transcribe(ctx, audio)
	})
	if err != nil {
		err = categorize(err, errors.ErrService)
		e.logger.LogAttrs(ctx, slog.LevelWarn, "transcription failed, storing audio without transcript",
			errors.SlogError(err))
		return nil, []Directive{Warn{Text: msgTranscribeFail}}
	}
	return optional(transcript), nil
}

func (e *Engine) locate(ctx context.Context, caseID string, ev LocationReceived) ([]Directive, error) {
	c, err := e.loadActive(ctx, caseID)
	if err != nil {
		return e.activeCaseUnavailable(ctx, err)
	}
	loc, err := e.ingest.Location(&c, ev.Latitude, ev.Longitude)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "location rejected", errors.SlogError(err))
		return []Directive{Warn{Text: msgBadLocation}}, nil
	}
	if err = e.cases.SetLocation(ctx, caseID, loc); err != nil {
		return persistenceFailed(errors.Wrap(categorize(err, errors.ErrPersistence), "set location"))
	}
	c.AttendanceLocation = &loc
	c.TouchAttendance(*loc.RecordedAt)
	return []Directive{
		ShowPrompt{Text: "Attendance location saved.", Buttons: nil},
		Pin{Text: statusText(c)},
	}, nil
}

func (e *Engine) markFingerprint(ctx context.Context, caseID string, ev MarkFingerprint) ([]Directive, error) {
	c, err := e.loadActive(ctx, caseID)
	if err != nil {
		return e.activeCaseUnavailable(ctx, err)
	}
	photoID, err := e.ingest.FingerprintTarget(&c, ev.PhotoID)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "fingerprint target rejected", errors.SlogError(err))
		switch {
		case errors.Is(err, errors.ErrNotFound) && ev.PhotoID == "":
			return []Directive{Warn{Text: msgNoPhoto}}, nil
		case errors.Is(err, errors.ErrNotFound):
			return []Directive{Warn{Text: msgPhotoNotFound}}, nil
		default:
			return []Directive{Warn{Text: msgNotAPhoto}}, nil
		}
	}
	if err = e.cases.MarkFingerprint(ctx, caseID, photoID); err != nil {
		return persistenceFailed(errors.Wrap(categorize(err, errors.ErrPersistence), "mark fingerprint",
			slog.String("evidence_id", photoID)))
	}
	_, _ = c.MarkFingerprint(photoID)
	return []Directive{
		ShowPrompt{Text: fmt.Sprintf("Photo %s marked as fingerprint.", photoID), Buttons: nil},
		Pin{Text: statusText(c)},
	}, nil
}

// finish finalizes the case before leaving EvidenceCollection. A crash in between leaves an active but finished
// case, which the next event or Recover resolves to Idle.
func (e *Engine) finish(ctx context.Context, caseID string) ([]Directive, error) {
	c, err := e.loadActive(ctx, caseID)
	if err != nil {
		return e.activeCaseUnavailable(ctx, err)
	}
	if err = e.cases.Finalize(ctx, caseID, e.now()); err != nil {
		return persistenceFailed(errors.Wrap(categorize(err, errors.ErrPersistence), "finalize case"))
	}
	if err = e.commit(ctx, models.DefaultAppState()); err != nil {
		return persistenceFailed(err)
	}
	return []Directive{
		Unpin{},
		idlePrompt(fmt.Sprintf("Evidence collection finished for %s. %d items saved.", displayID(c), len(c.Evidence))),
	}, nil
}

// discard leaves EvidenceCollection first and deletes the case afterwards, so a failed state save leaves the case
// active and intact. When the deletion fails after the save, the case is finalized instead so that it does not
// stay open.
func (e *Engine) discard(ctx context.Context, caseID string) ([]Directive, error) {
	c, err := e.loadActive(ctx, caseID)
	if err != nil {
		return e.activeCaseUnavailable(ctx, err)
	}
	if err = e.commit(ctx, models.DefaultAppState()); err != nil {
		return persistenceFailed(err)
	}
	if err = e.cases.Delete(ctx, caseID); err != nil {
		err = errors.Wrap(categorize(err, errors.ErrPersistence), "delete case")
		if finErr := e.cases.Finalize(ctx, caseID, e.now()); finErr != nil {
			e.logger.LogAttrs(ctx, slog.LevelError, "could not finalize undeleted case", errors.SlogError(finErr))
		}
		return []Directive{Unpin{}, Warn{Text: msgPersistence}, idlePrompt(msgIdle)}, err
	}
	return []Directive{Unpin{}, idlePrompt(fmt.Sprintf("Case %s discarded.", displayID(c)))}, nil
}
