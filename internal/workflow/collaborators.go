package workflow

import (
	"context"
	"github.com/myrjola/casebot/internal/models"
	"time"
)

// Extractor parses the intake document. Failures wrap errors.ErrExtraction.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte) (models.ExtractedFields, error)
}

// Briefing is the summarizer output shown when collection starts.
type Briefing struct {
	Summary   string
	Checklist string
}

// Summarizer writes the occurrence briefing. Failures wrap errors.ErrService.
type Summarizer interface {
	Summarize(ctx context.Context, fields models.ExtractedFields) (Briefing, error)
}

// Transcriber turns a voice note into text. Failures wrap errors.ErrService.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// StateStore persists the AppState. Load fails soft to the default state; Save is atomic.
type StateStore interface {
	Load(ctx context.Context) models.AppState
	Save(ctx context.Context, state models.AppState) error
}

// CaseStore persists case records, evidence records and raw files.
type CaseStore interface {
	// CaseIDFor returns the id a case created from fields gets, and false when the fields do not identify a case.
	CaseIDFor(fields models.ExtractedFields) (string, bool)
	CreateCase(ctx context.Context, nc models.NewCase) (string, error)
	AppendEvidence(ctx context.Context, caseID string, item models.EvidenceItem, payload []byte) error
	MarkFingerprint(ctx context.Context, caseID, photoID string) error
	SetLocation(ctx context.Context, caseID string, loc models.Location) error
	Finalize(ctx context.Context, caseID string, at time.Time) error
	Load(ctx context.Context, caseID string) (models.Case, error)
	List(ctx context.Context) ([]models.CaseOverview, error)
	Verify(ctx context.Context, caseID string) ([]string, error)
	Delete(ctx context.Context, caseID string) error
}
