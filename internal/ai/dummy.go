package ai

import (
	"context"
	"fmt"
	"github.com/myrjola/casebot/internal/models"
	"github.com/myrjola/casebot/internal/workflow"
	"strings"
)

// DummySummarizer builds a briefing from the extracted fields without calling any API.
type DummySummarizer struct{}

func (DummySummarizer) Summarize(_ context.Context, fields models.ExtractedFields) (workflow.Briefing, error) {
	var summary strings.Builder
	fmt.Fprintf(&summary, "Occurrence %s/%s/%d", fields.CaseNumber, fields.ReportNumber, fields.CaseYear)
	if fields.City != "" {
		fmt.Fprintf(&summary, " in %s", fields.City)
	}
	summary.WriteString(".")
	for _, s := range fields.History {
		fmt.Fprintf(&summary, "\n%s: %s", s.Title, s.Content)
	}
	return workflow.Briefing{
		Summary:   summary.String(),
		Checklist: "1. Photograph the scene.\n2. Search for fingerprints at the points of entry.\n3. Record the location.",
	}, nil
}

// DummyTranscriber stores voice notes with a placeholder transcript.
type DummyTranscriber struct{}

func (DummyTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	return fmt.Sprintf("[voice note, %d bytes, not transcribed]", len(audio)), nil
}
