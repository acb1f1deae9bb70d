package models

import (
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
	"time"
)

// Location is a point on the map.
type Location struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

// Section is a titled block of free text from the intake document, e.g., the occurrence history.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ExtractedFields holds what the intake document extraction produced. The workflow only relies on the
// identification fields and the coordinates; everything else is carried along for the summarizer and reports.
type ExtractedFields struct {
	CaseNumber        string            `json:"case_number,omitempty"`
	ReportNumber      string            `json:"report_number,omitempty"`
	CaseYear          int               `json:"case_year,omitempty"`
	RAI               string            `json:"rai,omitempty"`
	RequestingUnit    string            `json:"requesting_unit,omitempty"`
	Authority         string            `json:"authority,omitempty"`
	City              string            `json:"city,omitempty"`
	Address           string            `json:"address,omitempty"`
	AddressComplement string            `json:"address_complement,omitempty"`
	Coordinates       *Location         `json:"coordinates,omitempty"`
	History           []Section         `json:"history,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// HasIdentification reports whether the fields carry everything needed to derive a case id.
func (f ExtractedFields) HasIdentification() bool {
	return f.CaseNumber != "" && f.ReportNumber != "" && f.CaseYear > 0
}

// Case is one forensic intake from document receipt to the end of evidence collection.
type Case struct {
	ID                   string          `json:"id"`
	DisplayID            string          `json:"display_id,omitempty"`
	ReceivedAt           time.Time       `json:"received_at"`
	AttendanceStartedAt  *time.Time      `json:"attendance_started_at,omitempty"`
	CollectionFinishedAt *time.Time      `json:"collection_finished_at,omitempty"`
	ExtractedFields      ExtractedFields `json:"extracted_fields"`
	Summary              *string         `json:"summary,omitempty"`
	Checklist            *string         `json:"checklist,omitempty"`
	DocumentPath         string          `json:"document_path,omitempty"`
	AttendanceLocation   *Location       `json:"attendance_location,omitempty"`
	Evidence             []EvidenceItem  `json:"evidence"`
}

// Finished reports whether evidence collection has finished.
func (c *Case) Finished() bool {
	return c.CollectionFinishedAt != nil
}

// FindEvidence returns the index of the evidence with id.
func (c *Case) FindEvidence(id string) (int, bool) {
	for i := range c.Evidence {
		if c.Evidence[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// LastPhoto returns the most recently appended photo.
func (c *Case) LastPhoto() (EvidenceItem, bool) {
	for i := len(c.Evidence) - 1; i >= 0; i-- {
		if c.Evidence[i].Kind == KindPhoto {
			return c.Evidence[i], true
		}
	}
	return EvidenceItem{}, false
}

// CountByKind counts evidence items per kind.
func (c *Case) CountByKind() map[EvidenceKind]int {
	counts := map[EvidenceKind]int{KindText: 0, KindPhoto: 0, KindAudio: 0}
	for _, item := range c.Evidence {
		counts[item.Kind]++
	}
	return counts
}

// StoredFiles lists the raw files the case record references, relative to the case container.
func (c *Case) StoredFiles() []string {
	var files []string
	if c.DocumentPath != "" {
		files = append(files, c.DocumentPath)
	}
	for _, item := range c.Evidence {
		if item.StoragePath != "" {
			files = append(files, item.StoragePath)
		}
	}
	return files
}

// TouchAttendance records the start of the attendance at t unless it already started.
func (c *Case) TouchAttendance(t time.Time) {
	if c.AttendanceStartedAt == nil {
		c.AttendanceStartedAt = &t
	}
}

// Validate checks the timestamp ordering and evidence id uniqueness.
func (c *Case) Validate() error {
	if c.ID == "" {
		return errors.Wrap(errors.ErrInvalidEvidence, "case without id")
	}
	if c.AttendanceStartedAt != nil && c.CollectionFinishedAt != nil &&
		c.CollectionFinishedAt.Before(*c.AttendanceStartedAt) {
		return errors.Wrap(errors.ErrInvalidEvidence, "collection finished before attendance started",
			slog.String("case_id", c.ID))
	}
	seen := make(map[string]struct{}, len(c.Evidence))
	for _, item := range c.Evidence {
		if _, ok := seen[item.ID]; ok {
			return errors.Wrap(errors.ErrInvalidEvidence, "duplicate evidence id",
				slog.String("case_id", c.ID), slog.String("evidence_id", item.ID))
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

// Overview returns the listing view of the case.
func (c *Case) Overview() CaseOverview {
	return CaseOverview{
		ID:            c.ID,
		DisplayID:     c.DisplayID,
		ReceivedAt:    c.ReceivedAt,
		FinishedAt:    c.CollectionFinishedAt,
		EvidenceCount: len(c.Evidence),
	}
}

// CaseOverview is the listing view of a case.
type CaseOverview struct {
	ID            string     `json:"id"`
	DisplayID     string     `json:"display_id,omitempty"`
	ReceivedAt    time.Time  `json:"received_at"`
	FinishedAt    *time.Time `json:"collection_finished_at,omitempty"`
	EvidenceCount int        `json:"evidence_count"`
}

// Finished reports whether evidence collection has finished.
func (o CaseOverview) Finished() bool {
	return o.FinishedAt != nil
}

// MarkFingerprint flags the photo photoID as a fingerprint. It reports whether the record changed.
func (c *Case) MarkFingerprint(photoID string) (bool, error) {
	if c.Finished() {
		return false, errors.Wrap(errors.ErrCaseFinished, "mark fingerprint", slog.String("case_id", c.ID))
	}
	idx, ok := c.FindEvidence(photoID)
	if !ok {
		return false, errors.Wrap(errors.ErrNotFound, "photo not in case",
			slog.String("case_id", c.ID), slog.String("evidence_id", photoID))
	}
	item := &c.Evidence[idx]
	if item.Kind != KindPhoto {
		return false, errors.Wrap(errors.ErrInvalidEvidence, "only photos can be fingerprints",
			slog.String("evidence_id", photoID), slog.String("kind", string(item.Kind)))
	}
	if item.Fingerprint() {
		return false, nil
	}
	fingerprint := true
	item.IsFingerprint = &fingerprint
	return true, nil
}

// Finalize ends the collection at t, never earlier than the attendance start. Finalizing a finished case
// reports false.
func (c *Case) Finalize(t time.Time) bool {
	if c.Finished() {
		return false
	}
	if c.AttendanceStartedAt != nil && t.Before(*c.AttendanceStartedAt) {
		t = *c.AttendanceStartedAt
	}
	c.CollectionFinishedAt = &t
	return true
}
