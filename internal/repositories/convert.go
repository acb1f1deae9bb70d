package repositories

import (
	"database/sql"
	"encoding/json"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"time"
)

// Timestamps are stored as fixed-width RFC 3339 text in UTC because STRICT tables have no datetime type. The fixed
// width keeps text order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse timestamp")
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil //nolint:nilnil // absent timestamp
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

type caseRow struct {
	ID                   string         `db:"id"`
	DisplayID            string         `db:"display_id"`
	ReceivedAt           string         `db:"received_at"`
	AttendanceStartedAt  sql.NullString `db:"attendance_started_at"`
	CollectionFinishedAt sql.NullString `db:"collection_finished_at"`
	ExtractedFields      string         `db:"extracted_fields"`
	Summary              sql.NullString `db:"summary"`
	Checklist            sql.NullString `db:"checklist"`
	DocumentPath         string         `db:"document_path"`
	AttendanceLocation   sql.NullString `db:"attendance_location"`
}

type evidenceRow struct {
	CaseID        string         `db:"case_id"`
	ID            string         `db:"id"`
	Seq           int            `db:"seq"`
	Kind          string         `db:"kind"`
	Timestamp     string         `db:"timestamp"`
	Content       sql.NullString `db:"content"`
	StoragePath   sql.NullString `db:"storage_path"`
	IsFingerprint sql.NullBool   `db:"is_fingerprint"`
	Transcript    sql.NullString `db:"transcript"`
}

func toCaseRow(c models.Case) (caseRow, error) {
	fields, err := json.Marshal(c.ExtractedFields)
	if err != nil {
		return caseRow{}, errors.Wrap(err, "marshal extracted fields")
	}
	row := caseRow{
		ID:                   c.ID,
		DisplayID:            c.DisplayID,
		ReceivedAt:           formatTime(c.ReceivedAt),
		AttendanceStartedAt:  formatNullTime(c.AttendanceStartedAt),
		CollectionFinishedAt: formatNullTime(c.CollectionFinishedAt),
		ExtractedFields:      string(fields),
		Summary:              nullStringPtr(c.Summary),
		Checklist:            nullStringPtr(c.Checklist),
		DocumentPath:         c.DocumentPath,
		AttendanceLocation:   sql.NullString{},
	}
	if c.AttendanceLocation != nil {
		var location []byte
		if location, err = json.Marshal(c.AttendanceLocation); err != nil {
			return caseRow{}, errors.Wrap(err, "marshal attendance location")
		}
		row.AttendanceLocation = sql.NullString{String: string(location), Valid: true}
	}
	return row, nil
}

func fromCaseRow(row caseRow) (models.Case, error) {
	var (
		c   = models.Case{ID: row.ID, DisplayID: row.DisplayID, DocumentPath: row.DocumentPath}
		err error
	)
	if c.ReceivedAt, err = parseTime(row.ReceivedAt); err != nil {
		return models.Case{}, err
	}
	if c.AttendanceStartedAt, err = parseNullTime(row.AttendanceStartedAt); err != nil {
		return models.Case{}, err
	}
	if c.CollectionFinishedAt, err = parseNullTime(row.CollectionFinishedAt); err != nil {
		return models.Case{}, err
	}
	if err = json.Unmarshal([]byte(row.ExtractedFields), &c.ExtractedFields); err != nil {
		return models.Case{}, errors.Wrap(err, "unmarshal extracted fields")
	}
	if row.AttendanceLocation.Valid {
		var location models.Location
		if err = json.Unmarshal([]byte(row.AttendanceLocation.String), &location); err != nil {
			return models.Case{}, errors.Wrap(err, "unmarshal attendance location")
		}
		c.AttendanceLocation = &location
	}
	c.Summary = stringPtr(row.Summary)
	c.Checklist = stringPtr(row.Checklist)
	c.Evidence = []models.EvidenceItem{}
	return c, nil
}

func toEvidenceRow(caseID string, seq int, item models.EvidenceItem) evidenceRow {
	row := evidenceRow{
		CaseID:      caseID,
		ID:          item.ID,
		Seq:         seq,
		Kind:        string(item.Kind),
		Timestamp:   formatTime(item.Timestamp),
		Content:     nullString(item.Content),
		StoragePath: nullString(item.StoragePath),
		Transcript:  nullStringPtr(item.Transcript),
	}
	if item.IsFingerprint != nil {
		row.IsFingerprint = sql.NullBool{Bool: *item.IsFingerprint, Valid: true}
	}
	return row
}

func fromEvidenceRow(row evidenceRow) (models.EvidenceItem, error) {
	ts, err := parseTime(row.Timestamp)
	if err != nil {
		return models.EvidenceItem{}, err
	}
	item := models.EvidenceItem{
		ID:          row.ID,
		Kind:        models.EvidenceKind(row.Kind),
		Timestamp:   ts,
		Content:     row.Content.String,
		StoragePath: row.StoragePath.String,
		Transcript:  stringPtr(row.Transcript),
	}
	if row.IsFingerprint.Valid {
		fingerprint := row.IsFingerprint.Bool
		item.IsFingerprint = &fingerprint
	}
	return item, nil
}
