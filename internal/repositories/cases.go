package repositories

import (
	"context"
	"database/sql"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/casebot/internal/blobstore"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"github.com/myrjola/casebot/internal/sqlite"
	"log/slog"
	"os"
	"slices"
	"time"
)

// CaseRepository keeps case records and evidence rows in SQLite and the raw files in the blob store.
type CaseRepository struct {
	dbs    *sqlite.Database
	blobs  *blobstore.Store
	prefix string
	logger *slog.Logger
}

func NewCaseRepository(dbs *sqlite.Database, blobs *blobstore.Store, prefix string, logger *slog.Logger) *CaseRepository {
	return &CaseRepository{
		dbs:    dbs,
		blobs:  blobs,
		prefix: prefix,
		logger: logger.With(slog.String("source", "CaseRepository")),
	}
}

const insertCaseStmt = `INSERT INTO cases (id, display_id, received_at, attendance_started_at, collection_finished_at,
                   extracted_fields, summary, checklist, document_path, attendance_location)
VALUES (:id, :display_id, :received_at, :attendance_started_at, :collection_finished_at,
        :extracted_fields, :summary, :checklist, :document_path, :attendance_location)`

const updateCaseStmt = `UPDATE cases
SET attendance_started_at  = :attendance_started_at,
    collection_finished_at = :collection_finished_at,
    attendance_location    = :attendance_location
WHERE id = :id`

const upsertEvidenceStmt = `INSERT INTO evidence (case_id, id, seq, kind, timestamp, content, storage_path, is_fingerprint,
                      transcript)
VALUES (:case_id, :id, :seq, :kind, :timestamp, :content, :storage_path, :is_fingerprint, :transcript)
ON CONFLICT (case_id, id) DO UPDATE SET is_fingerprint = excluded.is_fingerprint`

func (r *CaseRepository) CaseIDFor(fields models.ExtractedFields) (string, bool) {
	if !fields.HasIdentification() {
		return "", false
	}
	return models.BaseCaseID(r.prefix, fields), true
}

// CreateCase allocates the container, stores the intake document and inserts the case row.
func (r *CaseRepository) CreateCase(ctx context.Context, nc models.NewCase) (string, error) {
	var (
		tx  *sqlx.Tx
		err error
	)
	if tx, err = r.dbs.ReadWrite.BeginTxx(ctx, nil); err != nil {
		return "", errors.Wrap(errors.Join(errors.ErrPersistence, err), "start transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	taken := func(id string) bool {
		var count int
		if getErr := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM cases WHERE id = ?`, id); getErr != nil {
			return true
		}
		return count > 0 || r.blobs.Exists(id)
	}
	id := models.UniqueCaseID(models.BaseCaseID(r.prefix, nc.Fields), taken)

	c := models.Case{
		ID:              id,
		DisplayID:       models.DisplayCaseID(r.prefix, nc.Fields),
		ReceivedAt:      nc.ReceivedAt,
		ExtractedFields: nc.Fields,
		Summary:         nc.Summary,
		Checklist:       nc.Checklist,
		Evidence:        []models.EvidenceItem{},
	}
	dir, err := r.blobs.Create(nc.Year(), id)
	if err != nil {
		return "", errors.Wrap(err, "create case container", slog.String("case_id", id))
	}
	if len(nc.Document) > 0 {
		c.DocumentPath = blobstore.DocumentName(nc.DocumentName)
		if err = r.blobs.Put(dir, c.DocumentPath, nc.Document); err != nil {
			return "", errors.Wrap(err, "store intake document", slog.String("case_id", id))
		}
	}

	row, err := toCaseRow(c)
	if err != nil {
		return "", err
	}
	if _, err = tx.NamedExecContext(ctx, insertCaseStmt, row); err != nil {
		return "", errors.Wrap(errors.Join(errors.ErrPersistence, err), "insert case", slog.String("case_id", id))
	}
	if err = tx.Commit(); err != nil {
		return "", errors.Wrap(errors.Join(errors.ErrPersistence, err), "commit case", slog.String("case_id", id))
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "case created", slog.String("case_id", id), slog.String("dir", dir))
	return id, nil
}

// AppendEvidence stores payload (if any) and inserts the evidence row. Appending an existing id is a no-op.
func (r *CaseRepository) AppendEvidence(
	ctx context.Context,
	caseID string,
	item models.EvidenceItem,
	payload []byte,
) error {
	return r.update(ctx, caseID, func(c *models.Case) (bool, error) {
		if _, exists := c.FindEvidence(item.ID); exists {
			return false, nil
		}
		if c.Finished() {
			return false, errors.Wrap(errors.ErrCaseFinished, "append evidence", slog.String("case_id", caseID))
		}
		if err := item.Validate(); err != nil {
			return false, err
		}
		if item.StoragePath != "" {
			dir, err := r.blobs.Locate(caseID)
			if err != nil {
				return false, err
			}
			if err = r.blobs.Put(dir, item.StoragePath, payload); err != nil {
				return false, err
			}
		}
		c.TouchAttendance(item.Timestamp)
		c.Evidence = append(c.Evidence, item)
		return true, nil
	})
}

// MarkFingerprint flags the photo photoID of the case as a fingerprint.
func (r *CaseRepository) MarkFingerprint(ctx context.Context, caseID, photoID string) error {
	return r.update(ctx, caseID, func(c *models.Case) (bool, error) {
		return c.MarkFingerprint(photoID)
	})
}

// SetLocation replaces the attendance location of the case.
func (r *CaseRepository) SetLocation(ctx context.Context, caseID string, loc models.Location) error {
	return r.update(ctx, caseID, func(c *models.Case) (bool, error) {
		if c.Finished() {
			return false, errors.Wrap(errors.ErrCaseFinished, "set location", slog.String("case_id", caseID))
		}
		if loc.RecordedAt != nil {
			c.TouchAttendance(*loc.RecordedAt)
		}
		c.AttendanceLocation = &loc
		return true, nil
	})
}

// Finalize records the end of the evidence collection. Finalizing a finished case changes nothing.
func (r *CaseRepository) Finalize(ctx context.Context, caseID string, at time.Time) error {
	return r.update(ctx, caseID, func(c *models.Case) (bool, error) {
		return c.Finalize(at), nil
	})
}

// Load reads the case with its evidence in insertion order.
func (r *CaseRepository) Load(ctx context.Context, caseID string) (models.Case, error) {
	return r.load(ctx, r.dbs.ReadOnly, caseID)
}

// List returns an overview of every case ordered by receipt time.
func (r *CaseRepository) List(ctx context.Context) ([]models.CaseOverview, error) {
	type overviewRow struct {
		caseRow
		EvidenceCount int `db:"evidence_count"`
	}
	var rows []overviewRow
	stmt := `SELECT c.*, (SELECT COUNT(*) FROM evidence e WHERE e.case_id = c.id) AS evidence_count
FROM cases c
ORDER BY c.received_at, c.id`
	if err := r.dbs.ReadOnly.SelectContext(ctx, &rows, stmt); err != nil {
		return nil, errors.Wrap(err, "select cases")
	}
	overviews := make([]models.CaseOverview, 0, len(rows))
	for _, row := range rows {
		c, err := fromCaseRow(row.caseRow)
		if err != nil {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "skipping unreadable case", slog.String("case_id", row.ID),
				errors.SlogError(err))
			continue
		}
		overview := c.Overview()
		overview.EvidenceCount = row.EvidenceCount
		overviews = append(overviews, overview)
	}
	return overviews, nil
}

// Verify returns the raw files the case record references that are missing from the container.
func (r *CaseRepository) Verify(ctx context.Context, caseID string) ([]string, error) {
	c, err := r.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	dir, err := r.blobs.Locate(caseID)
	if errors.Is(err, errors.ErrNotFound) {
		return c.StoredFiles(), nil
	}
	if err != nil {
		return nil, err
	}
	return r.blobs.Missing(dir, c.StoredFiles()), nil
}

// OpenFile opens a raw file referenced by the case record.
func (r *CaseRepository) OpenFile(ctx context.Context, caseID, rel string) (*os.File, error) {
	c, err := r.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(c.StoredFiles(), rel) {
		return nil, errors.Wrap(errors.ErrNotFound, "file not referenced by case",
			slog.String("case_id", caseID), slog.String("rel", rel))
	}
	dir, err := r.blobs.Locate(caseID)
	if err != nil {
		return nil, err
	}
	return r.blobs.Open(dir, rel)
}

// Delete removes the case row, its evidence rows and the container.
func (r *CaseRepository) Delete(ctx context.Context, caseID string) error {
	if _, err := r.dbs.ReadWrite.ExecContext(ctx, `DELETE FROM cases WHERE id = ?`, caseID); err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "delete case", slog.String("case_id", caseID))
	}
	if err := r.blobs.Remove(caseID); err != nil {
		return errors.Wrap(err, "delete case container", slog.String("case_id", caseID))
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "case deleted", slog.String("case_id", caseID))
	return nil
}

// update loads the case inside a write transaction, applies fn and writes the case row and evidence rows back if
// fn reports a change.
func (r *CaseRepository) update(ctx context.Context, caseID string, fn func(c *models.Case) (bool, error)) error {
	var (
		tx  *sqlx.Tx
		err error
	)
	if tx, err = r.dbs.ReadWrite.BeginTxx(ctx, nil); err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "start transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	c, err := r.load(ctx, tx, caseID)
	if err != nil {
		return err
	}
	changed, err := fn(&c)
	if err != nil || !changed {
		return err
	}
	if err = c.Validate(); err != nil {
		return errors.Wrap(err, "validate case", slog.String("case_id", caseID))
	}

	row, err := toCaseRow(c)
	if err != nil {
		return err
	}
	if _, err = tx.NamedExecContext(ctx, updateCaseStmt, row); err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "update case", slog.String("case_id", caseID))
	}
	for i, item := range c.Evidence {
		if _, err = tx.NamedExecContext(ctx, upsertEvidenceStmt, toEvidenceRow(caseID, i+1, item)); err != nil {
			return errors.Wrap(errors.Join(errors.ErrPersistence, err), "upsert evidence",
				slog.String("case_id", caseID), slog.String("evidence_id", item.ID))
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "commit case", slog.String("case_id", caseID))
	}
	return nil
}

func (r *CaseRepository) load(ctx context.Context, q sqlx.QueryerContext, caseID string) (models.Case, error) {
	var row caseRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT * FROM cases WHERE id = ?`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Case{}, errors.Wrap(errors.ErrNotFound, "case not found", slog.String("case_id", caseID))
	}
	if err != nil {
		return models.Case{}, errors.Wrap(err, "select case", slog.String("case_id", caseID))
	}
	c, err := fromCaseRow(row)
	if err != nil {
		return models.Case{}, errors.Wrap(err, "decode case", slog.String("case_id", caseID))
	}

	var evidenceRows []evidenceRow
	if err = sqlx.SelectContext(ctx, q, &evidenceRows,
		`SELECT * FROM evidence WHERE case_id = ? ORDER BY seq`, caseID); err != nil {
		return models.Case{}, errors.Wrap(err, "select evidence", slog.String("case_id", caseID))
	}
	for _, er := range evidenceRows {
		item, convErr := fromEvidenceRow(er)
		if convErr != nil {
			return models.Case{}, errors.Wrap(convErr, "decode evidence", slog.String("evidence_id", er.ID))
		}
		c.Evidence = append(c.Evidence, item)
	}
	return c, nil
}
