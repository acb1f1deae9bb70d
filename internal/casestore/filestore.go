// Package casestore keeps case records as case_info.json inside the case container next to the raw files.
package casestore

import (
	"context"
	"github.com/myrjola/casebot/internal/atomicfile"
	"github.com/myrjola/casebot/internal/blobstore"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"
)

// MetadataFile is the name of the case record inside its container.
const MetadataFile = "case_info.json"

type FileStore struct {
	blobs  *blobstore.Store
	prefix string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewFileStore creates a store keeping case containers under blobs. prefix starts every derived case id.
func NewFileStore(logger *slog.Logger, blobs *blobstore.Store, prefix string) *FileStore {
	return &FileStore{
		blobs:  blobs,
		prefix: prefix,
		logger: logger.With(slog.String("source", "CaseStore")),
		mu:     sync.RWMutex{},
	}
}

// CaseIDFor returns the id derived from the identification fields, and false for documents without them.
func (s *FileStore) CaseIDFor(fields models.ExtractedFields) (string, bool) {
	if !fields.HasIdentification() {
		return "", false
	}
	return models.BaseCaseID(s.prefix, fields), true
}

// CreateCase allocates the container, stores the intake document and writes the initial record.
func (s *FileStore) CreateCase(ctx context.Context, nc models.NewCase) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := models.UniqueCaseID(models.BaseCaseID(s.prefix, nc.Fields), s.blobs.Exists)
	dir, err := s.blobs.Create(nc.Year(), id)
	if err != nil {
		return "", errors.Wrap(err, "create case container", slog.String("case_id", id))
	}

	c := models.Case{
		ID:              id,
		DisplayID:       models.DisplayCaseID(s.prefix, nc.Fields),
		ReceivedAt:      nc.ReceivedAt,
		ExtractedFields: nc.Fields,
		Summary:         nc.Summary,
		Checklist:       nc.Checklist,
		Evidence:        []models.EvidenceItem{},
	}
	if len(nc.Document) > 0 {
		c.DocumentPath = blobstore.DocumentName(nc.DocumentName)
		if err = s.blobs.Put(dir, c.DocumentPath, nc.Document); err != nil {
			return "", errors.Wrap(err, "store intake document", slog.String("case_id", id))
		}
	}
	if err = atomicfile.WriteJSON(filepath.Join(dir, MetadataFile), c); err != nil {
		return "", errors.Wrap(err, "write case record", slog.String("case_id", id))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "case created", slog.String("case_id", id), slog.String("dir", dir))
	return id, nil
}

// AppendEvidence stores payload (if any) and appends item to the case. Appending an id that already exists is a
// no-op so that retries are safe.
func (s *FileStore) AppendEvidence(ctx context.Context, caseID string, item models.EvidenceItem, payload []byte) error {
	return s.update(ctx, caseID, func(dir string, c *models.Case) (bool, error) {
		if _, exists := c.FindEvidence(item.ID); exists {
			s.logger.LogAttrs(ctx, slog.LevelDebug, "evidence already recorded",
				slog.String("case_id", caseID), slog.String("evidence_id", item.ID))
			return false, nil
		}
		if c.Finished() {
			return false, errors.Wrap(errors.ErrCaseFinished, "append evidence", slog.String("case_id", caseID))
		}
		if err := item.Validate(); err != nil {
			return false, err
		}
		if item.StoragePath != "" {
			if err := s.blobs.Put(dir, item.StoragePath, payload); err != nil {
				return false, err
			}
		}
		c.TouchAttendance(item.Timestamp)
		c.Evidence = append(c.Evidence, item)
		return true, nil
	})
}

// MarkFingerprint flags the photo photoID of the case as a fingerprint.
func (s *FileStore) MarkFingerprint(ctx context.Context, caseID, photoID string) error {
	return s.update(ctx, caseID, func(_ string, c *models.Case) (bool, error) {
		return c.MarkFingerprint(photoID)
	})
}

// SetLocation replaces the attendance location of the case.
func (s *FileStore) SetLocation(ctx context.Context, caseID string, loc models.Location) error {
	return s.update(ctx, caseID, func(_ string, c *models.Case) (bool, error) {
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
func (s *FileStore) Finalize(ctx context.Context, caseID string, at time.Time) error {
	return s.update(ctx, caseID, func(_ string, c *models.Case) (bool, error) {
		return c.Finalize(at), nil
	})
}

// Load reads the case record.
func (s *FileStore) Load(ctx context.Context, caseID string) (models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, c, err := s.load(ctx, caseID)
	return c, err
}

// List returns an overview of every readable case ordered by receipt time.
func (s *FileStore) List(ctx context.Context) ([]models.CaseOverview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirs, err := s.blobs.Containers()
	if err != nil {
		return nil, errors.Wrap(err, "list containers")
	}
	overviews := make([]models.CaseOverview, 0, len(dirs))
	for _, dir := range dirs {
		var c models.Case
		if err = atomicfile.ReadJSON(filepath.Join(dir, MetadataFile), &c); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "skipping unreadable case", slog.String("dir", dir),
				errors.SlogError(err))
			continue
		}
		overviews = append(overviews, c.Overview())
	}
	sort.SliceStable(overviews, func(i, j int) bool {
		return overviews[i].ReceivedAt.Before(overviews[j].ReceivedAt)
	})
	return overviews, nil
}

// Verify returns the raw files the case record references that are missing from the container.
func (s *FileStore) Verify(ctx context.Context, caseID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dir, c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return s.blobs.Missing(dir, c.StoredFiles()), nil
}

// OpenFile opens a raw file referenced by the case record.
func (s *FileStore) OpenFile(ctx context.Context, caseID, rel string) (*os.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dir, c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(c.StoredFiles(), rel) {
		return nil, errors.Wrap(errors.ErrNotFound, "file not referenced by case",
			slog.String("case_id", caseID), slog.String("rel", rel))
	}
	return s.blobs.Open(dir, rel)
}

// Delete removes the case container and everything in it.
func (s *FileStore) Delete(ctx context.Context, caseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.blobs.Remove(caseID); err != nil {
		return errors.Wrap(err, "delete case", slog.String("case_id", caseID))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "case deleted", slog.String("case_id", caseID))
	return nil
}

// update loads the record, applies fn and writes the record back atomically if fn reports a change.
func (s *FileStore) update(ctx context.Context, caseID string, fn func(dir string, c *models.Case) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, c, err := s.load(ctx, caseID)
	if err != nil {
		return err
	}
	changed, err := fn(dir, &c)
	if err != nil || !changed {
		return err
	}
	if err = c.Validate(); err != nil {
		return errors.Wrap(err, "validate case", slog.String("case_id", caseID))
	}
	if err = atomicfile.WriteJSON(filepath.Join(dir, MetadataFile), c); err != nil {
		return errors.Wrap(err, "write case record", slog.String("case_id", caseID))
	}
	return nil
}

func (s *FileStore) load(_ context.Context, caseID string) (string, models.Case, error) {
	dir, err := s.blobs.Locate(caseID)
	if err != nil {
		return "", models.Case{}, err
	}
	var c models.Case
	err = atomicfile.ReadJSON(filepath.Join(dir, MetadataFile), &c)
	if errors.Is(err, fs.ErrNotExist) {
		return "", models.Case{}, errors.Wrap(errors.ErrNotFound, "case record missing", slog.String("case_id", caseID))
	}
	if err != nil {
		return "", models.Case{}, errors.Wrap(err, "load case", slog.String("case_id", caseID))
	}
	if c.Evidence == nil {
		c.Evidence = []models.EvidenceItem{}
	}
	return dir, c, nil
}
