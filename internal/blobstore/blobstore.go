// Package blobstore keeps the raw files of a case (intake document, photos, audio) in a per-case container
// directory laid out as <root>/<year>/<case id>/. Files are write-once.
package blobstore

import (
	"github.com/myrjola/casebot/internal/atomicfile"
	"github.com/myrjola/casebot/internal/errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Subdirectories of a case container.
const (
	PhotosDir = "photos"
	AudioDir  = "audio"
)

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the directory holding all case containers.
func (s *Store) Root() string {
	return s.root
}

// Container returns the container path of caseID for year without touching the file system.
func (s *Store) Container(year int, caseID string) string {
	return filepath.Join(s.root, strconv.Itoa(year), caseID)
}

// Create makes the container with its evidence subdirectories and returns its path.
func (s *Store) Create(year int, caseID string) (string, error) {
	if err := validateCaseID(caseID); err != nil {
		return "", err
	}
	dir := s.Container(year, caseID)
	for _, sub := range []string{PhotosDir, AudioDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil { //nolint:mnd // rwxr-xr-x
			return "", errors.Wrap(errors.Join(errors.ErrPersistence, err), "create container",
				slog.String("dir", dir))
		}
	}
	return dir, nil
}

// Locate finds the container of caseID regardless of its year.
func (s *Store) Locate(caseID string) (string, error) {
	if err := validateCaseID(caseID); err != nil {
		return "", err
	}
	matches, err := filepath.Glob(filepath.Join(s.root, "*", caseID))
	if err != nil {
		return "", errors.Wrap(err, "glob container", slog.String("case_id", caseID))
	}
	for _, match := range matches {
		if info, statErr := os.Stat(match); statErr == nil && info.IsDir() {
			return match, nil
		}
	}
	return "", errors.Wrap(errors.ErrNotFound, "locate container", slog.String("case_id", caseID))
}

// Exists reports whether a container for caseID exists.
func (s *Store) Exists(caseID string) bool {
	_, err := s.Locate(caseID)
	return err == nil
}

// Containers lists every container directory sorted by path.
func (s *Store) Containers() ([]string, error) {
	years, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read root", slog.String("root", s.root))
	}
	var dirs []string
	for _, year := range years {
		if !year.IsDir() {
			continue
		}
		if _, convErr := strconv.Atoi(year.Name()); convErr != nil {
			continue
		}
		cases, readErr := os.ReadDir(filepath.Join(s.root, year.Name()))
		if readErr != nil {
			return nil, errors.Wrap(readErr, "read year", slog.String("year", year.Name()))
		}
		for _, c := range cases {
			if c.IsDir() {
				dirs = append(dirs, filepath.Join(s.root, year.Name(), c.Name()))
			}
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Put writes data to rel inside dir unless the file exists. Existing files are left untouched so that
// replaying the same evidence never changes stored bytes.
func (s *Store) Put(dir, rel string, data []byte) error {
	path, err := resolve(dir, rel)
	if err != nil {
		return err
	}
	if _, err = atomicfile.WriteOnce(path, data); err != nil {
		return errors.Wrap(err, "put blob", slog.String("rel", rel))
	}
	return nil
}

// Open opens rel inside dir for reading.
func (s *Store) Open(dir, rel string) (*os.File, error) {
	path, err := resolve(dir, rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(errors.ErrNotFound, "open blob", slog.String("rel", rel))
	}
	if err != nil {
		return nil, errors.Wrap(err, "open blob", slog.String("rel", rel))
	}
	return f, nil
}

// Missing returns the entries of rels that do not exist inside dir.
func (s *Store) Missing(dir string, rels []string) []string {
	var missing []string
	for _, rel := range rels {
		path, err := resolve(dir, rel)
		if err != nil {
			missing = append(missing, rel)
			continue
		}
		if _, err = os.Stat(path); err != nil {
			missing = append(missing, rel)
		}
	}
	return missing
}

// Remove deletes the container of caseID with everything in it.
func (s *Store) Remove(caseID string) error {
	dir, err := s.Locate(caseID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err = os.RemoveAll(dir); err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "remove container", slog.String("dir", dir))
	}
	return nil
}

// EvidencePath returns the relative storage path of a binary evidence file.
func EvidencePath(sub, evidenceID, ext string) string {
	return filepath.ToSlash(filepath.Join(sub, evidenceID+ext))
}

// DocumentName returns the stored name of the intake document derived from the uploaded filename.
func DocumentName(uploaded string) string {
	ext := strings.ToLower(filepath.Ext(uploaded))
	if ext == "" {
		ext = ".pdf"
	}
	return "intake" + ext
}

func resolve(dir, rel string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", errors.Wrap(errors.ErrInvalidEvidence, "blob path escapes container", slog.String("rel", rel))
	}
	return filepath.Join(dir, filepath.FromSlash(rel)), nil
}

func validateCaseID(caseID string) error {
	if caseID == "" || caseID != filepath.Base(caseID) || strings.ContainsAny(caseID, `/\*?[`) || caseID == "." ||
		caseID == ".." {
		return errors.Wrap(errors.ErrInvalidEvidence, "invalid case id", slog.String("case_id", caseID))
	}
	return nil
}
