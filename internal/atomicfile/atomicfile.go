// Package atomicfile replaces files so that readers observe either the old or the new contents in full.
package atomicfile

import (
	"encoding/json"
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// WriteFile writes data to a temporary file in the directory of path, syncs it and renames it over path.
// The rename is atomic on POSIX file systems. The temporary file is removed on failure.
func WriteFile(path string, data []byte) error {
	if path == "" {
		return errors.Wrap(errors.ErrPersistence, "empty path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "create dir", slog.String("dir", dir))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "create temp file", slog.String("path", path))
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "write temp file", slog.String("path", tmpName))
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "sync temp file", slog.String("path", tmpName))
	}
	if err = tmp.Chmod(filePerm); err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "chmod temp file", slog.String("path", tmpName))
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "close temp file", slog.String("path", tmpName))
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		committed = true
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "rename temp file", slog.String("path", path))
	}
	committed = true
	syncDir(dir)
	return nil
}

// WriteJSON marshals v as indented JSON and writes it with [WriteFile].
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(errors.Join(errors.ErrPersistence, err), "marshal json", slog.String("path", path))
	}
	data = append(data, '\n')
	return WriteFile(path, data)
}

// WriteOnce writes data to path unless path already exists. It reports whether it wrote the file.
// Existing files are never modified.
func WriteOnce(path string, data []byte) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, errors.Wrap(errors.Join(errors.ErrPersistence, err), "stat file", slog.String("path", path))
	}
	if err = WriteFile(path, data); err != nil {
		return false, err
	}
	return true, nil
}

// ReadJSON unmarshals the JSON file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read file", slog.String("path", path))
	}
	if err = json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "unmarshal json", slog.String("path", path))
	}
	return nil
}

// syncDir makes the rename durable. Some platforms cannot fsync directories so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
