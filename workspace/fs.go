package workspace

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/codeflow-cli/codeflow/config"
	"github.com/codeflow-cli/codeflow/errors"
)

// FileSystem is the capability the orchestrator's Applying state consumes.
// Nothing else in the core writes to disk; tools only ever propose.
type FileSystem interface {
	Read(path string) (string, error)
	Write(path string, body string) error
	Delete(path string) error
	Exists(path string) bool
}

// OSFileSystem implements FileSystem against the local disk, honoring the
// configured hidden and read-only path restrictions.
type OSFileSystem struct {
	access *config.FilesystemAccess
}

// NewOSFileSystem creates the disk-backed file capability.
func NewOSFileSystem(access *config.FilesystemAccess) *OSFileSystem {
	return &OSFileSystem{access: access}
}

// Read returns the file body, or a NotFound-wrapping error when the path
// does not exist.
func (f *OSFileSystem) Read(path string) (string, error) {
	if restricted, err := matchesAny(path, f.access.Hidden); err != nil {
		return "", err
	} else if restricted {
		return "", errors.New("access denied: path '%s' is hidden", path)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", errors.Wrapf(errors.NotFound, "reading '%s'", path)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read file '%s'", path)
	}
	return string(data), nil
}

// Write persists body to path, creating parent directories as needed.
func (f *OSFileSystem) Write(path string, body string) error {
	if err := f.checkMutable(path); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory for '%s'", path)
		}
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return errors.Wrapf(err, "failed to write to file '%s'", path)
	}
	return nil
}

// Delete removes path, returning a NotFound-wrapping error when it is
// already gone.
func (f *OSFileSystem) Delete(path string) error {
	if err := f.checkMutable(path); err != nil {
		return err
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return errors.Wrapf(errors.NotFound, "deleting '%s'", path)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to delete file '%s'", path)
	}
	return nil
}

// Exists reports whether path is a regular file visible to the agent.
func (f *OSFileSystem) Exists(path string) bool {
	if restricted, err := matchesAny(path, f.access.Hidden); err != nil || restricted {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (f *OSFileSystem) checkMutable(path string) error {
	if restricted, err := matchesAny(path, f.access.Hidden); err != nil {
		return err
	} else if restricted {
		return errors.New("access denied: path '%s' is hidden", path)
	}
	if restricted, err := matchesAny(path, f.access.ReadOnly); err != nil {
		return err
	} else if restricted {
		return errors.New("access denied: path '%s' is read-only", path)
	}
	return nil
}

// matchesAny checks a path against a list of glob patterns.
func matchesAny(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return false, errors.Wrapf(err, "invalid glob pattern '%s'", pattern)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
