// Package lock implements advisory, non-blocking file locks. A lock is held
// while its marker file exists; acquiring creates the file with O_EXCL so
// exactly one caller wins, across processes.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrHeld is returned when the lock file already exists
var ErrHeld = errors.New("lock already held")

// Lock is an acquired file lock
type Lock struct {
	path string
}

// Acquire creates the zero-byte marker at path. It never waits: if the
// marker exists the result is ErrHeld.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrHeld, path)
		}
		return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to close lock file %s: %w", path, err)
	}
	return &Lock{path: path}, nil
}

// Path returns the marker file location
func (l *Lock) Path() string {
	return l.path
}

// Release removes the marker. Releasing twice, or a marker that was removed
// by someone else, is not an error.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file %s: %w", l.path, err)
	}
	return nil
}

// Held reports whether a marker currently exists at path
func Held(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// List returns the lock markers (*.lock) in dir, sorted by name. A missing
// directory holds no locks.
func List(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.lock"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
