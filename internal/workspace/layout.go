// Package workspace describes the directory layout of a project root.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/a3tai/assay-sheets/internal/lock"
)

// Default directory names below the project root
const (
	RulesDirName  = "rules"
	JobsDirName   = "jobs"
	LocksDirName  = "locks"
	IndexFileName = "index.json"
)

// DefaultOutputDir is the workbook directory relative to the root
var DefaultOutputDir = filepath.Join("output", "final")

// Layout holds the directories a job reads from and writes to
type Layout struct {
	Root      string `json:"root"`
	RulesDir  string `json:"rules_dir"`
	JobsDir   string `json:"jobs_dir"`
	LocksDir  string `json:"locks_dir"`
	OutputDir string `json:"output_dir"`
}

// New returns the default layout below root
func New(root string) Layout {
	return Layout{
		Root:      root,
		RulesDir:  filepath.Join(root, RulesDirName),
		JobsDir:   filepath.Join(root, JobsDirName),
		LocksDir:  filepath.Join(root, LocksDirName),
		OutputDir: filepath.Join(root, DefaultOutputDir),
	}
}

// IndexPath is the location of the assay index
func (l Layout) IndexPath() string {
	return filepath.Join(l.RulesDir, IndexFileName)
}

// Ensure creates the jobs and locks directories
func (l Layout) Ensure() error {
	for _, dir := range []string{l.JobsDir, l.LocksDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// ActiveLocks lists job locks currently held
func (l Layout) ActiveLocks() ([]string, error) {
	return lock.List(l.LocksDir)
}

// ClearDir removes every entry inside dir and returns how many were removed.
// It refuses while any job lock is held, since a running job may be writing
// there. A missing directory counts as empty.
func (l Layout) ClearDir(dir string) (int, error) {
	held, err := l.ActiveLocks()
	if err != nil {
		return 0, err
	}
	if len(held) > 0 {
		return 0, fmt.Errorf("%d job lock(s) held in %s", len(held), l.LocksDir)
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	removed := 0
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}
