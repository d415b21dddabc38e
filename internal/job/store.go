package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/a3tai/assay-sheets/internal/sheet"
)

// StateStore persists job states as <job_id>.json in a directory, next to
// the job's debug dumps
type StateStore struct {
	dir string
}

// NewStateStore creates a store rooted at dir
func NewStateStore(dir string) *StateStore {
	return &StateStore{dir: dir}
}

// Dir returns the jobs directory
func (s *StateStore) Dir() string { return s.dir }

// Path returns the state file of jobID
func (s *StateStore) Path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

// NormalizedDumpPath returns the normalized text dump of jobID
func (s *StateStore) NormalizedDumpPath(jobID string) string {
	return filepath.Join(s.dir, jobID+"_normalized.txt")
}

// BlockDumpPath returns the block dump of one assay of jobID
func (s *StateStore) BlockDumpPath(jobID, assayKey string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_block.txt", jobID, sheet.SanitizeFilename(assayKey)))
}

// Load reads the state of jobID
func (s *StateStore) Load(jobID string) (*State, error) {
	data, err := os.ReadFile(s.Path(jobID))
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse job state %s: %w", jobID, err)
	}
	return &st, nil
}

// Save writes st atomically: the JSON goes to a temp file in the same
// directory which then replaces the state file, so readers never see a
// partial state.
func (s *StateStore) Save(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode job state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write job state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync job state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close job state: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path(st.JobID)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace job state: %w", err)
	}
	return nil
}

// List loads every state in the directory, sorted by job id. Unreadable
// state files are skipped.
func (s *StateStore) List() ([]*State, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []*State{}, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)

	states := make([]*State, 0, len(ids))
	for _, id := range ids {
		st, err := s.Load(id)
		if err != nil {
			continue
		}
		states = append(states, st)
	}
	return states, nil
}

func (s *StateStore) writeDump(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write debug dump %s: %w", filepath.Base(path), err)
	}
	return nil
}
