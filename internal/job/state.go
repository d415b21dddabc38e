package job

import (
	"time"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
	"github.com/a3tai/assay-sheets/internal/sheet"
	"github.com/a3tai/assay-sheets/internal/split"
)

// Status is the persisted stage of a job
type Status string

const (
	StatusLocked         Status = "LOCKED"
	StatusParsed         Status = "PARSED"
	StatusNormalized     Status = "NORMALIZED"
	StatusAssaysDetected Status = "ASSAYS_DETECTED"
	StatusSplit          Status = "SPLIT"
	StatusDone           Status = "DONE"
	StatusFailed         Status = "FAILED"
)

// Step names recorded in State.Steps
const (
	StepParser       = "parser"
	StepNormalizer   = "normalizer"
	StepDebug        = "debug"
	StepAssayChooser = "assaychooser"
	StepContentSplit = "contentsplitter"
	StepDebugBlocks  = "debug_blocks"
	StepWriter       = "writer"
)

// SplitModeNameAndKey marks blocks anchored on assay name and validated by key
const SplitModeNameAndKey = "assay_name_and_key"

// WriteEntry records one workbook write of a job
type WriteEntry struct {
	AssayKey string `json:"assay_key"`
	sheet.WriteResult
}

// Step is one entry of the job's progress log. Only the fields relevant
// to the step are set.
type Step struct {
	Step           string                  `json:"step"`
	At             time.Time               `json:"at"`
	PageCount      int                     `json:"page_count,omitempty"`
	Engine         string                  `json:"engine,omitempty"`
	Lines          *int                    `json:"lines,omitempty"`
	NormalizedDump string                  `json:"normalized_dump,omitempty"`
	AssayKeys      []string                `json:"assay_keys,omitempty"`
	Mode           string                  `json:"mode,omitempty"`
	Assays         []split.AssayDescriptor `json:"assays,omitempty"`
	Blocks         map[string]int          `json:"blocks,omitempty"`
	BlockDumps     map[string]string       `json:"block_dumps,omitempty"`
	Writes         []WriteEntry            `json:"writes,omitempty"`
}

// State is the persisted record of a job. It is owned by one Submit call
// and saved after every transition.
type State struct {
	JobID     string `json:"job_id"`
	PDFPath   string `json:"pdf_path"`
	Status    Status `json:"status"`
	Steps     []Step `json:"steps"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// NewState starts a job in the LOCKED state
func NewState(jobID, pdfPath string) *State {
	return &State{JobID: jobID, PDFPath: pdfPath, Status: StatusLocked, Steps: []Step{}}
}

// Advance moves to status and records step. A zero step is not logged.
func (s *State) Advance(status Status, step Step) {
	if status != "" {
		s.Status = status
	}
	if step.Step != "" {
		s.Steps = append(s.Steps, step)
	}
}

// Fail marks the job FAILED with err's message and kind
func (s *State) Fail(err error) {
	s.Status = StatusFailed
	s.Error = err.Error()
	s.ErrorKind = apperrors.KindOf(err).String()
}
