package job

import "fmt"

// ResultStatus is the outcome reported to callers of Submit
type ResultStatus string

const (
	ResultDone    ResultStatus = "DONE"
	ResultFailed  ResultStatus = "FAILED"
	ResultSkipped ResultStatus = "SKIPPED"
)

// Reasons attached to SKIPPED results and early failures
const (
	ReasonAlreadyDone = "already_done"
	ReasonLocked      = "locked"
	ErrPDFNotFound    = "pdf_not_found"
	ErrNoAssay        = "no_assay_detected"
)

// Details carries stage-specific diagnostics of a result
type Details struct {
	Reason    string       `json:"reason,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorKind string       `json:"error_kind,omitempty"`
	AssayKeys []string     `json:"assay_keys,omitempty"`
	Writes    []WriteEntry `json:"writes,omitempty"`
}

// Result is returned by Submit for every input, successful or not
type Result struct {
	JobID   string       `json:"job_id"`
	PDFPath string       `json:"pdf_path"`
	Status  ResultStatus `json:"status"`
	Details Details      `json:"details"`
}

// String renders a one-line summary of the result
func (r *Result) String() string {
	switch r.Status {
	case ResultSkipped:
		return fmt.Sprintf("%s %s %s (%s)", r.Status, r.JobID, r.PDFPath, r.Details.Reason)
	case ResultFailed:
		return fmt.Sprintf("%s %s %s: %s", r.Status, r.JobID, r.PDFPath, r.Details.Error)
	default:
		return fmt.Sprintf("%s %s %s (%d writes)", r.Status, r.JobID, r.PDFPath, len(r.Details.Writes))
	}
}
