// Package job runs the ingestion pipeline for one PDF with content-hash
// identity, an exclusive per-job lock and a persisted, resumable state.
package job

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/a3tai/assay-sheets/internal/detect"
	apperrors "github.com/a3tai/assay-sheets/internal/errors"
	"github.com/a3tai/assay-sheets/internal/extract"
	"github.com/a3tai/assay-sheets/internal/lock"
	"github.com/a3tai/assay-sheets/internal/normalize"
	"github.com/a3tai/assay-sheets/internal/pdf"
	"github.com/a3tai/assay-sheets/internal/rules"
	"github.com/a3tai/assay-sheets/internal/sheet"
	"github.com/a3tai/assay-sheets/internal/split"
	"github.com/a3tai/assay-sheets/internal/workspace"
)

// jobIDLength is the number of hex characters of the content hash kept
const jobIDLength = 16

// DocumentParser extracts ordered lines from a PDF
type DocumentParser interface {
	Parse(path string) (*pdf.ParsedDocument, error)
}

// Orchestrator submits PDFs through the pipeline
type Orchestrator struct {
	layout  workspace.Layout
	store   *StateStore
	parser  DocumentParser
	writer  *sheet.Writer
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records job metrics
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithParser replaces the PDF parser
func WithParser(p DocumentParser) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.parser = p
		}
	}
}

// WithMaxFileSize sets the input size limit of the default parser
func WithMaxFileSize(n int64) Option {
	return func(o *Orchestrator) { o.parser = pdf.NewParser(n) }
}

// NewOrchestrator creates an orchestrator over layout
func NewOrchestrator(layout workspace.Layout, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		layout: layout,
		store:  NewStateStore(layout.JobsDir),
		parser: pdf.NewParser(pdf.DefaultMaxFileSize),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.writer = sheet.NewWriter(o.logger)
	return o
}

// Submit processes the PDF at pdfPath below projectRoot's default layout
func Submit(pdfPath, projectRoot string) *Result {
	return NewOrchestrator(workspace.New(projectRoot)).Submit(pdfPath)
}

// Store returns the state store
func (o *Orchestrator) Store() *StateStore { return o.store }

// Layout returns the directory layout
func (o *Orchestrator) Layout() workspace.Layout { return o.layout }

// Submit runs the whole pipeline for one PDF. It never panics and always
// returns a result: DONE, FAILED with the error in the details, or SKIPPED
// when the same content is already done or currently locked.
func (o *Orchestrator) Submit(pdfPath string) *Result {
	res := o.submit(pdfPath)
	o.metrics.observeJob(res.Status, res.Details.ErrorKind)

	fields := []zap.Field{
		zap.String("job_id", res.JobID),
		zap.String("pdf_path", res.PDFPath),
		zap.String("status", string(res.Status)),
	}
	switch res.Status {
	case ResultFailed:
		o.logger.Error("Job failed", append(fields, zap.String("error", res.Details.Error))...)
	case ResultSkipped:
		o.logger.Info("Job skipped", append(fields, zap.String("reason", res.Details.Reason))...)
	default:
		o.logger.Info("Job done", append(fields, zap.Strings("assay_keys", res.Details.AssayKeys))...)
	}
	return res
}

func (o *Orchestrator) submit(pdfPath string) *Result {
	if info, err := os.Stat(pdfPath); err != nil || info.IsDir() {
		return failed("", pdfPath, apperrors.New(apperrors.KindInput, ErrPDFNotFound))
	}

	jobID, err := HashFile(pdfPath)
	if err != nil {
		return failed("", pdfPath, err)
	}

	if err := o.layout.Ensure(); err != nil {
		return failed(jobID, pdfPath, apperrors.Wrap(apperrors.KindWrite, err, "cannot prepare project directories"))
	}

	if o.isDone(jobID) {
		return alreadyDone(jobID, pdfPath)
	}

	jobLock, err := lock.Acquire(filepath.Join(o.layout.LocksDir, jobID+".lock"))
	if errors.Is(err, lock.ErrHeld) {
		return &Result{JobID: jobID, PDFPath: pdfPath, Status: ResultSkipped, Details: Details{Reason: ReasonLocked}}
	}
	if err != nil {
		return failed(jobID, pdfPath, apperrors.Wrap(apperrors.KindLock, err, "cannot acquire job lock"))
	}
	defer func() {
		if err := jobLock.Release(); err != nil {
			o.logger.Warn("Failed to release job lock", zap.String("job_id", jobID), zap.Error(err))
		}
	}()

	return o.runLocked(jobID, pdfPath)
}

// runLocked processes a job whose lock is held by the caller. The job may
// have finished between the first DONE check and the lock, so it is
// checked again before the state is reset.
func (o *Orchestrator) runLocked(jobID, pdfPath string) *Result {
	if o.isDone(jobID) {
		return alreadyDone(jobID, pdfPath)
	}

	state := NewState(jobID, pdfPath)
	if err := o.store.Save(state); err != nil {
		return failed(jobID, pdfPath, apperrors.Wrap(apperrors.KindWrite, err, "cannot save job state"))
	}

	details, err := o.safeRun(state)
	if err != nil {
		state.Fail(err)
		if saveErr := o.store.Save(state); saveErr != nil {
			o.logger.Error("Failed to save job state", zap.String("job_id", jobID), zap.Error(saveErr))
		}
		return failed(jobID, pdfPath, err)
	}
	return &Result{JobID: jobID, PDFPath: pdfPath, Status: ResultDone, Details: *details}
}

// isDone reports a terminal DONE state; an unreadable state file is ignored
func (o *Orchestrator) isDone(jobID string) bool {
	st, err := o.store.Load(jobID)
	return err == nil && st.Status == StatusDone
}

func alreadyDone(jobID, pdfPath string) *Result {
	return &Result{JobID: jobID, PDFPath: pdfPath, Status: ResultSkipped, Details: Details{Reason: ReasonAlreadyDone}}
}

// safeRun turns a panic in any stage into a job failure
func (o *Orchestrator) safeRun(state *State) (details *Details, err error) {
	defer func() {
		if r := recover(); r != nil {
			details = nil
			err = apperrors.Newf(apperrors.KindUnknown, "panic: %v", r)
		}
	}()
	return o.run(state)
}

// run executes the stages in order, saving the state after each one. Any
// returned error fails the job.
func (o *Orchestrator) run(state *State) (*Details, error) {
	log := o.logger.With(zap.String("job_id", state.JobID))

	started := time.Now()
	doc, err := o.parser.Parse(state.PDFPath)
	if err != nil {
		return nil, err
	}
	o.metrics.observeStage(StepParser, started)
	if err := o.advance(state, StatusParsed, Step{Step: StepParser, PageCount: doc.Meta.PageCount, Engine: doc.Meta.Engine}); err != nil {
		return nil, err
	}
	log.Debug("Parsed document", zap.Int("page_count", doc.Meta.PageCount))

	started = time.Now()
	normLines := normalize.Lines(doc.Lines())
	normText := normalize.Text(normLines)
	o.metrics.observeStage(StepNormalizer, started)
	lineCount := len(normLines)
	if err := o.advance(state, StatusNormalized, Step{Step: StepNormalizer, Lines: &lineCount}); err != nil {
		return nil, err
	}

	normalizedDump := o.store.NormalizedDumpPath(state.JobID)
	if err := o.store.writeDump(normalizedDump, normText); err != nil {
		return nil, apperrors.Wrap(apperrors.KindWrite, err, "cannot write normalized dump")
	}
	if err := o.advance(state, "", Step{Step: StepDebug, NormalizedDump: normalizedDump}); err != nil {
		return nil, err
	}

	started = time.Now()
	matches, err := detect.Detect(normText, o.layout.IndexPath())
	if err != nil {
		return nil, err
	}
	o.metrics.observeStage(StepAssayChooser, started)
	assayKeys := detect.Keys(matches)
	if err := o.advance(state, StatusAssaysDetected, Step{Step: StepAssayChooser, AssayKeys: assayKeys}); err != nil {
		return nil, err
	}
	log.Debug("Detected assays", zap.Strings("assay_keys", assayKeys))

	if len(assayKeys) == 0 {
		return nil, apperrors.New(apperrors.KindInput, ErrNoAssay)
	}

	// rule sets are needed up front: the split anchors on assay names
	idx, err := rules.LoadIndex(o.layout.IndexPath())
	if err != nil {
		return nil, err
	}
	ruleSets := make(map[string]*rules.RuleSet, len(assayKeys))
	descriptors := make([]split.AssayDescriptor, 0, len(assayKeys))
	for _, key := range assayKeys {
		rs, err := rules.ResolveWithIndex(key, o.layout.RulesDir, idx)
		if err != nil {
			return nil, err
		}
		if rs.AssayName == "" {
			return nil, apperrors.Config("ruleset missing assay_name for %s", key).WithKey(key)
		}
		ruleSets[key] = rs
		descriptors = append(descriptors, split.AssayDescriptor{AssayKey: key, AssayName: rs.AssayName})
	}

	started = time.Now()
	blocks, err := split.ByNameAndKey(normText, descriptors)
	if err != nil {
		return nil, err
	}
	o.metrics.observeStage(StepContentSplit, started)
	blockLines := make(map[string]int, len(blocks))
	for key, block := range blocks {
		blockLines[key] = strings.Count(block, "\n") + 1
	}
	if err := o.advance(state, StatusSplit, Step{
		Step:   StepContentSplit,
		Mode:   SplitModeNameAndKey,
		Assays: descriptors,
		Blocks: blockLines,
	}); err != nil {
		return nil, err
	}

	blockDumps := make(map[string]string, len(blocks))
	for _, key := range assayKeys {
		path := o.store.BlockDumpPath(state.JobID, key)
		if err := o.store.writeDump(path, blocks[key]); err != nil {
			return nil, apperrors.Wrap(apperrors.KindWrite, err, "cannot write block dump").WithKey(key)
		}
		blockDumps[key] = path
	}
	if err := o.advance(state, "", Step{Step: StepDebugBlocks, BlockDumps: blockDumps}); err != nil {
		return nil, err
	}

	started = time.Now()
	writes := make([]WriteEntry, 0, len(assayKeys))
	for _, key := range assayKeys {
		rs := ruleSets[key]
		rec, err := extract.Record(blocks[key], rs)
		if err != nil {
			return nil, err
		}
		wr, err := o.writer.Write(rec, rs, o.layout.OutputDir)
		if err != nil {
			return nil, err
		}
		o.metrics.observeWrite(string(wr.Status))
		writes = append(writes, WriteEntry{AssayKey: key, WriteResult: *wr})
	}
	o.metrics.observeStage(StepWriter, started)

	if err := o.advance(state, StatusDone, Step{Step: StepWriter, Writes: writes}); err != nil {
		return nil, err
	}
	return &Details{AssayKeys: assayKeys, Writes: writes}, nil
}

func (o *Orchestrator) advance(state *State, status Status, step Step) error {
	step.At = time.Now().UTC()
	state.Advance(status, step)
	if err := o.store.Save(state); err != nil {
		return apperrors.Wrap(apperrors.KindWrite, err, "cannot save job state")
	}
	return nil
}

// HashFile returns the job id of a file: the first 16 hex characters of
// the SHA-256 of its content
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInput, err, "cannot open PDF")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", apperrors.Wrap(apperrors.KindInput, err, "cannot read PDF")
	}
	return hex.EncodeToString(h.Sum(nil))[:jobIDLength], nil
}

func failed(jobID, pdfPath string, err error) *Result {
	return &Result{
		JobID:   jobID,
		PDFPath: pdfPath,
		Status:  ResultFailed,
		Details: Details{Error: err.Error(), ErrorKind: apperrors.KindOf(err).String()},
	}
}
