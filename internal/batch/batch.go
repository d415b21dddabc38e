// Package batch submits many PDFs one after another and summarizes the
// outcomes.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a3tai/assay-sheets/internal/job"
)

// Submitter processes one PDF
type Submitter interface {
	Submit(pdfPath string) *job.Result
}

// Summary is the outcome of one batch run
type Summary struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Results  []*job.Result `json:"results"`
	Done     int           `json:"done"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	// Pending counts inputs not submitted because the run was cancelled
	Pending int `json:"pending,omitempty"`
}

// Runner drives a Submitter over a list of files
type Runner struct {
	logger   *zap.Logger
	progress func(index, total int, res *job.Result)
}

// NewRunner creates a runner. A nil logger disables logging.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// OnResult registers a callback invoked after each submitted file
func (r *Runner) OnResult(fn func(index, total int, res *job.Result)) *Runner {
	r.progress = fn
	return r
}

// Run submits paths strictly in order. Cancelling ctx stops the run before
// the next file; a job already started always runs to completion.
func (r *Runner) Run(ctx context.Context, sub Submitter, paths []string) *Summary {
	summary := &Summary{
		RunID:   uuid.NewString(),
		Started: time.Now().UTC(),
		Results: make([]*job.Result, 0, len(paths)),
	}
	log := r.logger.With(zap.String("run_id", summary.RunID))
	log.Info("Batch started", zap.Int("files", len(paths)))

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			summary.Pending = len(paths) - i
			log.Warn("Batch cancelled", zap.Int("pending", summary.Pending), zap.Error(err))
			break
		}

		res := sub.Submit(path)
		summary.Results = append(summary.Results, res)
		switch res.Status {
		case job.ResultDone:
			summary.Done++
		case job.ResultFailed:
			summary.Failed++
		case job.ResultSkipped:
			summary.Skipped++
		}
		if r.progress != nil {
			r.progress(i+1, len(paths), res)
		}
	}

	summary.Duration = time.Since(summary.Started)
	log.Info("Batch finished",
		zap.Int("done", summary.Done),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration))
	return summary
}

// FindPDFs lists the *.pdf files (any case) in dir, sorted by path. Hidden
// directories are skipped when recursing.
func FindPDFs(dir string, recursive bool) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("directory does not exist: %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// keep walking past unreadable entries
			return nil
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && isPDF(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
