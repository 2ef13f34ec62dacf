package build

import (
	"errors"
	"time"

	"github.com/cruciblehq/tessera/internal/matrix"
)

// Outcome of one job.
type Status string

const (
	StatusSuccess Status = "success" // Artifact produced and collected.
	StatusFailed  Status = "failed"  // Environment, cargo or collection failed.
	StatusSkipped Status = "skipped" // Not started because the run was cancelled.
)

// Outcome of a full matrix run.
type Result struct {
	Jobs     []JobResult   // One entry per variant, in variant order.
	Duration time.Duration // Wall time of the run.
}

// Outcome of one variant's build.
type JobResult struct {
	Variant  matrix.Variant // Variant that was built.
	Status   Status         // Outcome.
	Artifact string         // Collected binary. Empty unless Status is success.
	Log      string         // Path of the cargo output log.
	Duration time.Duration  // Wall time of the job.
	Error    error          // Failure cause. Nil on success.
}

// Returns the failures of all jobs joined, or nil when every job succeeded.
func (r *Result) Err() error {
	var errs []error
	for _, j := range r.Jobs {
		if j.Error != nil {
			errs = append(errs, j.Error)
		}
	}
	return errors.Join(errs...)
}

// Returns the jobs that produced an artifact.
func (r *Result) Succeeded() []JobResult {
	var out []JobResult
	for _, j := range r.Jobs {
		if j.Status == StatusSuccess {
			out = append(out, j)
		}
	}
	return out
}
