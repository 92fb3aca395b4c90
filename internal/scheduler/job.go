package scheduler

import (
	"context"
	"time"

	"github.com/wonny/vigil/internal/contracts"
)

// Job represents a scheduled scan job.
// SSOT: the scheduled job interface is defined here only.
type Job interface {
	// Name returns the job name
	Name() string

	// Schedule returns the cron schedule expression
	Schedule() string

	// Definition returns the immutable job definition used for admission
	Definition() contracts.ScanJob

	// Run executes the job against the admitted plan
	Run(ctx context.Context, plan CyclePlan) error
}

// CyclePlan is the admission decision for one job trigger.
type CyclePlan struct {
	Cycle time.Time

	// Sources admitted for this run. A degraded run carries fewer sources
	// than the definition requires.
	Sources []contracts.Source

	Degraded bool
}

// HasSource reports whether a source was admitted.
func (p CyclePlan) HasSource(s contracts.Source) bool {
	for _, src := range p.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// SkipReason is a machine-readable admission skip code.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipBudget       SkipReason = "budget_exhausted"
	SkipWindowClosed SkipReason = "window_closed"
	SkipNoSymbolsDue SkipReason = "all_symbols_cooling_down"
)

// JobResult represents the outcome of one job trigger.
type JobResult struct {
	JobName    string        `json:"job_name"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	Skipped    bool          `json:"skipped"`
	SkipReason SkipReason    `json:"skip_reason,omitempty"`
	Degraded   bool          `json:"degraded"`
	Error      string        `json:"error,omitempty"`
}

// JobHistory stores job execution history
type JobHistory struct {
	Results []JobResult
}

// AddResult adds a job result to history
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)

	// Keep only last 100 results
	if len(h.Results) > 100 {
		h.Results = h.Results[len(h.Results)-100:]
	}
}

// GetLatestResults returns the latest N results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}

	if n == 0 {
		return []JobResult{}
	}

	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns all failed results
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success && !result.Skipped {
			failed = append(failed, result)
		}
	}
	return failed
}

// GetSuccessRate returns the success rate over executed (non-skipped) runs
func (h *JobHistory) GetSuccessRate() float64 {
	executed, succeeded := 0, 0
	for _, result := range h.Results {
		if result.Skipped {
			continue
		}
		executed++
		if result.Success {
			succeeded++
		}
	}
	if executed == 0 {
		return 0.0
	}
	return float64(succeeded) / float64(executed)
}
