// Package scheduler drives the scan calendar: cron-triggered jobs pass
// budget and cooldown admission before the pipeline runs, and the last
// completed cycle timestamp is tracked for liveness.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/vigil/internal/budget"
	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/pkg/logger"
)

// Scheduler manages scheduled scan jobs.
// SSOT: schedule management happens here only.
type Scheduler struct {
	cron     *cron.Cron
	logger   *logger.Logger
	budget   *budget.Manager
	cooldown *CooldownTracker

	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory
	mu      sync.RWMutex

	// liveness
	lastCompleted time.Time
	livenessMu    sync.RWMutex

	maxRetries int
	retryDelay time.Duration
}

// New creates a scheduler. Cron expressions evaluate in loc, the exchange
// timezone; the host timezone never enters schedule math.
func New(log *logger.Logger, bm *budget.Manager, cooldown *CooldownTracker, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		logger:     log,
		budget:     bm,
		cooldown:   cooldown,
		jobs:       make(map[string]Job),
		entries:    make(map[string]cron.EntryID),
		history:    make(map[string]*JobHistory),
		maxRetries: 2,
		retryDelay: 1 * time.Minute,
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()

	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runJob(job, time.Now())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	s.jobs[jobName] = job
	s.entries[jobName] = id
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// RunJob runs a specific job immediately, outside its schedule
func (s *Scheduler) RunJob(jobName string) error {
	s.mu.RLock()
	job, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	go s.runJob(job, time.Now())
	return nil
}

// NextRun returns a job's next scheduled activation. Zero until the
// scheduler has started.
func (s *Scheduler) NextRun(jobName string) (time.Time, error) {
	s.mu.RLock()
	id, exists := s.entries[jobName]
	s.mu.RUnlock()

	if !exists {
		return time.Time{}, fmt.Errorf("job %s not found", jobName)
	}
	return s.cron.Entry(id).Next, nil
}

// LastCompleted returns the liveness timestamp: when the most recent cycle
// finished. Zero until the first completion.
func (s *Scheduler) LastCompleted() time.Time {
	s.livenessMu.RLock()
	defer s.livenessMu.RUnlock()
	return s.lastCompleted
}

// Admit decides whether and how a job runs at the given instant. Rejection
// consumes no budget. A nil plan means skip, with the reason recorded.
func (s *Scheduler) Admit(ctx context.Context, def contracts.ScanJob, at time.Time) (*CyclePlan, SkipReason) {
	// Admission gates vendor calls; a job with no sources has nothing to
	// admit and runs unconditionally.
	if len(def.RequiredSources) == 0 {
		return &CyclePlan{Cycle: at}, SkipNone
	}

	if _, open := s.budget.WindowFor(at); !open {
		return nil, SkipWindowClosed
	}

	due := s.cooldown.DueSymbols(ctx, def.Symbols, def.RequiredSources, at)
	if len(due) == 0 {
		return nil, SkipNoSymbolsDue
	}

	var admitted []contracts.Source
	for _, src := range def.RequiredSources {
		// Sources absent from CallsPerSymbol are per-cycle, not per-symbol:
		// one call regardless of how many symbols are due.
		per, perSymbol := def.CallsPerSymbol[src]
		needed := per * len(due)
		if !perSymbol || needed == 0 {
			needed = 1
		}
		if s.budget.HasHeadroom(at, src, needed) {
			admitted = append(admitted, src)
		}
	}

	if len(admitted) == 0 {
		return nil, SkipBudget
	}
	if len(admitted) < len(def.RequiredSources) && !def.AllowDegraded {
		return nil, SkipBudget
	}

	return &CyclePlan{
		Cycle:    at,
		Sources:  admitted,
		Degraded: len(admitted) < len(def.RequiredSources),
	}, SkipNone
}

// runJob admits and executes a job with retry, recording history and the
// liveness timestamp.
func (s *Scheduler) runJob(job Job, at time.Time) {
	jobName := job.Name()
	startTime := time.Now()

	ctx := context.Background()
	plan, skip := s.Admit(ctx, job.Definition(), at)
	if plan == nil {
		s.logger.WithFields(map[string]interface{}{
			"job":    jobName,
			"reason": skip,
		}).Info("Job skipped at admission")
		s.record(JobResult{
			JobName:    jobName,
			StartTime:  startTime,
			EndTime:    time.Now(),
			Skipped:    true,
			SkipReason: skip,
		})
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"sources":  plan.Sources,
		"degraded": plan.Degraded,
	}).Info("Job started")

	var lastErr error
	var success bool

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := job.Run(ctx, *plan)
		if err == nil {
			success = true
			break
		}

		lastErr = err
		s.logger.WithFields(map[string]interface{}{
			"job":     jobName,
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Job execution failed, retrying")

		if attempt < s.maxRetries {
			time.Sleep(s.retryDelay)
		}
	}

	endTime := time.Now()
	result := JobResult{
		JobName:   jobName,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
		Success:   success,
		Degraded:  plan.Degraded,
	}
	if !success && lastErr != nil {
		result.Error = lastErr.Error()
	}
	s.record(result)

	if success {
		s.livenessMu.Lock()
		s.lastCompleted = endTime
		s.livenessMu.Unlock()

		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": result.Duration,
		}).Info("Job completed successfully")
	} else {
		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": result.Duration,
			"error":    lastErr.Error(),
		}).Error("Job failed after all retries")
	}
}

func (s *Scheduler) record(result JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if history, exists := s.history[result.JobName]; exists {
		history.AddResult(result)
	}
}

// GetAllJobs returns the registered job names, sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetJobHistory returns the history for a specific job
func (s *Scheduler) GetJobHistory(jobName string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}

	return history, nil
}

// GetJobStats returns statistics for all jobs
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats)

	for jobName, history := range s.history {
		failedResults := history.GetFailedResults()
		latestResults := history.GetLatestResults(1)

		var lastRun *time.Time
		if len(latestResults) > 0 {
			lastRun = &latestResults[0].StartTime
		}

		stats[jobName] = JobStats{
			JobName:      jobName,
			Schedule:     s.jobs[jobName].Schedule(),
			TotalRuns:    len(history.Results),
			FailureCount: len(failedResults),
			SuccessRate:  history.GetSuccessRate(),
			LastRun:      lastRun,
		}
	}

	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
}
