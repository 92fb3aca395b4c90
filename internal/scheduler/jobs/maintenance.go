package jobs

import (
	"context"
	"time"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/scheduler"
	"github.com/wonny/vigil/pkg/logger"
)

// resultRetention bounds the cycle-result table. Conviction needs only 48
// hours; the rest is kept for post-mortems, not forever.
const resultRetention = 30 * 24 * time.Hour

// HistoryPruner trims persisted scan output past a retention cutoff.
// Satisfied by store.Store.
type HistoryPruner interface {
	PruneHistory(ctx context.Context, before time.Time) error
}

// historyPruneJob is the nightly persistence housekeeping job. It makes no
// vendor calls, so admission waves it through without budget checks.
type historyPruneJob struct {
	pruner HistoryPruner
	logger *logger.Logger
}

// NewHistoryPrune creates the retention job. Runs after the close.
func NewHistoryPrune(pruner HistoryPruner, log *logger.Logger) scheduler.Job {
	return &historyPruneJob{pruner: pruner, logger: log}
}

func (j *historyPruneJob) Name() string     { return "history_prune" }
func (j *historyPruneJob) Schedule() string { return "30 16 * * 1-5" }

func (j *historyPruneJob) Definition() contracts.ScanJob {
	return contracts.ScanJob{Type: contracts.JobMaintenance, Schedule: j.Schedule()}
}

func (j *historyPruneJob) Run(ctx context.Context, plan scheduler.CyclePlan) error {
	cutoff := plan.Cycle.Add(-resultRetention)
	if err := j.pruner.PruneHistory(ctx, cutoff); err != nil {
		return err
	}
	j.logger.WithField("cutoff", cutoff).Info("Scan history pruned")
	return nil
}
