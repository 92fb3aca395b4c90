// Package jobs defines the scan calendar: concrete job definitions bound to
// the cycle runner. Schedules are cron expressions in exchange-local time.
//
// CallsPerSymbol entries mirror the clients' actual request fan-out: one
// polygon snapshot is 3 requests (live snapshot, daily bars, intraday bars),
// one uw snapshot is 4 (greeks, options volume, dark pool, put wall) and one
// quiver snapshot is 2 (insider, congress). Earnings carries no entry; the
// calendar is fetched once per cycle.
package jobs

import (
	"context"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/scheduler"
)

// ScanRunner executes one admitted cycle. Satisfied by scan.Orchestrator.
type ScanRunner interface {
	RunCycle(ctx context.Context, def contracts.ScanJob, plan scheduler.CyclePlan) (*contracts.CycleResult, error)
}

// scanJob binds a name, a schedule and an immutable definition to the runner.
type scanJob struct {
	name     string
	schedule string
	def      contracts.ScanJob
	runner   ScanRunner
}

func (j *scanJob) Name() string                  { return j.name }
func (j *scanJob) Schedule() string              { return j.schedule }
func (j *scanJob) Definition() contracts.ScanJob { return j.def }
func (j *scanJob) Run(ctx context.Context, plan scheduler.CyclePlan) error {
	_, err := j.runner.RunCycle(ctx, j.def, plan)
	return err
}

// NewMorningScan is the first full-pipeline pass after the open, once the
// opening auction noise settles.
func NewMorningScan(runner ScanRunner, symbols []string) scheduler.Job {
	return &scanJob{
		name:     "morning_scan",
		schedule: "0 10 * * 1-5",
		def: contracts.ScanJob{
			Type:     contracts.JobFullScan,
			Schedule: "0 10 * * 1-5",
			Symbols:  symbols,
			RequiredSources: []contracts.Source{
				contracts.SourcePolygon, contracts.SourceUW,
				contracts.SourceQuiver, contracts.SourceEarnings,
			},
			CallsPerSymbol: map[contracts.Source]int{
				contracts.SourcePolygon: 3,
				contracts.SourceUW:      4,
				contracts.SourceQuiver:  2,
			},
			AllowDegraded: true,
		},
		runner: runner,
	}
}

// NewMiddayFlowScan refreshes flow-driven signals mid-session without
// burning filings budget.
func NewMiddayFlowScan(runner ScanRunner, symbols []string) scheduler.Job {
	return &scanJob{
		name:     "midday_flow_scan",
		schedule: "30 12 * * 1-5",
		def: contracts.ScanJob{
			Type:            contracts.JobFlowScan,
			Schedule:        "30 12 * * 1-5",
			Symbols:         symbols,
			RequiredSources: []contracts.Source{contracts.SourcePolygon, contracts.SourceUW},
			CallsPerSymbol: map[contracts.Source]int{
				contracts.SourcePolygon: 3,
				contracts.SourceUW:      4,
			},
			AllowDegraded: true,
		},
		runner: runner,
	}
}

// NewAfternoonScan is the last full pass with enough session left to act on
// an alert before the close.
func NewAfternoonScan(runner ScanRunner, symbols []string) scheduler.Job {
	return &scanJob{
		name:     "afternoon_scan",
		schedule: "30 14 * * 1-5",
		def: contracts.ScanJob{
			Type:     contracts.JobFullScan,
			Schedule: "30 14 * * 1-5",
			Symbols:  symbols,
			RequiredSources: []contracts.Source{
				contracts.SourcePolygon, contracts.SourceUW,
				contracts.SourceEarnings,
			},
			CallsPerSymbol: map[contracts.Source]int{
				contracts.SourcePolygon: 3,
				contracts.SourceUW:      4,
			},
			AllowDegraded: true,
		},
		runner: runner,
	}
}

// NewPreMarketFilingsScan sweeps overnight insider and congressional filings
// before the open, priming the filings cache the session's full scans read
// instead of refetching. Filings move slowly, so a degraded run is
// pointless; the job waits for quiver headroom instead.
func NewPreMarketFilingsScan(runner ScanRunner, symbols []string) scheduler.Job {
	return &scanJob{
		name:     "premarket_filings_scan",
		schedule: "0 8 * * 1-5",
		def: contracts.ScanJob{
			Type:            contracts.JobFilingsScan,
			Schedule:        "0 8 * * 1-5",
			Symbols:         symbols,
			RequiredSources: []contracts.Source{contracts.SourceQuiver},
			CallsPerSymbol: map[contracts.Source]int{
				contracts.SourceQuiver: 2,
			},
			AllowDegraded: false,
		},
		runner: runner,
	}
}

// All returns the full scan calendar for a watchlist.
func All(runner ScanRunner, symbols []string) []scheduler.Job {
	return []scheduler.Job{
		NewPreMarketFilingsScan(runner, symbols),
		NewMorningScan(runner, symbols),
		NewMiddayFlowScan(runner, symbols),
		NewAfternoonScan(runner, symbols),
	}
}
