package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/scheduler"
	"github.com/wonny/vigil/pkg/config"
	"github.com/wonny/vigil/pkg/logger"
)

type recordingRunner struct {
	defs  []contracts.ScanJob
	plans []scheduler.CyclePlan
}

func (r *recordingRunner) RunCycle(_ context.Context, def contracts.ScanJob, plan scheduler.CyclePlan) (*contracts.CycleResult, error) {
	r.defs = append(r.defs, def)
	r.plans = append(r.plans, plan)
	return &contracts.CycleResult{}, nil
}

func TestCalendar(t *testing.T) {
	runner := &recordingRunner{}
	calendar := All(runner, []string{"NVDA", "AMD"})

	if len(calendar) != 4 {
		t.Fatalf("calendar has %d jobs, want 4", len(calendar))
	}

	names := map[string]bool{}
	for _, job := range calendar {
		if job.Schedule() == "" {
			t.Errorf("%s has an empty schedule", job.Name())
		}
		names[job.Name()] = true
	}
	for _, want := range []string{"premarket_filings_scan", "morning_scan", "midday_flow_scan", "afternoon_scan"} {
		if !names[want] {
			t.Errorf("calendar is missing %s", want)
		}
	}
}

func TestJobRunPassesDefinitionAndPlan(t *testing.T) {
	runner := &recordingRunner{}
	job := NewMorningScan(runner, []string{"NVDA"})

	plan := scheduler.CyclePlan{Sources: []contracts.Source{contracts.SourcePolygon}}
	if err := job.Run(context.Background(), plan); err != nil {
		t.Fatal(err)
	}

	if len(runner.defs) != 1 {
		t.Fatalf("runner called %d times, want 1", len(runner.defs))
	}
	if runner.defs[0].Type != contracts.JobFullScan {
		t.Errorf("definition type = %s, want full_scan", runner.defs[0].Type)
	}
	if len(runner.plans[0].Sources) != 1 {
		t.Error("plan must be forwarded unchanged")
	}
}

func TestFilingsScanRequiresFullBudget(t *testing.T) {
	job := NewPreMarketFilingsScan(&recordingRunner{}, []string{"NVDA"})

	def := job.Definition()
	if def.AllowDegraded {
		t.Error("filings scan must not run degraded")
	}
	if def.CallsPerSymbol[contracts.SourceQuiver] != 2 {
		t.Errorf("quiver calls per symbol = %d, want 2 (insider + congress)", def.CallsPerSymbol[contracts.SourceQuiver])
	}
}

// Admission budgets must match what one symbol snapshot actually costs in
// vendor requests, or the ledger drifts from reality.
func TestCallBudgetsMatchClientFanout(t *testing.T) {
	fanout := map[contracts.Source]int{
		contracts.SourcePolygon: 3,
		contracts.SourceUW:      4,
		contracts.SourceQuiver:  2,
	}

	for _, job := range All(&recordingRunner{}, []string{"NVDA"}) {
		def := job.Definition()
		for src, want := range fanout {
			got, ok := def.CallsPerSymbol[src]
			if !ok {
				continue
			}
			if got != want {
				t.Errorf("%s budgets %d calls per symbol for %s, want %d", job.Name(), got, src, want)
			}
		}
		if _, ok := def.CallsPerSymbol[contracts.SourceEarnings]; ok {
			t.Errorf("%s costs earnings per symbol; the calendar is per cycle", job.Name())
		}
	}
}

type recordingPruner struct {
	cutoffs []time.Time
}

func (p *recordingPruner) PruneHistory(_ context.Context, before time.Time) error {
	p.cutoffs = append(p.cutoffs, before)
	return nil
}

func TestHistoryPruneCutoff(t *testing.T) {
	pruner := &recordingPruner{}
	log := logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
	job := NewHistoryPrune(pruner, log)

	if def := job.Definition(); len(def.RequiredSources) != 0 {
		t.Errorf("maintenance job must require no vendor sources, got %v", def.RequiredSources)
	}

	cycle := time.Date(2026, 3, 10, 16, 30, 0, 0, time.UTC)
	if err := job.Run(context.Background(), scheduler.CyclePlan{Cycle: cycle}); err != nil {
		t.Fatal(err)
	}

	if len(pruner.cutoffs) != 1 {
		t.Fatalf("pruner called %d times, want 1", len(pruner.cutoffs))
	}
	if want := cycle.Add(-resultRetention); !pruner.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %s, want %s", pruner.cutoffs[0], want)
	}
}
