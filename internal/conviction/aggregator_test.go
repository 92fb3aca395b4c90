package conviction

import (
	"math"
	"testing"
	"time"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/weights"
)

var now = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func newAggregator() *Aggregator {
	return New(weights.Default().Conviction)
}

func qualifying(symbol string, eng contracts.Engine, score float64, cycle time.Time) contracts.ScoredResult {
	return contracts.ScoredResult{
		Symbol:      symbol,
		Cycle:       cycle,
		Engine:      contracts.EngineClassification{Symbol: symbol, Cycle: cycle, Engine: eng},
		FinalScore:  score,
		PassedGates: true,
	}
}

func TestRecord_IgnoresNonQualifying(t *testing.T) {
	a := newAggregator()
	r := qualifying("NVDA", contracts.EngineGammaDrain, 0.8, now)
	r.PassedGates = false

	if _, ok := a.Record(r, now); ok {
		t.Error("gated-out result must not enter conviction history")
	}
	if _, ok := a.Get("NVDA", now); ok {
		t.Error("no record should exist")
	}
}

func TestRecord_DecayExact(t *testing.T) {
	a := newAggregator()

	// One appearance 10 hours ago with weight 0.8.
	cycle := now.Add(-10 * time.Hour)
	rec, ok := a.Record(qualifying("NVDA", contracts.EngineGammaDrain, 0.8, cycle), now)
	if !ok {
		t.Fatal("expected qualifying record")
	}

	want := 0.8 * math.Exp(-0.04*10)
	if math.Abs(rec.Score-want) > 1e-12 {
		t.Errorf("Score = %v, want exactly w*exp(-0.04h) = %v", rec.Score, want)
	}
}

func TestRecord_HalfLife(t *testing.T) {
	a := newAggregator()
	halfLife := math.Ln2 / 0.04 // about 17.3 hours

	rec1, _ := a.Record(qualifying("A", contracts.EngineGammaDrain, 1.0, now.Add(-1*time.Hour)), now)
	a2 := newAggregator()
	rec2, _ := a2.Record(qualifying("A", contracts.EngineGammaDrain, 1.0,
		now.Add(-time.Duration(float64(time.Hour)*(1+halfLife)))), now)

	ratio := rec2.Score / rec1.Score
	if math.Abs(ratio-0.5) > 1e-6 {
		t.Errorf("contribution ratio across one half-life = %v, want 0.5", ratio)
	}
}

func TestRecord_MultiEngineBeatsSingleEngine(t *testing.T) {
	single := newAggregator()
	single.Record(qualifying("X", contracts.EngineGammaDrain, 0.7, now.Add(-5*time.Hour)), now)
	srec, _ := single.Record(qualifying("X", contracts.EngineGammaDrain, 0.7, now.Add(-1*time.Hour)), now)

	multi := newAggregator()
	multi.Record(qualifying("X", contracts.EngineGammaDrain, 0.7, now.Add(-5*time.Hour)), now)
	mrec, _ := multi.Record(qualifying("X", contracts.EngineDistributionTrap, 0.7, now.Add(-1*time.Hour)), now)

	if mrec.Score <= srec.Score {
		t.Errorf("multi-engine score %v must strictly exceed single-engine %v", mrec.Score, srec.Score)
	}
	if math.Abs((mrec.Score-srec.Score)-0.15) > 1e-9 {
		t.Errorf("diversity delta = %v, want one bonus increment 0.15", mrec.Score-srec.Score)
	}
}

func TestRecord_SatisfiedEnginesCountTowardDiversity(t *testing.T) {
	a := newAggregator()

	// One cycle where two required sets fired; gamma_drain was selected.
	r := qualifying("X", contracts.EngineGammaDrain, 0.6, now.Add(-1*time.Hour))
	r.Engine.SatisfiedEngines = []contracts.Engine{contracts.EngineGammaDrain, contracts.EngineDistributionTrap}

	rec, ok := a.Record(r, now)
	if !ok {
		t.Fatal("expected qualifying record")
	}

	if len(rec.EnginesSeen) != 2 {
		t.Fatalf("EnginesSeen = %v, want both satisfied engines", rec.EnginesSeen)
	}
	want := 0.6*math.Exp(-0.04*1) + 0.15
	if math.Abs(rec.Score-want) > 1e-12 {
		t.Errorf("Score = %v, want decayed weight plus one diversity increment %v", rec.Score, want)
	}
}

func TestSeed_RestoresDecayedHistory(t *testing.T) {
	live := newAggregator()
	cycle := now.Add(-10 * time.Hour)
	live.Record(qualifying("NVDA", contracts.EngineGammaDrain, 0.8, cycle), now)
	saved := live.Snapshot(now)

	restarted := newAggregator()
	restarted.Seed(saved, now)

	rec, ok := restarted.Get("NVDA", now)
	if !ok {
		t.Fatal("seeded symbol must be tracked")
	}
	want := 0.8 * math.Exp(-0.04*10)
	if math.Abs(rec.Score-want) > 1e-12 {
		t.Errorf("Score = %v, want %v carried across the restart", rec.Score, want)
	}
}

func TestSeed_PrunesAndKeepsLiveEntries(t *testing.T) {
	a := newAggregator()
	a.Record(qualifying("LIVE", contracts.EngineGammaDrain, 0.9, now.Add(-1*time.Hour)), now)

	a.Seed([]contracts.ConvictionRecord{
		{Symbol: "LIVE", Appearances: []contracts.Appearance{
			{Cycle: now.Add(-2 * time.Hour), Engines: []contracts.Engine{contracts.EngineDistributionTrap}, Weight: 0.2},
		}},
		{Symbol: "OLD", Appearances: []contracts.Appearance{
			{Cycle: now.Add(-60 * time.Hour), Engines: []contracts.Engine{contracts.EngineGammaDrain}, Weight: 0.9},
		}},
	}, now)

	rec, _ := a.Get("LIVE", now)
	if len(rec.Appearances) != 1 {
		t.Errorf("live entry has %d appearances, want the seed ignored for tracked symbols", len(rec.Appearances))
	}
	if _, ok := a.Get("OLD", now); ok {
		t.Error("fully aged-out seed must not survive the restore")
	}
}

func TestRecord_DiversityBonusCapped(t *testing.T) {
	a := newAggregator()
	a.Record(qualifying("X", contracts.EngineGammaDrain, 0.1, now.Add(-3*time.Hour)), now)
	a.Record(qualifying("X", contracts.EngineDistributionTrap, 0.1, now.Add(-2*time.Hour)), now)
	rec, _ := a.Record(qualifying("X", contracts.EngineLiquidityVacuum, 0.1, now.Add(-1*time.Hour)), now)

	if len(rec.EnginesSeen) != 3 {
		t.Fatalf("EnginesSeen = %v, want all three", rec.EnginesSeen)
	}
	// Two additional engines at 0.15 each stays under the 0.30 cap; a
	// fourth engine does not exist, so the cap binds exactly here.
	var base float64
	for _, ap := range rec.Appearances {
		base += ap.Weight * math.Exp(-0.04*now.Sub(ap.Cycle).Hours())
	}
	if math.Abs(rec.Score-(base+0.30)) > 1e-9 {
		t.Errorf("Score = %v, want base %v plus capped bonus 0.30", rec.Score, base)
	}
}

func TestGet_PrunesExpiredAppearances(t *testing.T) {
	a := newAggregator()
	a.Record(qualifying("X", contracts.EngineGammaDrain, 0.9, now.Add(-50*time.Hour)), now)
	rec, ok := a.Record(qualifying("X", contracts.EngineDistributionTrap, 0.6, now.Add(-1*time.Hour)), now)
	if !ok {
		t.Fatal("expected record")
	}

	if len(rec.Appearances) != 1 {
		t.Fatalf("Appearances = %d, want the 50h-old one pruned", len(rec.Appearances))
	}
	// Only one engine remains, so no diversity bonus either.
	want := 0.6 * math.Exp(-0.04*1)
	if math.Abs(rec.Score-want) > 1e-12 {
		t.Errorf("Score = %v, want %v from the retained appearance only", rec.Score, want)
	}
}

func TestGet_RemovesFullyPrunedRecord(t *testing.T) {
	a := newAggregator()
	a.Record(qualifying("X", contracts.EngineGammaDrain, 0.9, now), now)

	later := now.Add(49 * time.Hour)
	if _, ok := a.Get("X", later); ok {
		t.Error("record whose last appearance aged out must be removed")
	}
	if _, ok := a.Get("X", later); ok {
		t.Error("record must stay gone")
	}
}

func TestSnapshot_OrderedAndTracked(t *testing.T) {
	a := newAggregator()
	a.Record(qualifying("LOW", contracts.EngineGammaDrain, 0.35, now.Add(-1*time.Hour)), now)
	a.Record(qualifying("HIGH", contracts.EngineGammaDrain, 0.9, now.Add(-1*time.Hour)), now)
	a.Record(qualifying("NOISE", contracts.EngineGammaDrain, 0.05, now.Add(-1*time.Hour)), now)

	snap := a.Snapshot(now)
	if len(snap) != 2 {
		t.Fatalf("Snapshot = %d records, want 2 (untracked excluded)", len(snap))
	}
	if snap[0].Symbol != "HIGH" || snap[1].Symbol != "LOW" {
		t.Errorf("Snapshot order = %s, %s; want HIGH, LOW", snap[0].Symbol, snap[1].Symbol)
	}
}

func TestRecord_ConcurrentSymbols(t *testing.T) {
	a := newAggregator()
	done := make(chan struct{})

	for _, sym := range []string{"A", "B", "C", "D"} {
		go func(sym string) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				a.Record(qualifying(sym, contracts.EngineGammaDrain, 0.5, now.Add(-time.Duration(i)*time.Minute)), now)
			}
		}(sym)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	for _, sym := range []string{"A", "B", "C", "D"} {
		rec, ok := a.Get(sym, now)
		if !ok || len(rec.Appearances) != 100 {
			t.Errorf("%s: appearances = %d, want 100", sym, len(rec.Appearances))
		}
	}
}
