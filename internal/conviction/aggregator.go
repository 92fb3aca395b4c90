// Package conviction folds per-cycle scored results into a rolling,
// time-decayed cross-cycle conviction score per symbol.
package conviction

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/weights"
)

// Aggregator exclusively owns conviction history. Writes to one symbol are
// serialized; different symbols update in parallel. Pull-based: pruning
// happens lazily on recompute, never on a timer.
type Aggregator struct {
	cfg weights.Conviction

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu  sync.Mutex
	rec contracts.ConvictionRecord
}

// New creates an empty aggregator with the given decay parameters.
func New(cfg weights.Conviction) *Aggregator {
	return &Aggregator{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
}

// Record folds a qualifying scored result into the symbol's history and
// returns the recomputed record. Non-qualifying results (gates not passed)
// are ignored and return false.
func (a *Aggregator) Record(r contracts.ScoredResult, now time.Time) (contracts.ConvictionRecord, bool) {
	if !r.PassedGates {
		return contracts.ConvictionRecord{}, false
	}

	// Every satisfied engine counts toward diversity, not just the selected
	// one. A classification that lists none falls back to the selection.
	engines := append([]contracts.Engine(nil), r.Engine.SatisfiedEngines...)
	if len(engines) == 0 && r.Engine.Engine != contracts.EngineNone {
		engines = []contracts.Engine{r.Engine.Engine}
	}

	e := a.entry(r.Symbol)
	e.mu.Lock()
	e.rec.Appearances = append(e.rec.Appearances, contracts.Appearance{
		Cycle:   r.Cycle,
		Engines: engines,
		Weight:  r.FinalScore,
	})
	a.recompute(&e.rec, now)
	rec := e.rec
	e.mu.Unlock()

	// Re-register in case a concurrent prune removed the entry between
	// lookup and append.
	a.mu.Lock()
	a.entries[r.Symbol] = e
	a.mu.Unlock()

	return rec, true
}

// Seed restores persisted records after a restart. Symbols already tracked
// live are left alone; recompute prunes whatever aged out while the process
// was down.
func (a *Aggregator) Seed(records []contracts.ConvictionRecord, now time.Time) {
	for _, rec := range records {
		if rec.Symbol == "" || len(rec.Appearances) == 0 {
			continue
		}

		a.mu.Lock()
		if _, live := a.entries[rec.Symbol]; live {
			a.mu.Unlock()
			continue
		}
		e := &entry{rec: contracts.ConvictionRecord{
			Symbol:      rec.Symbol,
			Appearances: append([]contracts.Appearance(nil), rec.Appearances...),
		}}
		a.entries[rec.Symbol] = e
		a.mu.Unlock()

		e.mu.Lock()
		a.recompute(&e.rec, now)
		e.mu.Unlock()
	}
}

// Get recomputes and returns the symbol's current record. The second return
// is false when the symbol has no retained appearances; the record is
// removed as a side effect.
func (a *Aggregator) Get(symbol string, now time.Time) (contracts.ConvictionRecord, bool) {
	a.mu.RLock()
	e, ok := a.entries[symbol]
	a.mu.RUnlock()
	if !ok {
		return contracts.ConvictionRecord{}, false
	}

	e.mu.Lock()
	a.recompute(&e.rec, now)
	rec := e.rec
	empty := len(e.rec.Appearances) == 0
	e.mu.Unlock()

	if empty {
		a.remove(symbol)
		return contracts.ConvictionRecord{}, false
	}
	return rec, true
}

// Snapshot recomputes every record and returns the tracked set (level above
// untracked), ordered by conviction score descending. Fully pruned records
// are removed.
func (a *Aggregator) Snapshot(now time.Time) []contracts.ConvictionRecord {
	a.mu.RLock()
	symbols := make([]string, 0, len(a.entries))
	for sym := range a.entries {
		symbols = append(symbols, sym)
	}
	a.mu.RUnlock()

	var out []contracts.ConvictionRecord
	for _, sym := range symbols {
		rec, ok := a.Get(sym, now)
		if ok && rec.Level != contracts.LevelUntracked {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// recompute drops appearances outside the retention window, then rebuilds
// score, engines seen and level. Caller holds the entry lock.
func (a *Aggregator) recompute(rec *contracts.ConvictionRecord, now time.Time) {
	cutoff := now.Add(-time.Duration(a.cfg.RetentionHours) * time.Hour)

	retained := rec.Appearances[:0]
	for _, ap := range rec.Appearances {
		if ap.Cycle.After(cutoff) {
			retained = append(retained, ap)
		}
	}
	rec.Appearances = retained

	var score float64
	engines := make(map[contracts.Engine]bool)
	for _, ap := range rec.Appearances {
		hours := now.Sub(ap.Cycle).Hours()
		if hours < 0 {
			hours = 0
		}
		score += ap.Weight * math.Exp(-a.cfg.DecayLambdaPerHour*hours)
		for _, eng := range ap.Engines {
			if eng != contracts.EngineNone {
				engines[eng] = true
			}
		}
	}

	// Diversity bonus: each additional distinct engine beyond the first,
	// capped. Multi-engine confirmation outweighs repeated single-engine
	// hits.
	if len(engines) > 1 {
		bonus := float64(len(engines)-1) * a.cfg.DiversityBonus
		if bonus > a.cfg.DiversityCap {
			bonus = a.cfg.DiversityCap
		}
		score += bonus
	}

	rec.EnginesSeen = rec.EnginesSeen[:0]
	for eng := range engines {
		rec.EnginesSeen = append(rec.EnginesSeen, eng)
	}
	sort.Slice(rec.EnginesSeen, func(i, j int) bool {
		return contracts.EnginePriority(rec.EnginesSeen[i]) < contracts.EnginePriority(rec.EnginesSeen[j])
	})

	rec.Score = score
	rec.Level = contracts.LevelFor(score)
	rec.UpdatedAt = now
}

func (a *Aggregator) entry(symbol string) *entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[symbol]
	if !ok {
		e = &entry{rec: contracts.ConvictionRecord{Symbol: symbol}}
		a.entries[symbol] = e
	}
	return e
}

func (a *Aggregator) remove(symbol string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[symbol]
	if !ok {
		return
	}
	// A concurrent Record may have appended since the empty check.
	e.mu.Lock()
	empty := len(e.rec.Appearances) == 0
	e.mu.Unlock()
	if empty {
		delete(a.entries, symbol)
	}
}
