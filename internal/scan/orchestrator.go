// Package scan wires one cycle of the pipeline: gather → normalize →
// classify → gate → score → aggregate. The regime verdict is computed once
// per cycle; symbols are processed by a worker pool.
package scan

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/vigil/internal/budget"
	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/conviction"
	"github.com/wonny/vigil/internal/engine"
	"github.com/wonny/vigil/internal/external/uw"
	"github.com/wonny/vigil/internal/normalize"
	"github.com/wonny/vigil/internal/regime"
	"github.com/wonny/vigil/internal/scheduler"
	"github.com/wonny/vigil/internal/scoring"
	"github.com/wonny/vigil/pkg/logger"
	"github.com/wonny/vigil/pkg/redis"
)

// earningsHorizonDays is the scan horizon for the mega-cap earnings veto.
const earningsHorizonDays = 2

// PriceSource serves price/volume snapshots and index context.
type PriceSource interface {
	Snapshot(ctx context.Context, symbol string) (*normalize.PriceSnapshot, error)
	IndexStatus(ctx context.Context, symbol string) (price, vwap float64, err error)
	VIXChangePct(ctx context.Context) (float64, error)
}

// FlowSource serves options-flow snapshots and the broad-market state.
type FlowSource interface {
	Snapshot(ctx context.Context, symbol string) (*normalize.FlowSnapshot, error)
	MarketState(ctx context.Context) (*uw.MarketState, error)
}

// FilingsSource serves insider/congressional filing snapshots.
type FilingsSource interface {
	Snapshot(ctx context.Context, symbol string) (*normalize.FilingsSnapshot, error)
}

// EarningsSource serves the earnings-proximity check.
type EarningsSource interface {
	HasMegaCapEarnings(ctx context.Context, from time.Time, days int) (bool, error)
}

// ResultStore persists cycle output. Both methods are called once per cycle.
type ResultStore interface {
	SaveCycle(ctx context.Context, result *contracts.CycleResult) error
	SaveAlerts(ctx context.Context, records []contracts.ConvictionRecord) error
}

// AlertPublisher pushes alert-set updates to live consumers.
type AlertPublisher interface {
	PublishAlerts(records []contracts.ConvictionRecord)
}

// SnapshotCache carries cross-process scan state: the latest alert set and
// prefetched filings. Satisfied by *redis.Cache.
type SnapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Deps carries the orchestrator's collaborators. Store, Publisher and Cache
// are optional.
type Deps struct {
	Logger     *logger.Logger
	Scorer     *scoring.Scorer
	Conviction *conviction.Aggregator
	Budget     *budget.Manager
	Cooldown   *scheduler.CooldownTracker
	Price      PriceSource
	Flow       FlowSource
	Filings    FilingsSource
	Earnings   EarningsSource
	Store      ResultStore
	Publisher  AlertPublisher
	Cache      SnapshotCache
	Workers    int
	Location   *time.Location
}

// Orchestrator runs scan cycles.
type Orchestrator struct {
	deps Deps
}

// New creates an orchestrator. Workers defaults to 4, Location to UTC.
func New(deps Deps) *Orchestrator {
	if deps.Workers < 1 {
		deps.Workers = 4
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Orchestrator{deps: deps}
}

// RunCycle executes one scan cycle for a job definition under an admitted
// plan. Per-symbol failures degrade; only persistence errors propagate.
func (o *Orchestrator) RunCycle(ctx context.Context, def contracts.ScanJob, plan scheduler.CyclePlan) (*contracts.CycleResult, error) {
	log := o.deps.Logger.WithFields(map[string]interface{}{
		"job":   def.Type,
		"cycle": plan.Cycle,
	})
	log.Info("Cycle started")

	verdict := o.evaluateRegime(ctx, def, plan)
	log.WithFields(map[string]interface{}{
		"allowed":         verdict.Allowed,
		"block_reasons":   verdict.BlockReasons,
		"size_multiplier": verdict.SizeMultiplier,
	}).Info("Regime gate evaluated")

	results := o.scanSymbols(ctx, def, plan, verdict)

	cycleResult := &contracts.CycleResult{
		Cycle:           plan.Cycle,
		Verdict:         verdict,
		ResultsByEngine: groupByEngine(results),
		CompletedAt:     time.Now().UTC(),
	}

	var alerts []contracts.ConvictionRecord
	for _, r := range results {
		if rec, ok := o.deps.Conviction.Record(r, plan.Cycle); ok {
			alerts = append(alerts, rec)
		}
	}

	if o.deps.Store != nil {
		if err := o.deps.Store.SaveCycle(ctx, cycleResult); err != nil {
			return nil, err
		}
		if len(alerts) > 0 {
			if err := o.deps.Store.SaveAlerts(ctx, alerts); err != nil {
				return nil, err
			}
		}
	}
	if o.deps.Publisher != nil && len(alerts) > 0 {
		o.deps.Publisher.PublishAlerts(alerts)
	}
	if o.deps.Cache != nil && len(alerts) > 0 {
		// Mirror for restart warm-up and external readers; best effort.
		if err := o.deps.Cache.Set(ctx, redis.AlertSetKey(), alerts, redis.TTLDaily); err != nil {
			log.WithError(err).Warn("Alert cache mirror failed")
		}
	}

	log.WithFields(map[string]interface{}{
		"symbols": len(def.Symbols),
		"scored":  len(results),
		"alerts":  len(alerts),
	}).Info("Cycle completed")

	return cycleResult, nil
}

// evaluateRegime assembles the broad-market context and runs the gate once.
// Any failed fetch marks the context incomplete and the gate vetoes with a
// missing-data reason rather than guessing.
func (o *Orchestrator) evaluateRegime(ctx context.Context, def contracts.ScanJob, plan scheduler.CyclePlan) *contracts.RegimeVerdict {
	mc := regime.MarketContext{Cycle: plan.Cycle}
	log := o.deps.Logger.WithField("stage", "regime")

	if plan.HasSource(contracts.SourcePolygon) && o.consume(plan.Cycle, contracts.SourcePolygon, 3) {
		var err error
		if mc.SPYPrice, mc.SPYVWAP, err = o.deps.Price.IndexStatus(ctx, "SPY"); err != nil {
			log.WithError(err).Warn("SPY status unavailable")
			mc.MissingData = true
		}
		if mc.QQQPrice, mc.QQQVWAP, err = o.deps.Price.IndexStatus(ctx, "QQQ"); err != nil {
			log.WithError(err).Warn("QQQ status unavailable")
			mc.MissingData = true
		}
		if mc.VIXChangePct, err = o.deps.Price.VIXChangePct(ctx); err != nil {
			log.WithError(err).Warn("VIX unavailable")
			mc.MissingData = true
		}
	} else {
		mc.MissingData = true
	}

	// One market-state fetch is three uw requests: SPY greeks, QQQ greeks,
	// borrow data.
	if plan.HasSource(contracts.SourceUW) && o.consume(plan.Cycle, contracts.SourceUW, 3) {
		state, err := o.deps.Flow.MarketState(ctx)
		if err != nil {
			log.WithError(err).Warn("market gamma unavailable")
			mc.MissingData = true
		} else {
			mc.AggregateGamma = state.AggregateGamma
			mc.BorrowStress = state.BorrowStress
		}
	} else {
		mc.MissingData = true
	}

	mc.PassiveInflowWindow = passiveInflowWindow(plan.Cycle.In(o.deps.Location))

	if o.deps.Earnings != nil && plan.HasSource(contracts.SourceEarnings) && o.consume(plan.Cycle, contracts.SourceEarnings, 1) {
		near, err := o.deps.Earnings.HasMegaCapEarnings(ctx, plan.Cycle, earningsHorizonDays)
		if err != nil {
			// Calendar is auxiliary; its absence does not veto on its own.
			log.WithError(err).Warn("earnings calendar unavailable")
		} else {
			mc.IndexEarningsProximity = near
		}
	}

	return regime.Evaluate(mc)
}

// scanSymbols fans symbols out to the worker pool. Classification and
// scoring are pure per-symbol functions; the verdict is read-shared.
func (o *Orchestrator) scanSymbols(ctx context.Context, def contracts.ScanJob, plan scheduler.CyclePlan, verdict *contracts.RegimeVerdict) []contracts.ScoredResult {
	symbolCh := make(chan string)
	resultCh := make(chan contracts.ScoredResult)

	var wg sync.WaitGroup
	for i := 0; i < o.deps.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range symbolCh {
				resultCh <- o.scanOne(ctx, sym, def, plan, verdict)
			}
		}()
	}

	go func() {
		for _, sym := range def.Symbols {
			symbolCh <- sym
		}
		close(symbolCh)
		wg.Wait()
		close(resultCh)
	}()

	var results []contracts.ScoredResult
	for r := range resultCh {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].Symbol < results[j].Symbol
	})
	return results
}

// scanOne gathers one symbol's payloads under budget and cooldown guards,
// then runs the per-symbol pipeline.
func (o *Orchestrator) scanOne(ctx context.Context, symbol string, def contracts.ScanJob, plan scheduler.CyclePlan, verdict *contracts.RegimeVerdict) contracts.ScoredResult {
	in := normalize.Input{
		Symbol:         symbol,
		Cycle:          plan.Cycle,
		MinutesToClose: minutesToClose(plan.Cycle.In(o.deps.Location)),
	}

	if o.admit(ctx, symbol, contracts.SourcePolygon, def, plan) {
		snap, err := o.deps.Price.Snapshot(ctx, symbol)
		if err != nil {
			o.warnFetch(symbol, contracts.SourcePolygon, err)
		} else {
			in.Price = snap
			o.deps.Cooldown.Mark(ctx, symbol, contracts.SourcePolygon, plan.Cycle)
		}
	}

	if o.admit(ctx, symbol, contracts.SourceUW, def, plan) {
		snap, err := o.deps.Flow.Snapshot(ctx, symbol)
		if err != nil {
			o.warnFetch(symbol, contracts.SourceUW, err)
		} else {
			in.Flow = snap
			o.deps.Cooldown.Mark(ctx, symbol, contracts.SourceUW, plan.Cycle)
		}
	}

	if o.deps.Filings != nil {
		// The pre-market sweep leaves filings in the cache; a hit feeds the
		// pipeline without spending quiver budget.
		if snap, ok := o.cachedFilings(ctx, symbol); ok {
			in.Filings = snap
		} else if o.admit(ctx, symbol, contracts.SourceQuiver, def, plan) {
			snap, err := o.deps.Filings.Snapshot(ctx, symbol)
			if err != nil {
				o.warnFetch(symbol, contracts.SourceQuiver, err)
			} else {
				in.Filings = snap
				o.deps.Cooldown.Mark(ctx, symbol, contracts.SourceQuiver, plan.Cycle)
				o.cacheFilings(ctx, symbol, snap)
			}
		}
	}

	set := normalize.Normalize(in)
	cls := engine.Classify(set)

	var price float64
	if in.Price != nil {
		price = in.Price.Close
	}
	return o.deps.Scorer.Score(set, cls, verdict, price)
}

func (o *Orchestrator) cachedFilings(ctx context.Context, symbol string) (*normalize.FilingsSnapshot, bool) {
	if o.deps.Cache == nil {
		return nil, false
	}
	var snap normalize.FilingsSnapshot
	found, err := o.deps.Cache.Get(ctx, redis.FilingsKey(symbol), &snap)
	if err != nil || !found {
		return nil, false
	}
	return &snap, true
}

func (o *Orchestrator) cacheFilings(ctx context.Context, symbol string, snap *normalize.FilingsSnapshot) {
	if o.deps.Cache == nil {
		return
	}
	if err := o.deps.Cache.Set(ctx, redis.FilingsKey(symbol), snap, redis.TTLSession); err != nil {
		o.deps.Logger.WithError(err).WithField("symbol", symbol).Warn("Filings cache write failed")
	}
}

// admit gates one symbol/source fetch: the source must be in the plan, the
// pair outside cooldown, and the calls consumable. Consumption happens here,
// per call, so a partial run leaves an accurate usage record.
func (o *Orchestrator) admit(ctx context.Context, symbol string, source contracts.Source, def contracts.ScanJob, plan scheduler.CyclePlan) bool {
	if !plan.HasSource(source) {
		return false
	}
	if !o.deps.Cooldown.Allow(ctx, symbol, source, plan.Cycle) {
		return false
	}

	calls := def.CallsPerSymbol[source]
	if calls == 0 {
		calls = 1
	}
	return o.consume(plan.Cycle, source, calls)
}

// consume records n calls transactionally. A mid-sequence exhaustion leaves
// the already-consumed calls counted and reports failure.
func (o *Orchestrator) consume(at time.Time, source contracts.Source, n int) bool {
	for i := 0; i < n; i++ {
		if err := o.deps.Budget.Consume(at, source); err != nil {
			o.deps.Logger.WithFields(map[string]interface{}{
				"source":   source,
				"consumed": i,
				"wanted":   n,
			}).Warn("Budget exhausted mid-sequence")
			return false
		}
	}
	return true
}

func (o *Orchestrator) warnFetch(symbol string, source contracts.Source, err error) {
	o.deps.Logger.WithError(err).WithFields(map[string]interface{}{
		"symbol": symbol,
		"source": source,
	}).Warn("Source fetch failed, signals absent this cycle")
}

func groupByEngine(results []contracts.ScoredResult) map[contracts.Engine][]contracts.ScoredResult {
	grouped := make(map[contracts.Engine][]contracts.ScoredResult)
	for _, r := range results {
		if r.Engine.Engine == contracts.EngineNone {
			continue
		}
		grouped[r.Engine.Engine] = append(grouped[r.Engine.Engine], r)
	}
	return grouped
}

// minutesToClose returns minutes until the 16:00 close, or -1 outside
// regular hours.
func minutesToClose(t time.Time) int {
	mins := t.Hour()*60 + t.Minute()
	sessionOpen, sessionClose := 9*60+30, 16*60
	if mins < sessionOpen || mins >= sessionClose {
		return -1
	}
	return sessionClose - mins
}

// passiveInflowWindow marks the first and last three calendar days of the
// month, when passive rebalancing inflows distort flow signals.
func passiveInflowWindow(t time.Time) bool {
	lastDay := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	return t.Day() <= 3 || t.Day() > lastDay-3
}
