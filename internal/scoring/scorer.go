// Package scoring combines classified engines, the cycle verdict and
// confirmation signals into a bounded actionability score, deriving a
// protective strike and expiry for actionable results.
package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/weights"
)

// Scorer applies the versioned weight table. Stateless per cycle; safe for
// concurrent use across symbols.
type Scorer struct {
	cfg *weights.Config
}

// New creates a scorer from a validated weight table.
func New(cfg *weights.Config) (*Scorer, error) {
	if err := weights.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid weight table: %w", err)
	}
	return &Scorer{cfg: cfg}, nil
}

// Threshold returns the actionability threshold in effect.
func (s *Scorer) Threshold() float64 {
	return s.cfg.Scoring.ActionableThreshold
}

// Score produces the per-symbol result for a cycle. The verdict is shared by
// reference across the cycle; price is the symbol's last trade, used only for
// strike derivation.
func (s *Scorer) Score(set *contracts.SignalSet, cls contracts.EngineClassification, verdict *contracts.RegimeVerdict, price float64) contracts.ScoredResult {
	r := contracts.ScoredResult{
		Symbol:         set.Symbol,
		Cycle:          set.Cycle,
		Engine:         cls,
		SizeMultiplier: verdict.SizeMultiplier,
	}

	r.BaseScore = s.baseScore(set, cls.Engine)

	// Boosts confirm, never create: a zero base stays zero.
	if r.BaseScore > 0 {
		r.Boosts = s.confirmationBoosts(set)
	}

	r.FinalScore = clamp01(r.BaseScore + boostSum(r.Boosts))
	r.PassedGates = verdict.Allowed && cls.Fired() && !cls.HardRejected()

	// Strict threshold: a tie resolves to no-trade.
	r.Actionable = r.PassedGates && r.FinalScore > s.cfg.Scoring.ActionableThreshold

	if r.Actionable && price > 0 {
		r.Strike = StrikeFor(price, s.cfg.Scoring.StrikeTiers)
		expiry := ExpiryFor(set.Cycle, r.FinalScore, s.cfg.Scoring.ExpiryTiers)
		r.Expiry = &expiry
	}

	r.Provenance = contracts.Provenance{
		AsOf:           set.Cycle.UTC(),
		Adjusted:       true, // bars are requested split-adjusted
		WeightsVersion: s.cfg.Meta.Version,
	}
	r.Provenance.ContentHash = contentHash(&r)

	return r
}

// baseScore sums the weight table entries for the selected engine's present
// required and optional signals.
func (s *Scorer) baseScore(set *contracts.SignalSet, engine contracts.Engine) float64 {
	var ew weights.EngineWeights
	switch engine {
	case contracts.EngineGammaDrain:
		ew = s.cfg.Engines.GammaDrain
	case contracts.EngineDistributionTrap:
		ew = s.cfg.Engines.DistributionTrap
	case contracts.EngineLiquidityVacuum:
		ew = s.cfg.Engines.LiquidityVacuum
	default:
		return 0
	}

	var base float64
	for sig, w := range ew.Required {
		if set.Has(contracts.SignalName(sig)) {
			base += w
		}
	}
	for sig, w := range ew.Optional {
		if set.Has(contracts.SignalName(sig)) {
			base += w
		}
	}
	return base
}

// confirmationBoosts applies individually-capped increments in a fixed
// order, then enforces the aggregate cap.
func (s *Scorer) confirmationBoosts(set *contracts.SignalSet) []contracts.Boost {
	var boosts []contracts.Boost

	if set.Has(contracts.SignalInsiderSellCluster) {
		boosts = append(boosts, contracts.Boost{Name: "insider_cluster", Value: s.cfg.Boosts.InsiderClusterCap})
	}
	if set.Has(contracts.SignalCongressSellCluster) {
		boosts = append(boosts, contracts.Boost{Name: "congress_cluster", Value: s.cfg.Boosts.CongressClusterCap})
	}
	if set.Has(contracts.SignalTechnicalWeakness) {
		boosts = append(boosts, contracts.Boost{Name: "technical_weakness", Value: s.cfg.Boosts.TechnicalCap})
	}

	// Aggregate cap applies regardless of boost count; the overflow is
	// trimmed from the last boosts applied.
	remaining := s.cfg.Boosts.AggregateCap
	for i := range boosts {
		if boosts[i].Value > remaining {
			boosts[i].Value = remaining
		}
		remaining -= boosts[i].Value
	}
	return boosts
}

func boostSum(boosts []contracts.Boost) float64 {
	var sum float64
	for _, b := range boosts {
		sum += b.Value
	}
	return sum
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// contentHash fingerprints the result payload for replay and audit. The hash
// field itself is zeroed before hashing.
func contentHash(r *contracts.ScoredResult) string {
	cp := *r
	cp.Provenance.ContentHash = ""

	data, err := json.Marshal(&cp)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
