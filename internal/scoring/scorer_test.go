package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/engine"
	"github.com/wonny/vigil/internal/weights"
)

var cycle = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func newScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := New(weights.Default())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func allowedVerdict() *contracts.RegimeVerdict {
	return &contracts.RegimeVerdict{Cycle: cycle, Allowed: true, SizeMultiplier: 1.0}
}

func blockedVerdict() *contracts.RegimeVerdict {
	return &contracts.RegimeVerdict{
		Cycle:          cycle,
		Allowed:        false,
		BlockReasons:   []contracts.BlockReason{contracts.BlockPositiveGamma},
		SizeMultiplier: 1.0,
	}
}

func gammaDrainSet(extra ...contracts.SignalName) *contracts.SignalSet {
	set := contracts.NewSignalSet("NVDA", cycle)
	for _, n := range []contracts.SignalName{
		contracts.SignalGammaFlipNegative,
		contracts.SignalPutVolumeSpike,
		contracts.SignalBearishFlowSkew,
	} {
		set.Add(n, contracts.SourceUW, 1)
	}
	for _, n := range extra {
		set.Add(n, contracts.SourceQuiver, 1)
	}
	return set
}

func TestScore_GammaDrainBase(t *testing.T) {
	s := newScorer(t)
	set := gammaDrainSet()

	r := s.Score(set, engine.Classify(set), allowedVerdict(), 120)

	if !r.PassedGates {
		t.Fatal("expected passed_gates")
	}
	// Required weights: 0.30 + 0.25 + 0.20.
	if math.Abs(r.BaseScore-0.75) > 1e-9 {
		t.Errorf("BaseScore = %v, want 0.75", r.BaseScore)
	}
	if r.FinalScore < 0 || r.FinalScore > 1 {
		t.Errorf("FinalScore = %v, out of [0,1]", r.FinalScore)
	}
}

func TestScore_NoEngineNoScore(t *testing.T) {
	s := newScorer(t)
	set := contracts.NewSignalSet("NVDA", cycle)
	set.Add(contracts.SignalInsiderSellCluster, contracts.SourceQuiver, 4)
	set.Add(contracts.SignalCongressSellCluster, contracts.SourceQuiver, 2)

	r := s.Score(set, engine.Classify(set), allowedVerdict(), 120)

	if r.BaseScore != 0 {
		t.Errorf("BaseScore = %v, want 0 with no engine", r.BaseScore)
	}
	if r.FinalScore != 0 {
		t.Errorf("FinalScore = %v, boosts must never create a signal from nothing", r.FinalScore)
	}
	if len(r.Boosts) != 0 {
		t.Errorf("Boosts = %v, want none on zero base", r.Boosts)
	}
}

func TestScore_AggregateBoostCap(t *testing.T) {
	s := newScorer(t)
	set := gammaDrainSet(
		contracts.SignalInsiderSellCluster,
		contracts.SignalCongressSellCluster,
		contracts.SignalTechnicalWeakness,
	)

	r := s.Score(set, engine.Classify(set), allowedVerdict(), 120)

	// Individual caps sum to 0.28; aggregate cap trims to 0.22.
	var total float64
	for _, b := range r.Boosts {
		total += b.Value
	}
	if math.Abs(total-0.22) > 1e-9 {
		t.Errorf("boost total = %v, want aggregate cap 0.22", total)
	}
	if math.Abs(r.FinalScore-0.97) > 1e-9 {
		t.Errorf("FinalScore = %v, want 0.75 + 0.22", r.FinalScore)
	}
}

func TestScore_ClampedToOne(t *testing.T) {
	cfg := weights.Default()
	cfg.Engines.GammaDrain.Required["gamma_flip_negative"] = 0.9
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	set := gammaDrainSet(contracts.SignalInsiderSellCluster)
	r := s.Score(set, engine.Classify(set), allowedVerdict(), 120)

	if r.FinalScore > 1 {
		t.Errorf("FinalScore = %v, must be clamped to 1", r.FinalScore)
	}
}

func TestScore_TieAtThresholdNotActionable(t *testing.T) {
	cfg := weights.Default()
	// Tune required weights so the base lands exactly on the threshold.
	cfg.Engines.GammaDrain.Required = map[string]float64{
		"gamma_flip_negative": 0.30,
		"put_volume_spike":    0.20,
		"bearish_flow_skew":   0.18,
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	set := gammaDrainSet()
	r := s.Score(set, engine.Classify(set), allowedVerdict(), 120)

	if math.Abs(r.FinalScore-0.68) > 1e-9 {
		t.Fatalf("FinalScore = %v, test needs exactly 0.68", r.FinalScore)
	}
	if !r.PassedGates {
		t.Error("gates should pass")
	}
	if r.Actionable {
		t.Error("score exactly at threshold must resolve to no-trade")
	}
	if r.Strike != 0 || r.Expiry != nil {
		t.Error("no strike/expiry for a non-actionable result")
	}
}

func TestScore_GateVetoAbsolute(t *testing.T) {
	s := newScorer(t)
	set := gammaDrainSet(
		contracts.SignalInsiderSellCluster,
		contracts.SignalCongressSellCluster,
	)

	r := s.Score(set, engine.Classify(set), blockedVerdict(), 120)

	if r.PassedGates {
		t.Error("passed_gates must be false under a regime veto")
	}
	if r.Actionable {
		t.Error("no result is actionable under a regime veto")
	}
}

func TestScore_StrikeAndExpiryDerivation(t *testing.T) {
	s := newScorer(t)
	set := gammaDrainSet(
		contracts.SignalInsiderSellCluster,
		contracts.SignalCongressSellCluster,
		contracts.SignalTechnicalWeakness,
	)

	price := 120.0
	r := s.Score(set, engine.Classify(set), allowedVerdict(), price)

	if !r.Actionable {
		t.Fatalf("expected actionable, FinalScore = %v", r.FinalScore)
	}

	// Price tier [100,500): 5% OTM, 5-point increments.
	target := price * 0.95
	if r.Strike > target || r.Strike < target-5 {
		t.Errorf("Strike = %v, want within (%.2f, %.2f]", r.Strike, target-5, target)
	}

	// FinalScore 0.97 >= 0.85 takes the 21 DTE bucket.
	if r.Expiry == nil {
		t.Fatal("expected expiry for actionable result")
	}
	if got := r.Expiry.Sub(cycle).Hours() / 24; got != 21 {
		t.Errorf("DTE = %v, want 21", got)
	}
}

func TestStrikeFor_PriceTiers(t *testing.T) {
	tiers := weights.Default().Scoring.StrikeTiers

	tests := []struct {
		price  float64
		otmPct float64
		inc    float64
	}{
		{20, 0.10, 0.5},
		{80, 0.07, 1},
		{300, 0.05, 5},
		{800, 0.04, 10},
	}

	for _, tt := range tests {
		strike := StrikeFor(tt.price, tiers)
		target := tt.price * (1 - tt.otmPct)
		if strike > target || strike < target-tt.inc {
			t.Errorf("StrikeFor(%v) = %v, want within (%.2f, %.2f]", tt.price, strike, target-tt.inc, target)
		}
	}
}

func TestExpiryFor_ScoreTiers(t *testing.T) {
	tiers := weights.Default().Scoring.ExpiryTiers

	tests := []struct {
		score float64
		dte   int
	}{
		{0.90, 21},
		{0.85, 21},
		{0.80, 30},
		{0.75, 30},
		{0.70, 45},
	}

	for _, tt := range tests {
		exp := ExpiryFor(cycle, tt.score, tiers)
		if got := int(exp.Sub(cycle).Hours() / 24); got != tt.dte {
			t.Errorf("ExpiryFor(score=%v) DTE = %d, want %d", tt.score, got, tt.dte)
		}
	}
}

func TestScore_ProvenanceHash(t *testing.T) {
	s := newScorer(t)
	set := gammaDrainSet()

	r1 := s.Score(set, engine.Classify(set), allowedVerdict(), 120)
	r2 := s.Score(set, engine.Classify(set), allowedVerdict(), 120)

	if r1.Provenance.ContentHash == "" {
		t.Fatal("expected a content hash")
	}
	if r1.Provenance.ContentHash != r2.Provenance.ContentHash {
		t.Error("identical inputs must hash identically")
	}
	if r1.Provenance.WeightsVersion != weights.Default().Meta.Version {
		t.Errorf("WeightsVersion = %q, want the table version", r1.Provenance.WeightsVersion)
	}
}
