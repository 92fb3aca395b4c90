package contracts

import "time"

// Engine is one of the mutually-constrained classifications representing a
// distinct market-microstructure thesis.
type Engine string

const (
	EngineGammaDrain       Engine = "gamma_drain"       // dealer-positioning / flow driven (primary)
	EngineDistributionTrap Engine = "distribution_trap" // institutional distribution (confirmation)
	EngineLiquidityVacuum  Engine = "liquidity_vacuum"  // liquidity collapse (constrained)
	EngineNone             Engine = "none"
)

// EnginePriority returns the selection rank for an engine; lower wins.
// gamma_drain > distribution_trap > liquidity_vacuum.
func EnginePriority(e Engine) int {
	switch e {
	case EngineGammaDrain:
		return 0
	case EngineDistributionTrap:
		return 1
	case EngineLiquidityVacuum:
		return 2
	default:
		return 3
	}
}

// RejectReason is a machine-readable hard-reject code.
type RejectReason string

const (
	RejectNone               RejectReason = ""
	RejectPutWallNearPrice   RejectReason = "put_wall_near_price"
	RejectIVSpikeIntraday    RejectReason = "iv_spike_intraday"
	RejectLateSessionTrigger RejectReason = "late_session_trigger"
	RejectConstrainedAlone   RejectReason = "constrained_engine_standalone"
)

// EngineClassification is the per-symbol, per-cycle classifier output.
type EngineClassification struct {
	Symbol string    `json:"symbol"`
	Cycle  time.Time `json:"cycle_timestamp"`

	// Engine is the single highest-priority satisfied engine, or none.
	Engine Engine `json:"engine"`

	// SatisfiedEngines records every engine whose full required set fired,
	// preserved for confirmation boosts and diversity bonuses downstream.
	SatisfiedEngines []Engine `json:"satisfied_engines,omitempty"`

	// SupportingSignals are the signals that contributed to the satisfied
	// engines' required sets.
	SupportingSignals []Signal `json:"supporting_signals,omitempty"`

	// ConstrainedStandalone is set when liquidity_vacuum fired alone and
	// the classification was forced to none.
	ConstrainedStandalone bool `json:"is_constrained_standalone"`

	// RejectReason records why a hard reject forced engine=none.
	// Empty for an ordinary no-signal cycle.
	RejectReason RejectReason `json:"reject_reason,omitempty"`
}

// Fired reports whether the classification selected a live engine.
func (c *EngineClassification) Fired() bool {
	return c.Engine != EngineNone
}

// HardRejected reports whether a hard-reject predicate forced none.
func (c *EngineClassification) HardRejected() bool {
	return c.RejectReason != RejectNone && c.RejectReason != RejectConstrainedAlone
}

// MultiEngine reports whether more than one engine's required set fired.
func (c *EngineClassification) MultiEngine() bool {
	return len(c.SatisfiedEngines) > 1
}
