package contracts

import "time"

// BlockReason is a machine-readable regime-gate veto code.
type BlockReason string

const (
	BlockIndexAboveVWAP    BlockReason = "index_above_vwap"
	BlockPositiveGamma     BlockReason = "positive_gamma_exposure"
	BlockVIXCollapsing     BlockReason = "vix_collapsing"
	BlockPassiveInflow     BlockReason = "passive_inflow_window"
	BlockEarningsProximity BlockReason = "earnings_proximity"
	BlockBorrowStress      BlockReason = "borrow_stress_transition"
	BlockMissingData       BlockReason = "missing_market_data"
)

// RegimeVerdict is the cycle-wide gate decision. Produced once per cycle,
// immutable, and shared by reference across every symbol scored that cycle.
type RegimeVerdict struct {
	Cycle          time.Time     `json:"cycle_timestamp"`
	Allowed        bool          `json:"allowed"`
	BlockReasons   []BlockReason `json:"block_reasons,omitempty"`
	SizeMultiplier float64       `json:"size_multiplier"` // in [0,1], scales down only
}

// Blocked reports whether the given reason contributed to the veto.
func (v *RegimeVerdict) Blocked(reason BlockReason) bool {
	for _, r := range v.BlockReasons {
		if r == reason {
			return true
		}
	}
	return false
}
