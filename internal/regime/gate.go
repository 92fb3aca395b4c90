// Package regime evaluates the cycle-wide market gate. The verdict is
// computed once per cycle and shared by reference so every symbol sees an
// identical gate.
package regime

import (
	"time"

	"github.com/wonny/vigil/internal/contracts"
)

const (
	// VIX change floor, percent. Collapsing volatility vetoes the cycle.
	vixChangeFloorPct = -5.0

	// Aggregate dealer gamma below zero but above this level is only
	// marginally negative; position size is halved.
	marginalGammaFloor = -500e6

	marginalSizeMultiplier = 0.5
)

// MarketContext is the broad-market input for one cycle. Assembled by the
// orchestrator from index quotes, aggregate gamma exposure, the volatility
// index and the calendar.
type MarketContext struct {
	Cycle time.Time

	SPYPrice float64
	SPYVWAP  float64
	QQQPrice float64
	QQQVWAP  float64

	// AggregateGamma is the dealer gamma exposure across the index complex,
	// in dollars. Negative means dealers are short gamma.
	AggregateGamma float64

	// VIXChangePct is the period-over-period volatility index change.
	VIXChangePct float64

	// PassiveInflowWindow marks the first or last few trading days of a
	// month, when passive calendar inflows distort flow signals.
	PassiveInflowWindow bool

	// IndexEarningsProximity marks a mega-cap earnings event inside the
	// scan horizon.
	IndexEarningsProximity bool

	// BorrowStress marks a hard-to-borrow transition in the broad market.
	BorrowStress bool

	// MissingData marks an incomplete context: an index quote, the gamma
	// reading or the volatility index could not be fetched. The gate vetoes
	// rather than guessing, with its own reason code.
	MissingData bool
}

// Evaluate produces the cycle verdict. Every violation is recorded; the
// verdict never carries a bare boolean without its reasons.
func Evaluate(mc MarketContext) *contracts.RegimeVerdict {
	v := &contracts.RegimeVerdict{
		Cycle:          mc.Cycle,
		SizeMultiplier: 1.0,
	}

	if mc.SPYPrice > mc.SPYVWAP || mc.QQQPrice > mc.QQQVWAP {
		v.BlockReasons = append(v.BlockReasons, contracts.BlockIndexAboveVWAP)
	}
	if mc.AggregateGamma > 0 {
		v.BlockReasons = append(v.BlockReasons, contracts.BlockPositiveGamma)
	}
	if mc.VIXChangePct < vixChangeFloorPct {
		v.BlockReasons = append(v.BlockReasons, contracts.BlockVIXCollapsing)
	}
	if mc.PassiveInflowWindow {
		v.BlockReasons = append(v.BlockReasons, contracts.BlockPassiveInflow)
	}
	if mc.IndexEarningsProximity {
		v.BlockReasons = append(v.BlockReasons, contracts.BlockEarningsProximity)
	}
	if mc.BorrowStress {
		v.BlockReasons = append(v.BlockReasons, contracts.BlockBorrowStress)
	}
	if mc.MissingData {
		v.BlockReasons = append(v.BlockReasons, contracts.BlockMissingData)
	}

	v.Allowed = len(v.BlockReasons) == 0

	// Marginally negative gamma passes the gate at reduced size.
	if v.Allowed && mc.AggregateGamma > marginalGammaFloor {
		v.SizeMultiplier = marginalSizeMultiplier
	}

	return v
}
