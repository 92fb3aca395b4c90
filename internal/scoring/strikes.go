package scoring

import (
	"math"
	"time"

	"github.com/wonny/vigil/internal/weights"
)

// StrikeFor derives the protective strike: a fixed out-of-the-money
// percentage keyed by price tier, rounded down to the tier's listed strike
// increment so the strike never drifts closer to the money.
func StrikeFor(price float64, tiers []weights.StrikeTier) float64 {
	otm := tiers[len(tiers)-1].OTMPct
	for _, t := range tiers {
		if t.PriceBelow > 0 && price < t.PriceBelow {
			otm = t.OTMPct
			break
		}
	}

	raw := price * (1 - otm)
	inc := strikeIncrement(price)
	return math.Floor(raw/inc) * inc
}

// strikeIncrement approximates listed option strike spacing by price level.
func strikeIncrement(price float64) float64 {
	switch {
	case price < 25:
		return 0.5
	case price < 100:
		return 1
	case price < 500:
		return 5
	default:
		return 10
	}
}

// ExpiryFor buckets days-to-expiry by score tier: higher conviction takes a
// shorter-dated contract in the optimal-gamma window.
func ExpiryFor(cycle time.Time, score float64, tiers []weights.ExpiryTier) time.Time {
	dte := tiers[len(tiers)-1].DTE
	for _, t := range tiers {
		if score >= t.ScoreAtLeast {
			dte = t.DTE
			break
		}
	}
	return cycle.AddDate(0, 0, dte)
}
