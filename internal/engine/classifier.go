// Package engine maps normalized signal sets to one of the mutually
// constrained engines (or none) per symbol per cycle.
package engine

import (
	"sort"

	"github.com/wonny/vigil/internal/contracts"
)

// requiredSets defines each engine's all-required signal set.
// Evaluation order follows contracts.EnginePriority.
var requiredSets = map[contracts.Engine][]contracts.SignalName{
	contracts.EngineGammaDrain: {
		contracts.SignalGammaFlipNegative,
		contracts.SignalPutVolumeSpike,
		contracts.SignalBearishFlowSkew,
	},
	contracts.EngineDistributionTrap: {
		contracts.SignalDarkPoolSellBlocks,
		contracts.SignalDistributionDays,
		contracts.SignalVWAPRejection,
	},
	contracts.EngineLiquidityVacuum: {
		contracts.SignalLiquidityThinning,
		contracts.SignalBidCollapse,
	},
}

// hardRejects maps reject-trigger signals to their reason codes, checked
// before any engine evaluation.
var hardRejects = []struct {
	signal contracts.SignalName
	reason contracts.RejectReason
}{
	{contracts.SignalPutWallNearPrice, contracts.RejectPutWallNearPrice},
	{contracts.SignalIVSpikeIntraday, contracts.RejectIVSpikeIntraday},
	{contracts.SignalLateSessionTrigger, contracts.RejectLateSessionTrigger},
}

// RequiredSet returns the all-required signal names for an engine.
func RequiredSet(e contracts.Engine) []contracts.SignalName {
	return requiredSets[e]
}

// Classify evaluates one symbol's signal set for a cycle.
//
// Hard rejects short-circuit to none with the reason recorded. Otherwise
// every engine whose full required set fired is recorded, the highest
// priority one is selected, and the anti-trinity constraint forces a
// standalone liquidity_vacuum back to none.
func Classify(set *contracts.SignalSet) contracts.EngineClassification {
	c := contracts.EngineClassification{
		Symbol: set.Symbol,
		Cycle:  set.Cycle,
		Engine: contracts.EngineNone,
	}

	for _, hr := range hardRejects {
		if set.Has(hr.signal) {
			c.RejectReason = hr.reason
			return c
		}
	}

	for eng, required := range requiredSets {
		if set.HasAll(required...) {
			c.SatisfiedEngines = append(c.SatisfiedEngines, eng)
		}
	}
	if len(c.SatisfiedEngines) == 0 {
		return c
	}

	sort.Slice(c.SatisfiedEngines, func(i, j int) bool {
		return contracts.EnginePriority(c.SatisfiedEngines[i]) < contracts.EnginePriority(c.SatisfiedEngines[j])
	})

	// Anti-trinity: liquidity_vacuum never stands alone.
	if len(c.SatisfiedEngines) == 1 && c.SatisfiedEngines[0] == contracts.EngineLiquidityVacuum {
		c.ConstrainedStandalone = true
		c.RejectReason = contracts.RejectConstrainedAlone
		return c
	}

	c.Engine = c.SatisfiedEngines[0]
	c.SupportingSignals = supportingSignals(set, c.SatisfiedEngines)
	return c
}

// supportingSignals collects the signals behind every satisfied engine's
// required set, deduplicated, in deterministic order.
func supportingSignals(set *contracts.SignalSet, engines []contracts.Engine) []contracts.Signal {
	seen := make(map[contracts.SignalName]bool)
	var out []contracts.Signal
	for _, eng := range engines {
		for _, name := range requiredSets[eng] {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, set.Signals[name])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
