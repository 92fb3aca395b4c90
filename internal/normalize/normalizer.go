// Package normalize converts raw per-source payloads into the closed set of
// named signal flags. Pass/fail semantics are resolved here; nothing
// downstream re-interprets raw numerics.
package normalize

import (
	"time"

	"github.com/wonny/vigil/internal/contracts"
)

// Detection thresholds. Fixed, not configuration: these define what each
// signal name means, and changing them would silently redefine history.
const (
	rvolRedDayMin       = 2.0
	distributionDaysMin = 4
	vwapRejectionsMin   = 2
	liquidityDepthMax   = 0.5
	bidCollapseDepthMax = 0.3
	bidCollapseSpread   = 2.0
	putVolumeSpikeMin   = 3.0
	bearishSkewMax      = -0.25
	darkPoolBlocksMin   = 3
	putWallDistancePct  = 1.0
	ivSpikePctMin       = 15.0
	lateSessionMinutes  = 60
	insiderSellsMin     = 3
	insiderSellersMin   = 2
	congressSellsMin    = 2
	techWeaknessRvolMin = 1.5
)

// PriceSnapshot is the per-symbol price/volume view from the bar source.
type PriceSnapshot struct {
	Symbol           string
	Open             float64
	Close            float64
	VWAP             float64
	RVOL             float64 // volume vs 20-day average
	DistributionDays int     // high-volume down days in the lookback
	VWAPRejections   int     // failed intraday reclaim attempts
	BidDepthRatio    float64 // current bid depth vs 20-day average
	SpreadRatio      float64 // current spread vs 20-day average
}

// FlowSnapshot is the per-symbol options-flow and dark-pool view.
type FlowSnapshot struct {
	Symbol             string
	GammaExposure      float64 // dealer gamma exposure, dollars
	PutVolumeRatio     float64 // put volume vs its own average
	FlowSkew           float64 // signed premium skew; negative is bearish
	DarkPoolSellBlocks int
	HasPutWall         bool
	PutWallDistancePct float64 // abs distance of the largest put OI cluster from spot
	IVChangeIntraday   float64 // percent
}

// FilingsSnapshot is the per-symbol insider/congressional filings view.
type FilingsSnapshot struct {
	Symbol           string
	InsiderSells30D  int
	InsiderSellers   int // distinct filers
	CongressSells60D int
}

// Input bundles one symbol's raw payloads for a cycle. A nil snapshot means
// that source failed or was skipped; its signals are simply absent.
type Input struct {
	Symbol         string
	Cycle          time.Time
	MinutesToClose int
	Price          *PriceSnapshot
	Flow           *FlowSnapshot
	Filings        *FilingsSnapshot
}

// Normalize resolves raw payloads into a deduplicated signal set.
// Pure; performs no I/O.
func Normalize(in Input) *contracts.SignalSet {
	set := contracts.NewSignalSet(in.Symbol, in.Cycle)

	if in.Price != nil {
		normalizePrice(set, in.Price)
	} else {
		set.MissingSources = append(set.MissingSources, contracts.SourcePolygon)
	}

	if in.Flow != nil {
		normalizeFlow(set, in.Flow)
	} else {
		set.MissingSources = append(set.MissingSources, contracts.SourceUW)
	}

	if in.Filings != nil {
		normalizeFilings(set, in.Filings)
	} else {
		set.MissingSources = append(set.MissingSources, contracts.SourceQuiver)
	}

	// Cross-source corroboration needs both price and flow present.
	if in.Price != nil && in.Flow != nil {
		p, f := in.Price, in.Flow
		if p.Close < p.VWAP && p.RVOL >= techWeaknessRvolMin && f.FlowSkew <= 0 {
			set.Add(contracts.SignalTechnicalWeakness, contracts.SourcePolygon, p.RVOL)
		}
	}

	// Session-clock trigger, independent of any vendor.
	if set.Count() > 0 && in.MinutesToClose >= 0 && in.MinutesToClose <= lateSessionMinutes {
		set.Add(contracts.SignalLateSessionTrigger, contracts.SourceUW, float64(in.MinutesToClose))
	}

	return set
}

func normalizePrice(set *contracts.SignalSet, p *PriceSnapshot) {
	if p.RVOL >= rvolRedDayMin && p.Close < p.Open {
		set.Add(contracts.SignalHighRvolRedDay, contracts.SourcePolygon, p.RVOL)
	}
	if p.DistributionDays >= distributionDaysMin {
		set.Add(contracts.SignalDistributionDays, contracts.SourcePolygon, float64(p.DistributionDays))
	}
	if p.VWAPRejections >= vwapRejectionsMin && p.Close < p.VWAP {
		set.Add(contracts.SignalVWAPRejection, contracts.SourcePolygon, float64(p.VWAPRejections))
	}
	if p.BidDepthRatio > 0 && p.BidDepthRatio <= liquidityDepthMax {
		set.Add(contracts.SignalLiquidityThinning, contracts.SourcePolygon, p.BidDepthRatio)
	}
	if p.BidDepthRatio > 0 && p.BidDepthRatio <= bidCollapseDepthMax && p.SpreadRatio >= bidCollapseSpread {
		set.Add(contracts.SignalBidCollapse, contracts.SourcePolygon, p.SpreadRatio)
	}
}

func normalizeFlow(set *contracts.SignalSet, f *FlowSnapshot) {
	if f.GammaExposure < 0 {
		set.Add(contracts.SignalGammaFlipNegative, contracts.SourceUW, f.GammaExposure)
	}
	if f.PutVolumeRatio >= putVolumeSpikeMin {
		set.Add(contracts.SignalPutVolumeSpike, contracts.SourceUW, f.PutVolumeRatio)
	}
	if f.FlowSkew <= bearishSkewMax {
		set.Add(contracts.SignalBearishFlowSkew, contracts.SourceUW, f.FlowSkew)
	}
	if f.DarkPoolSellBlocks >= darkPoolBlocksMin {
		set.Add(contracts.SignalDarkPoolSellBlocks, contracts.SourceUW, float64(f.DarkPoolSellBlocks))
	}
	if f.HasPutWall && f.PutWallDistancePct <= putWallDistancePct {
		set.Add(contracts.SignalPutWallNearPrice, contracts.SourceUW, f.PutWallDistancePct)
	}
	if f.IVChangeIntraday >= ivSpikePctMin {
		set.Add(contracts.SignalIVSpikeIntraday, contracts.SourceUW, f.IVChangeIntraday)
	}
}

func normalizeFilings(set *contracts.SignalSet, fl *FilingsSnapshot) {
	if fl.InsiderSells30D >= insiderSellsMin && fl.InsiderSellers >= insiderSellersMin {
		set.Add(contracts.SignalInsiderSellCluster, contracts.SourceQuiver, float64(fl.InsiderSells30D))
	}
	if fl.CongressSells60D >= congressSellsMin {
		set.Add(contracts.SignalCongressSellCluster, contracts.SourceQuiver, float64(fl.CongressSells60D))
	}
}
