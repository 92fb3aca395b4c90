package contracts

import (
	"sort"
	"time"
)

// Source identifies an external data vendor.
type Source string

const (
	SourcePolygon  Source = "polygon"  // price/volume bars
	SourceUW       Source = "uw"       // options flow, dark pool, gamma exposure
	SourceQuiver   Source = "quiver"   // insider and congressional filings
	SourceEarnings Source = "earnings" // earnings calendar
)

// AllSources lists every known vendor, in budget-ledger order.
var AllSources = []Source{SourcePolygon, SourceUW, SourceQuiver, SourceEarnings}

// SignalName is the closed enumeration of normalized signal flags.
// Raw vendor payloads are decoded into these at the normalizer boundary;
// nothing downstream inspects raw source shapes.
type SignalName string

const (
	// Price/volume (polygon)
	SignalHighRvolRedDay    SignalName = "high_rvol_red_day"
	SignalDistributionDays  SignalName = "distribution_days"
	SignalVWAPRejection     SignalName = "vwap_rejection"
	SignalLiquidityThinning SignalName = "liquidity_thinning"
	SignalBidCollapse       SignalName = "bid_collapse"

	// Options flow / dark pool (uw)
	SignalGammaFlipNegative  SignalName = "gamma_flip_negative"
	SignalPutVolumeSpike     SignalName = "put_volume_spike"
	SignalBearishFlowSkew    SignalName = "bearish_flow_skew"
	SignalDarkPoolSellBlocks SignalName = "dark_pool_sell_blocks"

	// Hard-reject triggers (uw / clock)
	SignalPutWallNearPrice   SignalName = "put_wall_near_price"
	SignalIVSpikeIntraday    SignalName = "iv_spike_intraday"
	SignalLateSessionTrigger SignalName = "late_session_trigger"

	// Confirmation (quiver / cross-source)
	SignalInsiderSellCluster  SignalName = "insider_sell_cluster"
	SignalCongressSellCluster SignalName = "congress_sell_cluster"
	SignalTechnicalWeakness   SignalName = "technical_weakness"
)

// Signal is one normalized per-symbol flag for a scan cycle.
// Signals are produced fresh each cycle; never mutated, only superseded.
type Signal struct {
	Name      SignalName `json:"name"`
	Symbol    string     `json:"symbol"`
	Cycle     time.Time  `json:"cycle_timestamp"`
	Magnitude float64    `json:"magnitude,omitempty"`
	Source    Source     `json:"source"`
}

// SignalSet is the deduplicated signal flags for one symbol in one cycle.
type SignalSet struct {
	Symbol  string                `json:"symbol"`
	Cycle   time.Time             `json:"cycle_timestamp"`
	Signals map[SignalName]Signal `json:"signals"`

	// Sources that failed or were skipped this cycle. Their signals are
	// simply absent; downstream treats this as degraded, not an error.
	MissingSources []Source `json:"missing_sources,omitempty"`
}

// NewSignalSet creates an empty signal set for a symbol/cycle.
func NewSignalSet(symbol string, cycle time.Time) *SignalSet {
	return &SignalSet{
		Symbol:  symbol,
		Cycle:   cycle,
		Signals: make(map[SignalName]Signal),
	}
}

// Add records a signal, overwriting any earlier signal of the same name.
func (s *SignalSet) Add(name SignalName, source Source, magnitude float64) {
	s.Signals[name] = Signal{
		Name:      name,
		Symbol:    s.Symbol,
		Cycle:     s.Cycle,
		Magnitude: magnitude,
		Source:    source,
	}
}

// Has reports whether the named signal fired this cycle.
func (s *SignalSet) Has(name SignalName) bool {
	_, ok := s.Signals[name]
	return ok
}

// HasAll reports whether every named signal fired this cycle.
func (s *SignalSet) HasAll(names ...SignalName) bool {
	for _, n := range names {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Magnitude returns the magnitude of the named signal if present.
func (s *SignalSet) Magnitude(name SignalName) (float64, bool) {
	sig, ok := s.Signals[name]
	return sig.Magnitude, ok
}

// Names returns the active signal names in deterministic order.
func (s *SignalSet) Names() []SignalName {
	names := make([]SignalName, 0, len(s.Signals))
	for n := range s.Signals {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Count returns the number of active signals.
func (s *SignalSet) Count() int {
	return len(s.Signals)
}

// Degraded reports whether any required source was missing this cycle.
func (s *SignalSet) Degraded() bool {
	return len(s.MissingSources) > 0
}
