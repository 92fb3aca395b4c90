package contracts

import "time"

// Boost is one applied confirmation increment, in application order.
type Boost struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Provenance is the audit metadata attached to every scored result.
// WeightsVersion must change whenever the weight table changes so historical
// results stay attributable to the rules that produced them.
type Provenance struct {
	AsOf           time.Time `json:"as_of"` // UTC
	Adjusted       bool      `json:"adjusted"`
	ContentHash    string    `json:"content_hash"`
	WeightsVersion string    `json:"weights_version"`
}

// ScoredResult is the per-symbol, per-cycle scoring output.
type ScoredResult struct {
	Symbol string    `json:"symbol"`
	Cycle  time.Time `json:"cycle_timestamp"`

	Engine EngineClassification `json:"engine"`

	BaseScore  float64 `json:"base_score"`
	Boosts     []Boost `json:"confirmation_boosts,omitempty"`
	FinalScore float64 `json:"final_score"` // clamped to [0,1]

	// PassedGates requires verdict.Allowed, a live engine and no hard reject.
	PassedGates bool `json:"passed_gates"`

	// Actionable requires PassedGates and FinalScore strictly above the
	// configured threshold. A tie resolves to no-trade.
	Actionable bool `json:"actionable"`

	// Strike and Expiry are derived only for actionable results.
	Strike float64    `json:"strike,omitempty"`
	Expiry *time.Time `json:"expiry_date,omitempty"`

	SizeMultiplier float64    `json:"size_multiplier"`
	Provenance     Provenance `json:"provenance"`
}

// SignalNames returns the supporting signal names for reporting.
func (r *ScoredResult) SignalNames() []SignalName {
	names := make([]SignalName, 0, len(r.Engine.SupportingSignals))
	for _, s := range r.Engine.SupportingSignals {
		names = append(names, s.Name)
	}
	return names
}
