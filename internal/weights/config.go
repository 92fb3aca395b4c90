package weights

// Config is the versioned scoring-weight table. Any change to the table must
// bump meta.version so historical results stay attributable.
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Engines    Engines    `yaml:"engines" json:"engines"`
	Boosts     Boosts     `yaml:"boosts" json:"boosts"`
	Scoring    Scoring    `yaml:"scoring" json:"scoring"`
	Conviction Conviction `yaml:"conviction" json:"conviction"`
}

// Meta identifies the table revision
type Meta struct {
	Version  string `yaml:"version" json:"version"`
	Timezone string `yaml:"timezone" json:"timezone"`
}

// Engines holds per-engine signal weights
type Engines struct {
	GammaDrain       EngineWeights `yaml:"gamma_drain" json:"gamma_drain"`
	DistributionTrap EngineWeights `yaml:"distribution_trap" json:"distribution_trap"`
	LiquidityVacuum  EngineWeights `yaml:"liquidity_vacuum" json:"liquidity_vacuum"`
}

// EngineWeights maps signal names to score contributions. Required signals
// must all be present for the engine to fire; optional signals only add
// weight when present.
// Map keys are sorted by encoding/json, so the config hash stays reproducible.
type EngineWeights struct {
	Required map[string]float64 `yaml:"required" json:"required"`
	Optional map[string]float64 `yaml:"optional" json:"optional"`
}

// Boosts holds confirmation-boost caps. Boosts confirm, never create.
type Boosts struct {
	InsiderClusterCap  float64 `yaml:"insider_cluster_cap" json:"insider_cluster_cap"`
	CongressClusterCap float64 `yaml:"congress_cluster_cap" json:"congress_cluster_cap"`
	TechnicalCap       float64 `yaml:"technical_cap" json:"technical_cap"`
	AggregateCap       float64 `yaml:"aggregate_cap" json:"aggregate_cap"`
}

// Scoring holds the actionability threshold and strike/expiry derivation
type Scoring struct {
	// ActionableThreshold is strict: a final score exactly at the threshold
	// is not actionable.
	ActionableThreshold float64      `yaml:"actionable_threshold" json:"actionable_threshold"`
	StrikeTiers         []StrikeTier `yaml:"strike_tiers" json:"strike_tiers"`
	ExpiryTiers         []ExpiryTier `yaml:"expiry_tiers" json:"expiry_tiers"`
}

// StrikeTier keys an out-of-the-money percentage to a price ceiling
type StrikeTier struct {
	PriceBelow float64 `yaml:"price_below" json:"price_below"` // 0 means no ceiling
	OTMPct     float64 `yaml:"otm_pct" json:"otm_pct"`
}

// ExpiryTier keys days-to-expiry to a minimum score
type ExpiryTier struct {
	ScoreAtLeast float64 `yaml:"score_at_least" json:"score_at_least"`
	DTE          int     `yaml:"dte" json:"dte"`
}

// Conviction holds cross-cycle aggregation parameters
type Conviction struct {
	DecayLambdaPerHour float64 `yaml:"decay_lambda_per_hour" json:"decay_lambda_per_hour"`
	RetentionHours     int     `yaml:"retention_hours" json:"retention_hours"`
	DiversityBonus     float64 `yaml:"diversity_bonus" json:"diversity_bonus"`
	DiversityCap       float64 `yaml:"diversity_cap" json:"diversity_cap"`
}
