package weights

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the weight table from a YAML file.
// KnownFields(true) rejects typos and unused fields immediately.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault returns the built-in table when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Hash generates a SHA-256 hash of the table (canonical JSON).
// encoding/json sorts map keys, so the hash is reproducible.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Default returns the built-in weight table, used when no YAML path is
// configured. Kept in lockstep with config/weights.yaml.
func Default() *Config {
	return &Config{
		Meta: Meta{
			Version:  "v1.0.0",
			Timezone: "America/New_York",
		},
		Engines: Engines{
			GammaDrain: EngineWeights{
				Required: map[string]float64{
					"gamma_flip_negative": 0.30,
					"put_volume_spike":    0.25,
					"bearish_flow_skew":   0.20,
				},
				Optional: map[string]float64{
					"high_rvol_red_day":     0.05,
					"dark_pool_sell_blocks": 0.05,
				},
			},
			DistributionTrap: EngineWeights{
				Required: map[string]float64{
					"dark_pool_sell_blocks": 0.25,
					"distribution_days":     0.25,
					"vwap_rejection":        0.20,
				},
				Optional: map[string]float64{
					"high_rvol_red_day": 0.05,
					"bearish_flow_skew": 0.05,
				},
			},
			LiquidityVacuum: EngineWeights{
				Required: map[string]float64{
					"liquidity_thinning": 0.30,
					"bid_collapse":       0.30,
				},
				Optional: map[string]float64{
					"high_rvol_red_day": 0.05,
				},
			},
		},
		Boosts: Boosts{
			InsiderClusterCap:  0.10,
			CongressClusterCap: 0.10,
			TechnicalCap:       0.08,
			AggregateCap:       0.22,
		},
		Scoring: Scoring{
			ActionableThreshold: 0.68,
			StrikeTiers: []StrikeTier{
				{PriceBelow: 25, OTMPct: 0.10},
				{PriceBelow: 100, OTMPct: 0.07},
				{PriceBelow: 500, OTMPct: 0.05},
				{PriceBelow: 0, OTMPct: 0.04},
			},
			ExpiryTiers: []ExpiryTier{
				{ScoreAtLeast: 0.85, DTE: 21},
				{ScoreAtLeast: 0.75, DTE: 30},
				{ScoreAtLeast: 0, DTE: 45},
			},
		},
		Conviction: Conviction{
			DecayLambdaPerHour: 0.04,
			RetentionHours:     48,
			DiversityBonus:     0.15,
			DiversityCap:       0.30,
		},
	}
}
