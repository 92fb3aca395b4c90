package weights

import "fmt"

// Validate checks structural soundness of a weight table.
func Validate(cfg *Config) error {
	if cfg.Meta.Version == "" {
		return fmt.Errorf("meta.version is required")
	}

	for name, ew := range map[string]EngineWeights{
		"gamma_drain":       cfg.Engines.GammaDrain,
		"distribution_trap": cfg.Engines.DistributionTrap,
		"liquidity_vacuum":  cfg.Engines.LiquidityVacuum,
	} {
		if len(ew.Required) == 0 {
			return fmt.Errorf("engines.%s: required set must not be empty", name)
		}
		for sig, w := range ew.Required {
			if w <= 0 || w > 1 {
				return fmt.Errorf("engines.%s.required.%s: weight %v out of (0,1]", name, sig, w)
			}
		}
		for sig, w := range ew.Optional {
			if w <= 0 || w > 1 {
				return fmt.Errorf("engines.%s.optional.%s: weight %v out of (0,1]", name, sig, w)
			}
		}
	}

	b := cfg.Boosts
	for name, limit := range map[string]float64{
		"insider_cluster_cap":  b.InsiderClusterCap,
		"congress_cluster_cap": b.CongressClusterCap,
		"technical_cap":        b.TechnicalCap,
	} {
		if limit < 0 || limit > b.AggregateCap {
			return fmt.Errorf("boosts.%s: %v out of [0, aggregate_cap]", name, limit)
		}
	}
	if b.AggregateCap < 0.20 || b.AggregateCap > 0.25 {
		return fmt.Errorf("boosts.aggregate_cap: %v out of [0.20, 0.25]", b.AggregateCap)
	}

	if t := cfg.Scoring.ActionableThreshold; t <= 0 || t >= 1 {
		return fmt.Errorf("scoring.actionable_threshold: %v out of (0,1)", t)
	}
	if len(cfg.Scoring.StrikeTiers) == 0 {
		return fmt.Errorf("scoring.strike_tiers must not be empty")
	}
	if last := cfg.Scoring.StrikeTiers[len(cfg.Scoring.StrikeTiers)-1]; last.PriceBelow != 0 {
		return fmt.Errorf("scoring.strike_tiers: last tier must be the catch-all (price_below: 0)")
	}
	if len(cfg.Scoring.ExpiryTiers) == 0 {
		return fmt.Errorf("scoring.expiry_tiers must not be empty")
	}
	if last := cfg.Scoring.ExpiryTiers[len(cfg.Scoring.ExpiryTiers)-1]; last.ScoreAtLeast != 0 {
		return fmt.Errorf("scoring.expiry_tiers: last tier must be the catch-all (score_at_least: 0)")
	}

	c := cfg.Conviction
	if c.DecayLambdaPerHour <= 0 {
		return fmt.Errorf("conviction.decay_lambda_per_hour must be positive")
	}
	if c.RetentionHours <= 0 {
		return fmt.Errorf("conviction.retention_hours must be positive")
	}
	if c.DiversityBonus < 0 || c.DiversityCap < c.DiversityBonus {
		return fmt.Errorf("conviction diversity bonus/cap inconsistent")
	}

	return nil
}
