package weights

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "v1.0.0", cfg.Meta.Version)
	assert.Equal(t, 0.68, cfg.Scoring.ActionableThreshold)
	assert.Equal(t, 0.04, cfg.Conviction.DecayLambdaPerHour)
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := Hash(Default())
	require.NoError(t, err)
	h2, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHash_ChangesWithWeights(t *testing.T) {
	base, err := Hash(Default())
	require.NoError(t, err)

	changed := Default()
	changed.Engines.GammaDrain.Required["put_volume_spike"] = 0.26
	h, err := Hash(changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, h)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeTemp(t, `
meta:
  version: "v1"
  timezone: "America/New_York"
  not_a_field: true
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadOrDefault_EmptyPath(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default().Meta.Version, cfg.Meta.Version)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing version", func(c *Config) { c.Meta.Version = "" }},
		{"empty required set", func(c *Config) { c.Engines.GammaDrain.Required = nil }},
		{"negative weight", func(c *Config) { c.Engines.LiquidityVacuum.Required["bid_collapse"] = -0.1 }},
		{"aggregate cap too high", func(c *Config) { c.Boosts.AggregateCap = 0.5 }},
		{"boost above aggregate", func(c *Config) { c.Boosts.InsiderClusterCap = 0.23 }},
		{"threshold out of range", func(c *Config) { c.Scoring.ActionableThreshold = 1.0 }},
		{"no catch-all strike tier", func(c *Config) {
			c.Scoring.StrikeTiers = []StrikeTier{{PriceBelow: 100, OTMPct: 0.07}}
		}},
		{"zero lambda", func(c *Config) { c.Conviction.DecayLambdaPerHour = 0 }},
		{"retention zero", func(c *Config) { c.Conviction.RetentionHours = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
