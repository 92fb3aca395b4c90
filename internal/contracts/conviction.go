package contracts

import "time"

// ConvictionLevel is the early-warning alert tier.
type ConvictionLevel string

const (
	LevelAct       ConvictionLevel = "act"     // conviction >= 0.70
	LevelPrepare   ConvictionLevel = "prepare" // [0.50, 0.70)
	LevelWatch     ConvictionLevel = "watch"   // [0.30, 0.50)
	LevelUntracked ConvictionLevel = "untracked"
)

// Appearance is one retained qualifying cycle result for a symbol. Engines
// carries every engine whose required set fired that cycle, not just the
// selected one; diversity counts all of them.
type Appearance struct {
	Cycle   time.Time `json:"cycle_timestamp"`
	Engines []Engine  `json:"engines"`
	Weight  float64   `json:"weight"` // the appearance's final score
}

// ConvictionRecord is the rolling cross-cycle conviction state for a symbol.
// The aggregator exclusively owns and mutates records.
type ConvictionRecord struct {
	Symbol      string          `json:"symbol"`
	Appearances []Appearance    `json:"appearances"`
	EnginesSeen []Engine        `json:"engines_seen"`
	Score       float64         `json:"conviction_score"`
	Level       ConvictionLevel `json:"level"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// LevelFor maps a conviction score to its alert tier.
func LevelFor(score float64) ConvictionLevel {
	switch {
	case score >= 0.70:
		return LevelAct
	case score >= 0.50:
		return LevelPrepare
	case score >= 0.30:
		return LevelWatch
	default:
		return LevelUntracked
	}
}
