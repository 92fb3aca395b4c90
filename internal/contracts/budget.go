package contracts

import "time"

// WindowName is a named budget period within a trading day.
type WindowName string

const (
	WindowPreMarket   WindowName = "pre_market"
	WindowMarketHours WindowName = "market_hours"
	WindowAfterHours  WindowName = "after_hours"
)

// ApiBudgetWindow is the call-count state for one source in one named window.
// used <= limit is enforced at admission time: a call that would exceed the
// window is rejected before being issued.
type ApiBudgetWindow struct {
	Source      Source     `json:"source"`
	Window      WindowName `json:"window_name"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
	Limit       int        `json:"limit"`
	Used        int        `json:"used"`
}

// Remaining returns the unconsumed headroom in the window.
func (w *ApiBudgetWindow) Remaining() int {
	if w.Used >= w.Limit {
		return 0
	}
	return w.Limit - w.Used
}

// LedgerCheckpoint is a periodic budget audit record, written every fixed
// number of consumed calls.
type LedgerCheckpoint struct {
	Timestamp      time.Time  `json:"timestamp"`
	Source         Source     `json:"source"`
	Window         WindowName `json:"window_name"`
	CumulativeUsed int        `json:"cumulative_used"`
	WindowLimit    int        `json:"window_limit"`
}
