// Package budget enforces per-source, per-window call ceilings. Admission is
// checked before a call is issued; consumption is recorded per call under a
// single mutex so concurrent jobs cannot both pass a check against the same
// remaining headroom.
package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/vigil/internal/contracts"
)

// ErrExhausted is returned when a consume would exceed the window limit.
var ErrExhausted = errors.New("budget window exhausted")

// ErrWindowClosed is returned outside every named window.
var ErrWindowClosed = errors.New("no budget window open")

// Limits maps source to per-window call ceilings.
type Limits map[contracts.Source]map[contracts.WindowName]int

// DefaultLimits reflects each vendor's plan ceiling split across windows.
func DefaultLimits() Limits {
	return Limits{
		contracts.SourcePolygon: {
			contracts.WindowPreMarket:   100,
			contracts.WindowMarketHours: 800,
			contracts.WindowAfterHours:  100,
		},
		contracts.SourceUW: {
			contracts.WindowPreMarket:   150,
			contracts.WindowMarketHours: 600,
			contracts.WindowAfterHours:  150,
		},
		contracts.SourceQuiver: {
			contracts.WindowPreMarket:   50,
			contracts.WindowMarketHours: 200,
			contracts.WindowAfterHours:  50,
		},
		contracts.SourceEarnings: {
			contracts.WindowPreMarket:   20,
			contracts.WindowMarketHours: 50,
			contracts.WindowAfterHours:  20,
		},
	}
}

// CheckpointFunc receives periodic ledger checkpoints.
type CheckpointFunc func(contracts.LedgerCheckpoint)

type windowKey struct {
	source contracts.Source
	window contracts.WindowName
	day    string // YYYY-MM-DD in exchange time
}

// Manager tracks live window counters.
type Manager struct {
	limits          Limits
	loc             *time.Location
	checkpointEvery int
	onCheckpoint    CheckpointFunc

	mu      sync.Mutex
	windows map[windowKey]*contracts.ApiBudgetWindow
}

// NewManager creates a manager. checkpointEvery is the ledger interval in
// consumed calls per source/window; onCheckpoint may be nil.
func NewManager(limits Limits, loc *time.Location, checkpointEvery int, onCheckpoint CheckpointFunc) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{
		limits:          limits,
		loc:             loc,
		checkpointEvery: checkpointEvery,
		onCheckpoint:    onCheckpoint,
		windows:         make(map[windowKey]*contracts.ApiBudgetWindow),
	}
}

// WindowFor maps a wall-clock instant to its named window in exchange time.
// Returns false outside every window.
func (m *Manager) WindowFor(at time.Time) (contracts.WindowName, bool) {
	t := at.In(m.loc)
	mins := t.Hour()*60 + t.Minute()

	switch {
	case mins >= 4*60 && mins < 9*60+30:
		return contracts.WindowPreMarket, true
	case mins >= 9*60+30 && mins < 16*60:
		return contracts.WindowMarketHours, true
	case mins >= 16*60 && mins < 20*60:
		return contracts.WindowAfterHours, true
	default:
		return "", false
	}
}

// HasHeadroom reports whether n calls fit in the source's current window.
// Pure admission check; consumes nothing, so a rejected job leaves the
// counter untouched.
func (m *Manager) HasHeadroom(at time.Time, source contracts.Source, n int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, err := m.window(at, source)
	if err != nil {
		return false
	}
	return w.Used+n <= w.Limit
}

// Consume records one call against the source's current window. The
// increment-and-check runs under the mutex; a call that would exceed the
// limit is rejected without consuming.
func (m *Manager) Consume(at time.Time, source contracts.Source) error {
	var cp *contracts.LedgerCheckpoint

	m.mu.Lock()
	w, err := m.window(at, source)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if w.Used+1 > w.Limit {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s/%s at %d/%d", ErrExhausted, source, w.Window, w.Used, w.Limit)
	}
	w.Used++

	if m.checkpointEvery > 0 && w.Used%m.checkpointEvery == 0 {
		cp = &contracts.LedgerCheckpoint{
			Timestamp:      at.UTC(),
			Source:         source,
			Window:         w.Window,
			CumulativeUsed: w.Used,
			WindowLimit:    w.Limit,
		}
	}
	m.mu.Unlock()

	// Checkpoint outside the lock; the writer must not stall admission.
	if cp != nil && m.onCheckpoint != nil {
		m.onCheckpoint(*cp)
	}
	return nil
}

// Snapshot returns the current counters for every source in the open window.
func (m *Manager) Snapshot(at time.Time) []contracts.ApiBudgetWindow {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []contracts.ApiBudgetWindow
	for _, source := range contracts.AllSources {
		if w, err := m.window(at, source); err == nil {
			out = append(out, *w)
		}
	}
	return out
}

// window finds or creates the live counter for the instant. Caller holds the
// mutex.
func (m *Manager) window(at time.Time, source contracts.Source) (*contracts.ApiBudgetWindow, error) {
	name, ok := m.WindowFor(at)
	if !ok {
		return nil, ErrWindowClosed
	}

	t := at.In(m.loc)
	key := windowKey{source: source, window: name, day: t.Format("2006-01-02")}
	if w, ok := m.windows[key]; ok {
		return w, nil
	}

	limit, ok := m.limits[source][name]
	if !ok {
		return nil, fmt.Errorf("no limit configured for %s/%s", source, name)
	}

	start, end := windowBounds(t, name)
	w := &contracts.ApiBudgetWindow{
		Source:      source,
		Window:      name,
		WindowStart: start,
		WindowEnd:   end,
		Limit:       limit,
	}
	m.windows[key] = w
	m.prune(t)
	return w, nil
}

func windowBounds(t time.Time, name contracts.WindowName) (time.Time, time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch name {
	case contracts.WindowPreMarket:
		return day.Add(4 * time.Hour), day.Add(9*time.Hour + 30*time.Minute)
	case contracts.WindowMarketHours:
		return day.Add(9*time.Hour + 30*time.Minute), day.Add(16 * time.Hour)
	default:
		return day.Add(16 * time.Hour), day.Add(20 * time.Hour)
	}
}

// prune drops counters whose window ended more than a day ago.
func (m *Manager) prune(t time.Time) {
	cutoff := t.Add(-24 * time.Hour)
	for key, w := range m.windows {
		if w.WindowEnd.Before(cutoff) {
			delete(m.windows, key)
		}
	}
}
