package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/pkg/redis"
)

// CooldownTracker enforces the minimum interval before the same
// symbol/source pair may be scanned again, independent of remaining budget.
// This is the primary mechanism keeping realized usage far below the
// theoretical maximum.
//
// The in-memory map is authoritative; Redis, when enabled, carries the state
// across restarts.
type CooldownTracker struct {
	interval time.Duration
	cache    *redis.Cache

	mu       sync.Mutex
	lastScan map[string]time.Time
}

// NewCooldownTracker creates a tracker. cache may be nil.
func NewCooldownTracker(interval time.Duration, cache *redis.Cache) *CooldownTracker {
	return &CooldownTracker{
		interval: interval,
		cache:    cache,
		lastScan: make(map[string]time.Time),
	}
}

// Allow reports whether the symbol/source pair is outside its cooldown.
func (t *CooldownTracker) Allow(ctx context.Context, symbol string, source contracts.Source, at time.Time) bool {
	key := cooldownMapKey(symbol, source)

	t.mu.Lock()
	last, ok := t.lastScan[key]
	t.mu.Unlock()

	if !ok && t.cache != nil {
		var persisted time.Time
		if found, err := t.cache.Get(ctx, redis.CooldownKey(symbol, string(source)), &persisted); err == nil && found {
			last, ok = persisted, true
			t.mu.Lock()
			t.lastScan[key] = persisted
			t.mu.Unlock()
		}
	}

	return !ok || at.Sub(last) >= t.interval
}

// Mark records a scan of the symbol/source pair.
func (t *CooldownTracker) Mark(ctx context.Context, symbol string, source contracts.Source, at time.Time) {
	t.mu.Lock()
	t.lastScan[cooldownMapKey(symbol, source)] = at
	t.mu.Unlock()

	if t.cache != nil {
		// Best effort; the in-memory map already holds the truth.
		_ = t.cache.Set(ctx, redis.CooldownKey(symbol, string(source)), at, t.interval)
	}
}

// DueSymbols filters a job's symbol list down to those outside cooldown for
// at least one of the given sources.
func (t *CooldownTracker) DueSymbols(ctx context.Context, symbols []string, sources []contracts.Source, at time.Time) []string {
	var due []string
	for _, sym := range symbols {
		for _, src := range sources {
			if t.Allow(ctx, sym, src, at) {
				due = append(due, sym)
				break
			}
		}
	}
	return due
}

func cooldownMapKey(symbol string, source contracts.Source) string {
	return fmt.Sprintf("%s|%s", symbol, source)
}
