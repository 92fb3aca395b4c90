package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/vigil/internal/contracts"
)

var ctx = context.Background()

func TestCooldown_AllowThenBlock(t *testing.T) {
	tr := NewCooldownTracker(45*time.Minute, nil)
	at := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

	if !tr.Allow(ctx, "NVDA", contracts.SourceUW, at) {
		t.Fatal("never-scanned symbol must be allowed")
	}

	tr.Mark(ctx, "NVDA", contracts.SourceUW, at)

	if tr.Allow(ctx, "NVDA", contracts.SourceUW, at.Add(20*time.Minute)) {
		t.Error("symbol inside cooldown must be blocked")
	}
	if !tr.Allow(ctx, "NVDA", contracts.SourceUW, at.Add(45*time.Minute)) {
		t.Error("symbol at the cooldown boundary must be allowed")
	}
}

func TestCooldown_PerSourceIndependent(t *testing.T) {
	tr := NewCooldownTracker(45*time.Minute, nil)
	at := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

	tr.Mark(ctx, "NVDA", contracts.SourceUW, at)

	if !tr.Allow(ctx, "NVDA", contracts.SourcePolygon, at.Add(time.Minute)) {
		t.Error("cooldown is per symbol/source pair, polygon must stay open")
	}
}

func TestCooldown_DueSymbols(t *testing.T) {
	tr := NewCooldownTracker(45*time.Minute, nil)
	at := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	sources := []contracts.Source{contracts.SourceUW}

	tr.Mark(ctx, "AAPL", contracts.SourceUW, at)

	due := tr.DueSymbols(ctx, []string{"AAPL", "NVDA", "TSLA"}, sources, at.Add(10*time.Minute))
	if len(due) != 2 {
		t.Fatalf("due = %v, want NVDA and TSLA", due)
	}
	for _, sym := range due {
		if sym == "AAPL" {
			t.Error("AAPL is cooling down and must not be due")
		}
	}
}
