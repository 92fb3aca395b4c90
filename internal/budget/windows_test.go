package budget

import (
	"errors"
	"testing"
	"time"

	"github.com/wonny/vigil/internal/contracts"
)

func nyLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func marketTime(t *testing.T) time.Time {
	return time.Date(2026, 3, 2, 11, 0, 0, 0, nyLoc(t))
}

func testLimits(limit int) Limits {
	return Limits{
		contracts.SourcePolygon: {
			contracts.WindowPreMarket:   limit,
			contracts.WindowMarketHours: limit,
			contracts.WindowAfterHours:  limit,
		},
	}
}

func TestWindowFor(t *testing.T) {
	m := NewManager(DefaultLimits(), nyLoc(t), 0, nil)

	tests := []struct {
		hour, min int
		want      contracts.WindowName
		open      bool
	}{
		{4, 0, contracts.WindowPreMarket, true},
		{9, 29, contracts.WindowPreMarket, true},
		{9, 30, contracts.WindowMarketHours, true},
		{15, 59, contracts.WindowMarketHours, true},
		{16, 0, contracts.WindowAfterHours, true},
		{19, 59, contracts.WindowAfterHours, true},
		{20, 0, "", false},
		{2, 0, "", false},
	}

	for _, tt := range tests {
		at := time.Date(2026, 3, 2, tt.hour, tt.min, 0, 0, nyLoc(t))
		name, open := m.WindowFor(at)
		if open != tt.open || name != tt.want {
			t.Errorf("WindowFor(%02d:%02d) = %q, %v; want %q, %v", tt.hour, tt.min, name, open, tt.want, tt.open)
		}
	}
}

func TestHasHeadroom_RejectsWithoutConsuming(t *testing.T) {
	m := NewManager(testLimits(800), nyLoc(t), 0, nil)
	at := marketTime(t)

	// Burn the window down to 799 used.
	for i := 0; i < 799; i++ {
		if err := m.Consume(at, contracts.SourcePolygon); err != nil {
			t.Fatalf("consume %d failed: %v", i, err)
		}
	}

	// A 2-call job must be rejected outright.
	if m.HasHeadroom(at, contracts.SourcePolygon, 2) {
		t.Error("2 calls must not fit in 1 remaining")
	}

	// Rejection consumed nothing: used stays 799, so 1 call still fits.
	if !m.HasHeadroom(at, contracts.SourcePolygon, 1) {
		t.Error("used must remain 799 after the rejected admission check")
	}

	snap := m.Snapshot(at)
	if len(snap) != 1 || snap[0].Used != 799 {
		t.Errorf("Snapshot = %+v, want used=799", snap)
	}
}

func TestConsume_ExhaustionError(t *testing.T) {
	m := NewManager(testLimits(2), nyLoc(t), 0, nil)
	at := marketTime(t)

	if err := m.Consume(at, contracts.SourcePolygon); err != nil {
		t.Fatal(err)
	}
	if err := m.Consume(at, contracts.SourcePolygon); err != nil {
		t.Fatal(err)
	}

	err := m.Consume(at, contracts.SourcePolygon)
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, want ErrExhausted", err)
	}

	// The failed consume must not push used past the limit.
	snap := m.Snapshot(at)
	if snap[0].Used != 2 {
		t.Errorf("Used = %d, want 2", snap[0].Used)
	}
}

func TestConsume_OutsideWindow(t *testing.T) {
	m := NewManager(testLimits(10), nyLoc(t), 0, nil)
	at := time.Date(2026, 3, 2, 22, 0, 0, 0, nyLoc(t))

	if !errors.Is(m.Consume(at, contracts.SourcePolygon), ErrWindowClosed) {
		t.Error("consume outside every window must fail with ErrWindowClosed")
	}
	if m.HasHeadroom(at, contracts.SourcePolygon, 1) {
		t.Error("no headroom exists outside every window")
	}
}

func TestConsume_WindowsAreIndependent(t *testing.T) {
	m := NewManager(testLimits(1), nyLoc(t), 0, nil)
	pre := time.Date(2026, 3, 2, 8, 0, 0, 0, nyLoc(t))
	mkt := time.Date(2026, 3, 2, 11, 0, 0, 0, nyLoc(t))

	if err := m.Consume(pre, contracts.SourcePolygon); err != nil {
		t.Fatal(err)
	}
	// Pre-market is now full; market-hours has its own pool.
	if !m.HasHeadroom(mkt, contracts.SourcePolygon, 1) {
		t.Error("market-hours window must not share the pre-market counter")
	}
}

func TestConsume_LedgerCheckpoints(t *testing.T) {
	var checkpoints []contracts.LedgerCheckpoint
	m := NewManager(testLimits(100), nyLoc(t), 25, func(cp contracts.LedgerCheckpoint) {
		checkpoints = append(checkpoints, cp)
	})
	at := marketTime(t)

	for i := 0; i < 60; i++ {
		if err := m.Consume(at, contracts.SourcePolygon); err != nil {
			t.Fatal(err)
		}
	}

	if len(checkpoints) != 2 {
		t.Fatalf("checkpoints = %d, want 2 (at 25 and 50 calls)", len(checkpoints))
	}
	if checkpoints[0].CumulativeUsed != 25 || checkpoints[1].CumulativeUsed != 50 {
		t.Errorf("checkpoint counts = %d, %d; want 25, 50", checkpoints[0].CumulativeUsed, checkpoints[1].CumulativeUsed)
	}
	if checkpoints[0].WindowLimit != 100 || checkpoints[0].Source != contracts.SourcePolygon {
		t.Errorf("checkpoint = %+v, want source/limit recorded", checkpoints[0])
	}
}

func TestConsume_ConcurrentNeverExceedsLimit(t *testing.T) {
	m := NewManager(testLimits(100), nyLoc(t), 0, nil)
	at := marketTime(t)

	done := make(chan int)
	for g := 0; g < 8; g++ {
		go func() {
			ok := 0
			for i := 0; i < 50; i++ {
				if m.Consume(at, contracts.SourcePolygon) == nil {
					ok++
				}
			}
			done <- ok
		}()
	}

	total := 0
	for g := 0; g < 8; g++ {
		total += <-done
	}

	if total != 100 {
		t.Errorf("successful consumes = %d, want exactly the limit 100", total)
	}
	if snap := m.Snapshot(at); snap[0].Used != 100 {
		t.Errorf("Used = %d, want 100", snap[0].Used)
	}
}
