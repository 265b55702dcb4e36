package debounce

import (
	"testing"
	"time"

	"spreadbot-go/internal/market"
	"spreadbot-go/internal/position"
)

func params() Params {
	return Params{
		EntryThreshold:    2.0,
		ExitThreshold:     0.5,
		StopLossThreshold: 4.0,
		MinSpreadFilter:   0.2,
		MinSignalDuration: 4 * time.Second,
		MaxHold:           time.Hour,
	}
}

func snapAB(spread, z float64) market.SpreadSnapshot {
	return market.SpreadSnapshot{SpreadAtoB: spread, ZAtoB: z, SpreadBtoA: -spread, ZBtoA: -z}
}

func TestEntryRequiresPersistence(t *testing.T) {
	d := New(params())
	t0 := time.Now()

	if _, ok := d.CheckEntry(snapAB(1.0, 3.0), t0); ok {
		t.Fatalf("first qualifying tick must not confirm")
	}
	if _, ok := d.CheckEntry(snapAB(1.0, 3.0), t0.Add(2*time.Second)); ok {
		t.Fatalf("2s persistence must not confirm with a 4s requirement")
	}
	dir, ok := d.CheckEntry(snapAB(1.0, 3.0), t0.Add(4*time.Second))
	if !ok || dir != market.SellABuyB {
		t.Fatalf("expected confirmed sell_a_buy_b after 4s, got %q ok=%v", dir, ok)
	}
}

func TestEntryDirectionChangeResetsTimer(t *testing.T) {
	d := New(params())
	t0 := time.Now()

	d.CheckEntry(snapAB(1.0, 3.0), t0)
	// Opposite side takes over at t0+3s; its own clock starts there.
	d.CheckEntry(snapAB(-1.0, -3.0), t0.Add(3*time.Second))
	if _, ok := d.CheckEntry(snapAB(-1.0, -3.0), t0.Add(5*time.Second)); ok {
		t.Fatalf("direction flip must restart the persistence clock")
	}
	dir, ok := d.CheckEntry(snapAB(-1.0, -3.0), t0.Add(7*time.Second))
	if !ok || dir != market.SellBBuyA {
		t.Fatalf("expected sell_b_buy_a after its own 4s, got %q ok=%v", dir, ok)
	}
}

func TestEntryLapseResets(t *testing.T) {
	d := New(params())
	t0 := time.Now()

	d.CheckEntry(snapAB(1.0, 3.0), t0)
	d.CheckEntry(snapAB(0.0, 0.0), t0.Add(2*time.Second))
	if _, ok := d.CheckEntry(snapAB(1.0, 3.0), t0.Add(5*time.Second)); ok {
		t.Fatalf("a lapsed signal must start over")
	}
}

func TestEntryMinSpreadFilter(t *testing.T) {
	d := New(params())
	t0 := time.Now()

	// High z on an economically tiny spread never becomes a candidate.
	d.CheckEntry(snapAB(0.05, 5.0), t0)
	if _, ok := d.CheckEntry(snapAB(0.05, 5.0), t0.Add(10*time.Second)); ok {
		t.Fatalf("spread below the floor must never confirm")
	}
}

func TestEntryBothSidesQualifyPicksLargerZ(t *testing.T) {
	d := New(params())
	t0 := time.Now()
	snap := market.SpreadSnapshot{SpreadAtoB: 1.0, ZAtoB: 2.5, SpreadBtoA: 1.0, ZBtoA: 3.5}

	d.CheckEntry(snap, t0)
	dir, ok := d.CheckEntry(snap, t0.Add(4*time.Second))
	if !ok || dir != market.SellBBuyA {
		t.Fatalf("dominant z must win, got %q ok=%v", dir, ok)
	}
}

func openPosition(dir market.Direction, entrySpreadAB float64, entered time.Time) *position.Position {
	return &position.Position{
		Direction:       dir,
		EntryTime:       entered,
		EntrySpreadAtoB: entrySpreadAB,
		EntrySpreadBtoA: -entrySpreadAB,
		Status:          position.StatusOpen,
		SyncedAtTick:    -1,
	}
}

func TestExitInversionIsImmediate(t *testing.T) {
	d := New(params())
	t0 := time.Now()
	pos := openPosition(market.SellABuyB, 2.0, t0)

	reason, ok := d.CheckExit(pos, snapAB(-0.5, 1.0), t0.Add(time.Second), false)
	if !ok || reason != market.ExitInversion {
		t.Fatalf("sign flip must exit immediately, got %q ok=%v", reason, ok)
	}
}

func TestExitInversionSuppressedDuringGrace(t *testing.T) {
	d := New(params())
	t0 := time.Now()
	pos := openPosition(market.SellABuyB, 2.0, t0)

	if reason, ok := d.CheckExit(pos, snapAB(-0.5, 1.0), t0.Add(time.Second), true); ok {
		t.Fatalf("inversion must not fire while suppressed, got %q", reason)
	}
}

func TestExitMaxHold(t *testing.T) {
	d := New(params())
	t0 := time.Now()
	pos := openPosition(market.SellABuyB, 2.0, t0)

	reason, ok := d.CheckExit(pos, snapAB(2.0, 1.0), t0.Add(time.Hour), false)
	if !ok || reason != market.ExitMaxHold {
		t.Fatalf("expected max-hold exit, got %q ok=%v", reason, ok)
	}
}

func TestExitConvergenceDebounced(t *testing.T) {
	d := New(params())
	t0 := time.Now()
	pos := openPosition(market.SellABuyB, 2.0, t0)

	if _, ok := d.CheckExit(pos, snapAB(2.0, 0.2), t0, false); ok {
		t.Fatalf("first convergence tick must not confirm")
	}
	reason, ok := d.CheckExit(pos, snapAB(2.0, 0.2), t0.Add(4*time.Second), false)
	if !ok || reason != market.ExitConvergence {
		t.Fatalf("expected convergence after 4s, got %q ok=%v", reason, ok)
	}
}

func TestExitReasonChangeResetsTimer(t *testing.T) {
	d := New(params())
	t0 := time.Now()
	pos := openPosition(market.SellABuyB, 2.0, t0)

	// Convergence pending at t0, then stop-loss takes over at t0+3s.
	d.CheckExit(pos, snapAB(2.0, 0.2), t0, false)
	d.CheckExit(pos, snapAB(2.0, 5.0), t0.Add(3*time.Second), false)
	if _, ok := d.CheckExit(pos, snapAB(2.0, 5.0), t0.Add(5*time.Second), false); ok {
		t.Fatalf("reason change must restart the exit clock")
	}
	reason, ok := d.CheckExit(pos, snapAB(2.0, 5.0), t0.Add(7*time.Second), false)
	if !ok || reason != market.ExitStopLoss {
		t.Fatalf("expected stop-loss after its own 4s, got %q ok=%v", reason, ok)
	}
}

func TestExitStopLossOutranksConvergence(t *testing.T) {
	d := New(params())
	t0 := time.Now()
	pos := openPosition(market.SellABuyB, 2.0, t0)

	// z at 5.0 is above the stop threshold; convergence cannot apply.
	d.CheckExit(pos, snapAB(2.0, 5.0), t0, false)
	reason, ok := d.CheckExit(pos, snapAB(2.0, 5.0), t0.Add(4*time.Second), false)
	if !ok || reason != market.ExitStopLoss {
		t.Fatalf("expected stop-loss, got %q ok=%v", reason, ok)
	}
}
