package position

import (
	"testing"
	"time"

	"spreadbot-go/internal/market"
)

func TestSingleSlot(t *testing.T) {
	m := NewModel()
	now := time.Now()
	snap := market.SpreadSnapshot{SpreadAtoB: 2.0, SpreadBtoA: -2.0, ZAtoB: 3.0}

	if _, err := m.BeginEntry(market.SellABuyB, snap, now); err != nil {
		t.Fatalf("BeginEntry on empty slot: %v", err)
	}
	if _, err := m.BeginEntry(market.SellBBuyA, snap, now); err != ErrPositionExists {
		t.Fatalf("expected ErrPositionExists, got %v", err)
	}
}

func TestEntryLifecycle(t *testing.T) {
	m := NewModel()
	snap := market.SpreadSnapshot{SpreadAtoB: 2.0, SpreadBtoA: -2.0, ZAtoB: 3.0}

	m.BeginEntry(market.SellABuyB, snap, time.Now())
	if got := m.Current().Status; got != StatusPendingEntry {
		t.Fatalf("after BeginEntry: %s", got)
	}

	m.ConfirmEntry(0.5, 0.51)
	pos := m.Current()
	if pos.Status != StatusOpen || pos.SizeA != 0.5 || pos.SizeB != 0.51 {
		t.Fatalf("after ConfirmEntry: %+v", pos)
	}
	if pos.SyncedAtTick != -1 {
		t.Fatalf("self-opened position must not carry a sync tick, got %d", pos.SyncedAtTick)
	}
}

func TestAbortEntryFreesSlot(t *testing.T) {
	m := NewModel()
	snap := market.SpreadSnapshot{SpreadAtoB: 2.0}

	m.BeginEntry(market.SellABuyB, snap, time.Now())
	m.AbortEntry()
	if m.Current() != nil {
		t.Fatalf("slot still occupied after abort")
	}
	if len(m.Trades()) != 0 {
		t.Fatalf("aborted entry must not record a trade")
	}
}

func TestClosePnL(t *testing.T) {
	m := NewModel()
	entered := time.Now()

	// Entry captures +12 on the A-to-B side.
	m.BeginEntry(market.SellABuyB, market.SpreadSnapshot{SpreadAtoB: 12.0, SpreadBtoA: -14.0}, entered)
	m.ConfirmEntry(1, 1)
	m.Tick()
	m.Tick()

	// Exit spends the B-to-A cash-flow of -2.
	exit := market.SpreadSnapshot{SpreadAtoB: 1.0, SpreadBtoA: -2.0}
	trade, ok := m.Close(market.ExitConvergence, exit, entered.Add(2*time.Second))
	if !ok {
		t.Fatalf("Close on open position failed")
	}
	if trade.PnL != 10.0 {
		t.Fatalf("PnL: got %v, want 10.0", trade.PnL)
	}
	if trade.EntrySpread != 12.0 || trade.ExitSpread != -2.0 {
		t.Fatalf("spreads: entry %v exit %v", trade.EntrySpread, trade.ExitSpread)
	}
	if trade.DurationTicks != 2 {
		t.Fatalf("duration: got %d, want 2", trade.DurationTicks)
	}
	if m.Current() != nil {
		t.Fatalf("slot still occupied after close")
	}
}

func TestReopenAfterFailedExitFlags(t *testing.T) {
	m := NewModel()
	m.BeginEntry(market.SellABuyB, market.SpreadSnapshot{SpreadAtoB: 2.0}, time.Now())
	m.ConfirmEntry(1, 1)

	m.BeginExit()
	if m.Current().Status != StatusPendingExit {
		t.Fatalf("after BeginExit: %s", m.Current().Status)
	}
	m.ReopenAfterFailedExit()
	pos := m.Current()
	if pos.Status != StatusOpen || !pos.Flagged {
		t.Fatalf("failed exit must reopen flagged, got %+v", pos)
	}
}

func TestAdoptAndClear(t *testing.T) {
	m := NewModel()
	snap := market.SpreadSnapshot{SpreadAtoB: 1.5, SpreadBtoA: -1.8, ZAtoB: 2.2}

	pos := m.Adopt(market.SellABuyB, snap, time.Now(), 42, 0.5, 0.5, true)
	if pos.Status != StatusOpen || pos.SyncedAtTick != 42 || !pos.Flagged {
		t.Fatalf("adopted position: %+v", pos)
	}

	m.Clear()
	if m.Current() != nil {
		t.Fatalf("slot still occupied after clear")
	}
	if len(m.Trades()) != 0 {
		t.Fatalf("clear must not record a trade")
	}
}

func TestTickOnlyAdvancesOpen(t *testing.T) {
	m := NewModel()
	m.Tick() // empty slot, no-op

	m.BeginEntry(market.SellABuyB, market.SpreadSnapshot{}, time.Now())
	m.Tick() // pending entry, no-op
	if got := m.Current().DurationTicks; got != 0 {
		t.Fatalf("pending position aged: %d", got)
	}
	m.ConfirmEntry(1, 1)
	m.Tick()
	if got := m.Current().DurationTicks; got != 1 {
		t.Fatalf("open position did not age: %d", got)
	}
}

func TestStats(t *testing.T) {
	m := NewModel()
	now := time.Now()

	open := func(spreadAB float64) {
		m.BeginEntry(market.SellABuyB, market.SpreadSnapshot{SpreadAtoB: spreadAB}, now)
		m.ConfirmEntry(1, 1)
	}
	open(5.0)
	m.Close(market.ExitConvergence, market.SpreadSnapshot{SpreadBtoA: -1.0}, now) // +4
	open(2.0)
	m.Close(market.ExitStopLoss, market.SpreadSnapshot{SpreadBtoA: -5.0}, now) // -3

	s := m.Stats()
	if s.TotalTrades != 2 || s.WinningTrades != 1 || s.LosingTrades != 1 {
		t.Fatalf("counts: %+v", s)
	}
	if s.TotalPnL != 1.0 || s.AvgPnL != 0.5 || s.WinRate != 0.5 {
		t.Fatalf("aggregates: %+v", s)
	}
}
