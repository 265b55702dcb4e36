package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spreadbot-go/internal/debounce"
	"spreadbot-go/internal/executor"
	"spreadbot-go/internal/market"
	"spreadbot-go/internal/position"
	"spreadbot-go/internal/reconcile"
	"spreadbot-go/internal/spread"
	"spreadbot-go/internal/venue"
)

const (
	venueA = market.Venue("alpha")
	venueB = market.Venue("beta")
)

type harness struct {
	engine *Engine
	stubA  *venue.Stub
	stubB  *venue.Stub
	model  *position.Model
	now    time.Time
}

func newHarness(t *testing.T, withReconciler bool) *harness {
	t.Helper()
	stubA := venue.NewStub(venueA)
	stubB := venue.NewStub(venueB)
	model := position.NewModel()
	gateway := venue.NewPair(venueA, stubA, venueB, stubB)
	log := zerolog.New(&bytes.Buffer{})

	coord := executor.New(gateway, model, executor.Config{
		Token:      "ETH",
		VenueA:     venueA,
		VenueB:     venueB,
		Margin:     100,
		Leverage:   5,
		SizeStepA:  0.001,
		SizeStepB:  0.001,
		LegTimeout: time.Second,
	}, log)

	var reconciler *reconcile.Reconciler
	if withReconciler {
		reconciler = reconcile.New(gateway, model, "ETH", venueA, venueB, log)
	}

	eng := New(Deps{
		VenueA:  venueA,
		VenueB:  venueB,
		SourceA: stubA,
		SourceB: stubB,
		Token:   "ETH",
		Spreads: spread.NewEngine(60, 0.95),
		Debouncer: debounce.New(debounce.Params{
			EntryThreshold:    2.0,
			ExitThreshold:     0.5,
			StopLossThreshold: 4.0,
			MinSpreadFilter:   0.2,
			MinSignalDuration: 2 * time.Second,
			MaxHold:           time.Hour,
		}),
		Model:      model,
		Coord:      coord,
		Reconciler: reconciler,
	}, Params{
		TickInterval: time.Second,
		WarmupTicks:  5,
	}, log)

	return &harness{engine: eng, stubA: stubA, stubB: stubB, model: model, now: time.Now()}
}

// step advances scripted time by one second and runs a tick.
func (h *harness) step(ctx context.Context) {
	h.now = h.now.Add(time.Second)
	h.engine.runTick(ctx, h.now)
}

func (h *harness) setSpreadAtoB(spread float64) {
	h.stubA.SetQuote(100+spread, 101+spread)
	h.stubB.SetQuote(99, 100)
}

func TestRampConfirmsSingleEntry(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	// Stable spread builds up the history past warmup.
	h.setSpreadAtoB(2.0)
	for i := 0; i < 30; i++ {
		h.step(ctx)
	}
	if h.model.Current() != nil {
		t.Fatalf("stable spread must not trigger entry")
	}

	// The spread blows out; persistence gates the entry. Note the
	// z-score decays as jump samples enter the history (3.9, 2.7, 2.2
	// on successive ticks), all still above the 2.0 threshold.
	h.setSpreadAtoB(16.0)
	for i := 0; i < 2; i++ {
		h.step(ctx)
		if h.model.Current() != nil {
			t.Fatalf("entry confirmed after only %ds", i+1)
		}
	}
	h.step(ctx)

	pos := h.model.Current()
	if pos == nil || pos.Status != position.StatusOpen {
		t.Fatalf("expected open position after persistence, got %+v", pos)
	}
	if pos.Direction != market.SellABuyB {
		t.Fatalf("direction: %s", pos.Direction)
	}
	if len(h.stubA.Orders()) != 1 || len(h.stubB.Orders()) != 1 {
		t.Fatalf("expected exactly one leg per venue, got %d / %d", len(h.stubA.Orders()), len(h.stubB.Orders()))
	}

	// While the position is held, no second entry can stack.
	for i := 0; i < 5; i++ {
		h.step(ctx)
	}
	if len(h.stubA.Orders()) != 1 {
		t.Fatalf("a held position must block further entries")
	}
}

func TestQuoteFailureSkipsTick(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	h.setSpreadAtoB(2.0)
	h.step(ctx)
	h.step(ctx)
	before := h.engine.tick

	h.stubA.FailQuote(errors.New("venue timeout"))
	h.step(ctx)
	if h.engine.tick != before {
		t.Fatalf("failed quote must not advance the tick count")
	}

	h.setSpreadAtoB(2.0)
	h.step(ctx)
	if h.engine.tick != before+1 {
		t.Fatalf("recovered quote must resume ticking")
	}
}

func TestConvergenceExitRoundTrip(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	h.setSpreadAtoB(2.0)
	for i := 0; i < 30; i++ {
		h.step(ctx)
	}
	h.setSpreadAtoB(16.0)
	for i := 0; i < 3; i++ {
		h.step(ctx)
	}
	if h.model.Current() == nil {
		t.Fatalf("expected open position")
	}

	// Spread falls back into the band; convergence debounces then closes.
	h.setSpreadAtoB(2.0)
	for i := 0; i < 40 && h.model.Current() != nil; i++ {
		h.step(ctx)
	}
	if h.model.Current() != nil {
		t.Fatalf("position never closed on convergence")
	}

	trades := h.model.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected one closed trade, got %d", len(trades))
	}
	if trades[0].Reason != market.ExitConvergence {
		t.Fatalf("reason: %s", trades[0].Reason)
	}
	// Four legs total: two opening, two closing.
	if len(h.stubA.Orders()) != 2 || len(h.stubB.Orders()) != 2 {
		t.Fatalf("legs: %d / %d", len(h.stubA.Orders()), len(h.stubB.Orders()))
	}
}

func TestReconcilerAdoptsCrashLeftoverOnFirstTick(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	// Exposure left on the venues from a previous run must be picked
	// up on the very next pass, not after some schedule.
	h.stubA.SetExposure(-0.5)
	h.stubB.SetExposure(0.5)

	h.setSpreadAtoB(2.0)
	h.step(ctx)

	pos := h.model.Current()
	if pos == nil {
		t.Fatalf("expected adoption on the first tick")
	}
	if pos.Direction != market.SellABuyB {
		t.Fatalf("direction from exposure signs: %s", pos.Direction)
	}
	if pos.SyncedAtTick != 1 {
		t.Fatalf("synced tick: %d, want 1", pos.SyncedAtTick)
	}
	if len(h.stubA.Orders()) != 0 {
		t.Fatalf("reconciliation must never place orders")
	}
}

func TestReconcilerClearsStaleVirtualPosition(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	h.model.BeginEntry(market.SellABuyB, market.SpreadSnapshot{SpreadAtoB: 2.0}, h.now)
	h.model.ConfirmEntry(0.5, 0.5)

	// Venues are flat, so the very first tick clears the phantom,
	// before any exit clock can confirm.
	h.setSpreadAtoB(2.0)
	h.step(ctx)

	if h.model.Current() != nil {
		t.Fatalf("phantom position not cleared")
	}
	if len(h.model.Trades()) != 0 {
		t.Fatalf("clear must not record a trade")
	}
}

func TestNewDefaultsProtectiveWindows(t *testing.T) {
	eng := New(Deps{}, Params{}, zerolog.Nop())

	if eng.params.ReconcileTicks != 1 {
		t.Fatalf("reconcile cadence must default to every tick, got %d", eng.params.ReconcileTicks)
	}
	if eng.params.GraceTicks != 10 {
		t.Fatalf("grace window must default to 10 ticks, got %d", eng.params.GraceTicks)
	}
	if eng.params.TickInterval != time.Second {
		t.Fatalf("tick interval must default to 1s, got %v", eng.params.TickInterval)
	}
}
