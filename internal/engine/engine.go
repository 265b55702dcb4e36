// Package engine runs the once-per-second strategy loop that ties quote
// ingestion, spread statistics, signal debouncing, execution, and
// reconciliation together.
package engine

import (
	"context"
	"errors"
	"time"

	"spreadbot-go/internal/debounce"
	"spreadbot-go/internal/executor"
	"spreadbot-go/internal/market"
	"spreadbot-go/internal/metrics"
	"spreadbot-go/internal/position"
	"spreadbot-go/internal/reconcile"
	"spreadbot-go/internal/spread"
	"spreadbot-go/internal/store"
	"spreadbot-go/internal/venue"

	"github.com/rs/zerolog"
)

// Params tunes the loop cadence and the windows measured in ticks.
// ReconcileTicks is an opt-out: reconciliation runs every tick unless a
// larger value slows it down, so exposure left by a partial fill or a
// crash is picked up on the very next pass.
type Params struct {
	TickInterval   time.Duration
	WarmupTicks    int
	GraceTicks     int
	ReconcileTicks int
	StatusTicks    int
}

// Engine owns every stateful strategy component. All state mutation
// happens on the tick goroutine; a tick runs to completion before the
// next begins, so the components need no locking of their own.
type Engine struct {
	venueA  market.Venue
	venueB  market.Venue
	sourceA venue.QuoteSource
	sourceB venue.QuoteSource
	token   string

	spreads    *spread.Engine
	debouncer  *debounce.Debouncer
	model      *position.Model
	coord      *executor.Coordinator
	reconciler *reconcile.Reconciler

	trades *store.TradeStore
	events *store.EventRecorder

	params Params
	log    zerolog.Logger
	tick   int
}

// Deps bundles the constructor arguments.
type Deps struct {
	VenueA     market.Venue
	VenueB     market.Venue
	SourceA    venue.QuoteSource
	SourceB    venue.QuoteSource
	Token      string
	Spreads    *spread.Engine
	Debouncer  *debounce.Debouncer
	Model      *position.Model
	Coord      *executor.Coordinator
	Reconciler *reconcile.Reconciler
	Trades     *store.TradeStore
	Events     *store.EventRecorder
}

// New wires an engine together. Zero Params fields get sane defaults.
func New(deps Deps, params Params, log zerolog.Logger) *Engine {
	if params.TickInterval <= 0 {
		params.TickInterval = time.Second
	}
	if params.ReconcileTicks <= 0 {
		params.ReconcileTicks = 1
	}
	if params.GraceTicks <= 0 {
		params.GraceTicks = 10
	}
	if params.StatusTicks <= 0 {
		params.StatusTicks = 30
	}
	return &Engine{
		venueA:     deps.VenueA,
		venueB:     deps.VenueB,
		sourceA:    deps.SourceA,
		sourceB:    deps.SourceB,
		token:      deps.Token,
		spreads:    deps.Spreads,
		debouncer:  deps.Debouncer,
		model:      deps.Model,
		coord:      deps.Coord,
		reconciler: deps.Reconciler,
		trades:     deps.Trades,
		events:     deps.Events,
		params:     params,
		log:        log,
	}
}

// Run executes the tick loop until ctx is cancelled. Ticks never
// overlap: each runs to completion before the ticker is consulted
// again, so a slow venue stretches the cadence instead of stacking
// concurrent ticks.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.params.TickInterval)
	defer ticker.Stop()

	e.log.Info().
		Str("token", e.token).
		Dur("interval", e.params.TickInterval).
		Int("warmup_ticks", e.params.WarmupTicks).
		Msg("engine started")

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("engine stopping")
			return ctx.Err()
		case now := <-ticker.C:
			e.runTick(ctx, now)
		}
	}
}

type quoteResult struct {
	q   market.Quote
	err error
}

// runTick performs one full strategy iteration.
func (e *Engine) runTick(ctx context.Context, now time.Time) {
	quoteA, quoteB, ok := e.fetchQuotes(ctx)
	if !ok {
		return
	}

	snap := e.spreads.Update(quoteA, quoteB, now)
	e.tick++
	metrics.TicksTotal.Inc()
	metrics.ZScore.WithLabelValues(string(market.SellABuyB)).Set(snap.ZAtoB)
	metrics.ZScore.WithLabelValues(string(market.SellBBuyA)).Set(snap.ZBtoA)

	if e.reconciler != nil && e.tick%e.params.ReconcileTicks == 0 {
		before := e.model.Current()
		e.reconciler.Reconcile(ctx, snap, now, e.tick)
		if e.model.Current() != before {
			// The slot changed out from under the timers.
			e.debouncer.Reset()
		}
	}

	e.model.Tick()

	if pos := e.model.Current(); pos != nil {
		if pos.Status == position.StatusOpen {
			e.checkExit(ctx, pos, snap, now)
		}
	} else if e.tick > e.params.WarmupTicks {
		e.checkEntry(ctx, snap, quoteA, quoteB, now)
	}

	if e.tick%e.params.StatusTicks == 0 {
		e.logStatus(snap)
	}
}

// fetchQuotes pulls both venues' books concurrently. Either failure
// skips the tick; statistics must never be fed a half-fresh pair.
func (e *Engine) fetchQuotes(ctx context.Context) (market.Quote, market.Quote, bool) {
	chA := make(chan quoteResult, 1)
	chB := make(chan quoteResult, 1)
	go func() {
		q, err := e.sourceA.GetQuote(ctx, e.token)
		chA <- quoteResult{q, err}
	}()
	go func() {
		q, err := e.sourceB.GetQuote(ctx, e.token)
		chB <- quoteResult{q, err}
	}()
	resA, resB := <-chA, <-chB

	if resA.err != nil {
		metrics.TicksSkipped.WithLabelValues(string(e.venueA)).Inc()
	}
	if resB.err != nil {
		metrics.TicksSkipped.WithLabelValues(string(e.venueB)).Inc()
	}
	if resA.err != nil || resB.err != nil {
		e.log.Debug().AnErr("venue_a", resA.err).AnErr("venue_b", resB.err).Msg("tick skipped: quote fetch failed")
		return market.Quote{}, market.Quote{}, false
	}
	return resA.q, resB.q, true
}

func (e *Engine) checkEntry(ctx context.Context, snap market.SpreadSnapshot, quoteA, quoteB market.Quote, now time.Time) {
	dir, confirmed := e.debouncer.CheckEntry(snap, now)
	if !confirmed {
		return
	}
	metrics.SignalsConfirmed.WithLabelValues("entry", string(dir)).Inc()

	if err := e.coord.OpenPosition(ctx, dir, snap, quoteA, quoteB, now); err != nil {
		if !errors.Is(err, executor.ErrNotionalLimit) {
			e.log.Error().Err(err).Str("direction", string(dir)).Msg("entry failed")
		}
		e.recordEvent("entry_failed", map[string]any{"direction": string(dir), "error": err.Error()})
		return
	}
	e.recordEvent("entry", map[string]any{
		"direction": string(dir),
		"spread":    snap.Spread(dir),
		"z":         snap.Z(dir),
	})
}

func (e *Engine) checkExit(ctx context.Context, pos *position.Position, snap market.SpreadSnapshot, now time.Time) {
	suppress := pos.SyncedAtTick >= 0 && e.tick-pos.SyncedAtTick < e.params.GraceTicks
	reason, confirmed := e.debouncer.CheckExit(pos, snap, now, suppress)
	if !confirmed {
		return
	}
	metrics.SignalsConfirmed.WithLabelValues("exit", string(reason)).Inc()

	trade, err := e.coord.ClosePosition(ctx, reason, snap, now)
	if err != nil {
		e.log.Error().Err(err).Str("reason", string(reason)).Msg("exit failed")
		e.recordEvent("exit_failed", map[string]any{"reason": string(reason), "error": err.Error()})
		return
	}
	if e.trades != nil {
		if err := e.trades.Insert(ctx, trade); err != nil {
			e.log.Warn().Err(err).Msg("trade persist failed")
		}
	}
	e.recordEvent("exit", map[string]any{
		"direction": string(trade.Direction),
		"reason":    string(reason),
		"pnl":       trade.PnL,
	})
}

func (e *Engine) logStatus(snap market.SpreadSnapshot) {
	evt := e.log.Info().
		Int("tick", e.tick).
		Float64("spread_ab", snap.SpreadAtoB).
		Float64("spread_ba", snap.SpreadBtoA).
		Float64("z_ab", snap.ZAtoB).
		Float64("z_ba", snap.ZBtoA)
	if pos := e.model.Current(); pos != nil {
		evt = evt.Str("position", string(pos.Direction)).Int("held_ticks", pos.DurationTicks)
	} else if dir, since := e.debouncer.PendingEntry(); dir != "" {
		evt = evt.Str("pending_entry", string(dir)).Time("pending_since", since)
	}
	evt.Msg("tick")
}

// Stats exposes the session's closed-trade summary for shutdown logging.
func (e *Engine) Stats() position.Stats { return e.model.Stats() }

func (e *Engine) recordEvent(kind string, fields map[string]any) {
	if e.events != nil {
		e.events.Record(kind, fields)
	}
}
