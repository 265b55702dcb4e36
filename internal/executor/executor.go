// Package executor turns confirmed signals into two-leg orders and keeps
// the virtual position in step with what the venues actually filled.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spreadbot-go/internal/market"
	"spreadbot-go/internal/metrics"
	"spreadbot-go/internal/position"
	"spreadbot-go/internal/venue"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNotionalLimit rejects entries whose notional exceeds the configured cap.
var ErrNotionalLimit = errors.New("executor: notional above per-trade limit")

// Limits bounds what a single trade may commit.
type Limits struct {
	MaxNotionalPerTrade float64
}

// Allow reports whether a trade of the given notional is within limits.
// A zero limit means unbounded.
func (l Limits) Allow(notional float64) bool {
	return l.MaxNotionalPerTrade <= 0 || notional <= l.MaxNotionalPerTrade
}

// LegResult records the outcome of a single leg order.
type LegResult struct {
	Venue market.Venue
	Res   venue.OrderResult
	Err   error
}

// Coordinator places the two legs of a spread trade and applies the
// outcome to the position model. It never retries and never places
// corrective orders on a partial fill.
type Coordinator struct {
	gateway  venue.OrderGateway
	model    *position.Model
	log      zerolog.Logger
	token    string
	venueA   market.Venue
	venueB   market.Venue
	margin   float64
	leverage float64
	stepA    decimal.Decimal
	stepB    decimal.Decimal
	timeout  time.Duration
	limits   Limits
}

// Config carries the knobs a Coordinator needs.
type Config struct {
	Token      string
	VenueA     market.Venue
	VenueB     market.Venue
	Margin     float64
	Leverage   float64
	SizeStepA  float64
	SizeStepB  float64
	LegTimeout time.Duration
	Limits     Limits
}

// New builds a Coordinator. Zero steps fall back to 0.001 and a zero
// timeout to 10s.
func New(gateway venue.OrderGateway, model *position.Model, cfg Config, log zerolog.Logger) *Coordinator {
	if cfg.SizeStepA <= 0 {
		cfg.SizeStepA = 0.001
	}
	if cfg.SizeStepB <= 0 {
		cfg.SizeStepB = 0.001
	}
	if cfg.LegTimeout <= 0 {
		cfg.LegTimeout = 10 * time.Second
	}
	return &Coordinator{
		gateway:  gateway,
		model:    model,
		log:      log,
		token:    cfg.Token,
		venueA:   cfg.VenueA,
		venueB:   cfg.VenueB,
		margin:   cfg.Margin,
		leverage: cfg.Leverage,
		stepA:    decimal.NewFromFloat(cfg.SizeStepA),
		stepB:    decimal.NewFromFloat(cfg.SizeStepB),
		timeout:  cfg.LegTimeout,
		limits:   cfg.Limits,
	}
}

// sizeFor converts margin and leverage into a base-asset size at the
// given mid price, rounded down to the venue's step.
func sizeFor(notional, mid float64, step decimal.Decimal) (float64, error) {
	if mid <= 0 {
		return 0, fmt.Errorf("executor: non-positive mid %v", mid)
	}
	raw := decimal.NewFromFloat(notional / mid)
	size := raw.Div(step).Floor().Mul(step)
	out, _ := size.Float64()
	if out <= 0 {
		return 0, fmt.Errorf("executor: size rounds to zero at mid %v step %s", mid, step)
	}
	return out, nil
}

// OpenPosition reserves the position slot, sizes and dispatches both
// legs concurrently, and confirms or aborts based on the fills. A
// partial fill leaves real exposure on one venue; the coordinator
// alerts and abandons the virtual position rather than guessing at a
// corrective order.
func (c *Coordinator) OpenPosition(ctx context.Context, dir market.Direction, snap market.SpreadSnapshot, quoteA, quoteB market.Quote, now time.Time) error {
	notional := c.margin * c.leverage
	if !c.limits.Allow(notional) {
		return ErrNotionalLimit
	}

	sizeA, err := sizeFor(notional, quoteA.Mid(), c.stepA)
	if err != nil {
		return err
	}
	sizeB, err := sizeFor(notional, quoteB.Mid(), c.stepB)
	if err != nil {
		return err
	}

	if _, err := c.model.BeginEntry(dir, snap, now); err != nil {
		return err
	}

	sideA, sideB := dir.LegSides()
	resA, resB := c.dispatchLegs(ctx,
		venue.OrderRequest{Venue: c.venueA, Token: c.token, Side: sideA, Size: sizeA, Leverage: int(c.leverage)},
		venue.OrderRequest{Venue: c.venueB, Token: c.token, Side: sideB, Size: sizeB, Leverage: int(c.leverage)},
	)

	switch {
	case resA.Err == nil && resB.Err == nil:
		c.model.ConfirmEntry(resA.Res.FilledSize, resB.Res.FilledSize)
		metrics.PositionOpen.Set(1)
		c.log.Info().
			Str("direction", string(dir)).
			Float64("size_a", resA.Res.FilledSize).
			Float64("size_b", resB.Res.FilledSize).
			Float64("z", snap.Z(dir)).
			Msg("position opened")
		return nil
	case resA.Err != nil && resB.Err != nil:
		c.model.AbortEntry()
		return fmt.Errorf("executor: both legs failed: %s: %v; %s: %v", c.venueA, resA.Err, c.venueB, resB.Err)
	default:
		c.alertPartial("entry", resA, resB)
		c.model.AbortEntry()
		return fmt.Errorf("executor: partial entry fill, manual intervention required")
	}
}

// ClosePosition dispatches the two closing legs (sides mirrored from
// entry, sizes taken from the recorded fills). If either leg fails the
// virtual position is reopened and flagged so the next tick retries.
func (c *Coordinator) ClosePosition(ctx context.Context, reason market.ExitReason, snap market.SpreadSnapshot, now time.Time) (position.Trade, error) {
	pos := c.model.Current()
	if pos == nil || pos.Status != position.StatusOpen {
		return position.Trade{}, errors.New("executor: no open position to close")
	}
	c.model.BeginExit()

	sideA, sideB := pos.Direction.Opposite().LegSides()
	resA, resB := c.dispatchLegs(ctx,
		venue.OrderRequest{Venue: c.venueA, Token: c.token, Side: sideA, Size: pos.SizeA, Leverage: int(c.leverage)},
		venue.OrderRequest{Venue: c.venueB, Token: c.token, Side: sideB, Size: pos.SizeB, Leverage: int(c.leverage)},
	)

	if resA.Err != nil || resB.Err != nil {
		if (resA.Err == nil) != (resB.Err == nil) {
			c.alertPartial("exit", resA, resB)
		}
		c.model.ReopenAfterFailedExit()
		return position.Trade{}, fmt.Errorf("executor: exit failed (%s: %v; %s: %v), position reopened",
			c.venueA, resA.Err, c.venueB, resB.Err)
	}

	trade, _ := c.model.Close(reason, snap, now)
	metrics.PositionOpen.Set(0)
	c.log.Info().
		Str("direction", string(trade.Direction)).
		Str("reason", string(reason)).
		Float64("pnl", trade.PnL).
		Int("ticks_held", trade.DurationTicks).
		Msg("position closed")
	return trade, nil
}

// dispatchLegs fires both orders concurrently, each under its own
// timeout, and waits for both outcomes.
func (c *Coordinator) dispatchLegs(ctx context.Context, reqA, reqB venue.OrderRequest) (LegResult, LegResult) {
	chA := make(chan LegResult, 1)
	chB := make(chan LegResult, 1)
	go c.placeLeg(ctx, reqA, chA)
	go c.placeLeg(ctx, reqB, chB)
	return <-chA, <-chB
}

func (c *Coordinator) placeLeg(ctx context.Context, req venue.OrderRequest, out chan<- LegResult) {
	legCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.gateway.PlaceOrder(legCtx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.LegsTotal.WithLabelValues(string(req.Venue), outcome).Inc()
	out <- LegResult{Venue: req.Venue, Res: res, Err: err}
}

func (c *Coordinator) alertPartial(phase string, resA, resB LegResult) {
	metrics.PartialFailures.Inc()
	filled, failed := resA, resB
	if resA.Err != nil {
		filled, failed = resB, resA
	}
	c.log.Error().
		Str("phase", phase).
		Str("filled_venue", string(filled.Venue)).
		Str("failed_venue", string(failed.Venue)).
		AnErr("leg_error", failed.Err).
		Msg("PARTIAL FILL: one leg live on venue, manual intervention required")
}
