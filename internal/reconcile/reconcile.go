// Package reconcile aligns the virtual position with what the venues
// actually hold. It observes and adopts; it never places orders.
package reconcile

import (
	"context"
	"math"
	"time"

	"spreadbot-go/internal/market"
	"spreadbot-go/internal/metrics"
	"spreadbot-go/internal/position"
	"spreadbot-go/internal/venue"

	"github.com/rs/zerolog"
)

// Reconciler periodically compares venue exposure against the local
// position model and repairs the model when they disagree.
type Reconciler struct {
	gateway venue.OrderGateway
	model   *position.Model
	log     zerolog.Logger
	token   string
	venueA  market.Venue
	venueB  market.Venue
}

func New(gateway venue.OrderGateway, model *position.Model, token string, venueA, venueB market.Venue, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		gateway: gateway,
		model:   model,
		log:     log,
		token:   token,
		venueA:  venueA,
		venueB:  venueB,
	}
}

type exposureResult struct {
	exp  venue.Exposure
	open bool
	err  error
}

// Reconcile fetches both venues' open positions concurrently and
// applies one of three outcomes: adopt venue exposure the model does
// not know about, clear a virtual position no venue backs, or nothing.
// A fetch error on either venue skips the cycle; stale local state is
// safer than state rewritten from a partial view.
func (r *Reconciler) Reconcile(ctx context.Context, snap market.SpreadSnapshot, now time.Time, tick int) {
	chA := make(chan exposureResult, 1)
	chB := make(chan exposureResult, 1)
	go func() {
		exp, open, err := r.gateway.GetOpenPosition(ctx, r.venueA, r.token)
		chA <- exposureResult{exp, open, err}
	}()
	go func() {
		exp, open, err := r.gateway.GetOpenPosition(ctx, r.venueB, r.token)
		chB <- exposureResult{exp, open, err}
	}()
	resA, resB := <-chA, <-chB

	if resA.err != nil || resB.err != nil {
		r.log.Warn().AnErr("venue_a", resA.err).AnErr("venue_b", resB.err).Msg("reconcile skipped: venue query failed")
		return
	}

	venueHeld := resA.open || resB.open
	local := r.model.Current()

	switch {
	case venueHeld && local == nil:
		dir, heuristic := inferDirection(resA, resB, snap)
		sizeA := math.Abs(resA.exp.Size)
		sizeB := math.Abs(resB.exp.Size)
		r.model.Adopt(dir, snap, now, tick, sizeA, sizeB, heuristic)
		metrics.ReconcileAdoptions.Inc()
		metrics.PositionOpen.Set(1)
		r.log.Warn().
			Str("direction", string(dir)).
			Bool("heuristic", heuristic).
			Float64("size_a", sizeA).
			Float64("size_b", sizeB).
			Msg("adopted position found on venues")

	case !venueHeld && local != nil && local.Status == position.StatusOpen:
		r.model.Clear()
		metrics.ReconcileClears.Inc()
		metrics.PositionOpen.Set(0)
		r.log.Warn().Str("direction", string(local.Direction)).Msg("cleared virtual position: venues are flat")
	}
}

// inferDirection derives the trade direction from the sign of each
// venue's exposure. A short on A or a long on B means we sold the
// spread A-to-B. When neither venue reports a usable sign, fall back
// to the currently wider z-score and flag the adoption.
func inferDirection(resA, resB exposureResult, snap market.SpreadSnapshot) (market.Direction, bool) {
	switch {
	case resA.open && resA.exp.Size < 0, resB.open && resB.exp.Size > 0:
		return market.SellABuyB, false
	case resA.open && resA.exp.Size > 0, resB.open && resB.exp.Size < 0:
		return market.SellBBuyA, false
	}
	if snap.ZAtoB >= snap.ZBtoA {
		return market.SellABuyB, true
	}
	return market.SellBBuyA, true
}
