package venue

import (
	"context"
	"fmt"

	"spreadbot-go/internal/market"
)

// Pair routes OrderGateway calls to the correct per-venue client, so the
// executor and reconciler see a single gateway for both legs.
type Pair struct {
	venueA  market.Venue
	venueB  market.Venue
	clientA OrderGateway
	clientB OrderGateway
}

// NewPair combines two per-venue gateways.
func NewPair(venueA market.Venue, clientA OrderGateway, venueB market.Venue, clientB OrderGateway) *Pair {
	return &Pair{venueA: venueA, venueB: venueB, clientA: clientA, clientB: clientB}
}

func (p *Pair) route(v market.Venue) (OrderGateway, error) {
	switch v {
	case p.venueA:
		return p.clientA, nil
	case p.venueB:
		return p.clientB, nil
	default:
		return nil, fmt.Errorf("unknown venue %q", v)
	}
}

// PlaceOrder dispatches the leg to its venue's client.
func (p *Pair) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	gw, err := p.route(req.Venue)
	if err != nil {
		return OrderResult{}, err
	}
	return gw.PlaceOrder(ctx, req)
}

// GetOpenPosition queries the venue's client for real position state.
func (p *Pair) GetOpenPosition(ctx context.Context, v market.Venue, token string) (Exposure, bool, error) {
	gw, err := p.route(v)
	if err != nil {
		return Exposure{}, false, err
	}
	return gw.GetOpenPosition(ctx, v, token)
}
