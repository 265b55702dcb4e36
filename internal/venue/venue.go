// Package venue hosts the adapter contracts for the two trading venues
// and the concrete REST/websocket/stub implementations. Any
// venue-specific ambiguity is resolved here, at the boundary, never in
// strategy logic.
package venue

import (
	"context"

	"spreadbot-go/internal/market"
)

// QuoteSource supplies the current top of book for a token on one venue.
// Implementations must return both sides or fail explicitly.
type QuoteSource interface {
	GetQuote(ctx context.Context, token string) (market.Quote, error)
}

// OrderRequest describes one leg placement.
type OrderRequest struct {
	Venue    market.Venue
	Token    string
	Side     market.Side
	Size     float64
	Leverage int
}

// OrderResult is the venue's acknowledgement of a placed leg.
type OrderResult struct {
	OrderID    string
	FilledSize float64
}

// Exposure is a venue-reported open position. Size is signed: negative
// means short.
type Exposure struct {
	Size       float64
	EntryPrice float64
}

// OrderGateway places orders and reports real position state on one or
// both venues. GetOpenPosition's boolean is false when the venue reports
// no open position for the token.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	GetOpenPosition(ctx context.Context, v market.Venue, token string) (Exposure, bool, error)
}
