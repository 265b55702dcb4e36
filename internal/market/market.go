// Package market standardizes the payloads shared between the quote,
// strategy, and execution layers.
package market

import "time"

// Venue identifies one of the two trading venues by its configured name.
type Venue string

// Side enumerates order directions used by the execution layer.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a short order.
	Sell Side = "SELL"
)

// Direction expresses which venue is sold and which is bought when the
// hedge is opened.
type Direction string

const (
	// SellABuyB sells on venue A and buys on venue B.
	SellABuyB Direction = "sell_a_buy_b"
	// SellBBuyA sells on venue B and buys on venue A.
	SellBBuyA Direction = "sell_b_buy_a"
)

// Opposite returns the reverse leg pairing, used when closing a position.
func (d Direction) Opposite() Direction {
	if d == SellABuyB {
		return SellBBuyA
	}
	return SellABuyB
}

// LegSides returns the order side for venue A and venue B when trading in d.
func (d Direction) LegSides() (sideA, sideB Side) {
	if d == SellABuyB {
		return Sell, Buy
	}
	return Buy, Sell
}

// ExitReason classifies why an open position is being closed.
type ExitReason string

const (
	// ExitInversion means the live spread flipped sign against the entry.
	ExitInversion ExitReason = "inversion"
	// ExitStopLoss means the divergence kept widening past the stop threshold.
	ExitStopLoss ExitReason = "stop_loss"
	// ExitConvergence means the z-score came back inside the exit threshold.
	ExitConvergence ExitReason = "convergence"
	// ExitMaxHold means the position hit its maximum holding time.
	ExitMaxHold ExitReason = "max_hold"
)

// Quote models one venue's current top of book for a token.
type Quote struct {
	Venue Venue
	Token string
	Bid   float64
	Ask   float64
	Ts    time.Time
}

// Mid returns the quote midpoint.
func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }

// Valid reports whether both sides of the book are usable. A one-sided
// quote must never feed a spread computation.
func (q Quote) Valid() bool { return q.Bid > 0 && q.Ask > 0 }

// SpreadSnapshot carries the two exploitable spreads and their z-scores
// for a single tick.
type SpreadSnapshot struct {
	SpreadAtoB float64 // bidA - askB, captured by SellABuyB
	SpreadBtoA float64 // bidB - askA, captured by SellBBuyA
	ZAtoB      float64
	ZBtoA      float64
	Ts         time.Time
}

// Spread returns the exploitable spread for the given direction.
func (s SpreadSnapshot) Spread(d Direction) float64 {
	if d == SellABuyB {
		return s.SpreadAtoB
	}
	return s.SpreadBtoA
}

// Z returns the z-score for the given direction.
func (s SpreadSnapshot) Z(d Direction) float64 {
	if d == SellABuyB {
		return s.ZAtoB
	}
	return s.ZBtoA
}
