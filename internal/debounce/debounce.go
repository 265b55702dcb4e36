// Package debounce converts instantaneous z-score readings into
// confirmed enter/exit decisions that must persist before they act,
// filtering out single-tick noise such as one large order briefly moving
// a venue's book.
package debounce

import (
	"math"
	"time"

	"spreadbot-go/internal/market"
	"spreadbot-go/internal/position"
)

// Params are the strategy thresholds, immutable per run.
type Params struct {
	EntryThreshold    float64
	ExitThreshold     float64
	StopLossThreshold float64
	MinSpreadFilter   float64
	MinSignalDuration time.Duration
	MaxHold           time.Duration
}

// Debouncer tracks pending entry and exit signals across ticks. It owns
// its timers exclusively; nothing else mutates them.
type Debouncer struct {
	params Params

	pendingDirection market.Direction
	pendingSince     time.Time

	pendingExitReason market.ExitReason
	pendingExitSince  time.Time
}

// New builds a debouncer around the given thresholds.
func New(params Params) *Debouncer {
	return &Debouncer{params: params}
}

// CheckEntry updates the pending-entry timer from this tick's snapshot
// and reports whether an entry is confirmed. Only called while no
// position is open. A direction is a candidate when it is both
// statistically significant (z-score at threshold) and economically
// significant (absolute spread above the floor); a high z-score on a
// tiny spread must not trigger entry.
func (d *Debouncer) CheckEntry(snap market.SpreadSnapshot, now time.Time) (market.Direction, bool) {
	okAB := snap.ZAtoB >= d.params.EntryThreshold && math.Abs(snap.SpreadAtoB) >= d.params.MinSpreadFilter
	okBA := snap.ZBtoA >= d.params.EntryThreshold && math.Abs(snap.SpreadBtoA) >= d.params.MinSpreadFilter

	var candidate market.Direction
	switch {
	case okAB && okBA:
		// Both sides qualify; the dominant z wins.
		if snap.ZAtoB >= snap.ZBtoA {
			candidate = market.SellABuyB
		} else {
			candidate = market.SellBBuyA
		}
	case okAB:
		candidate = market.SellABuyB
	case okBA:
		candidate = market.SellBBuyA
	default:
		d.resetEntry()
		return "", false
	}

	if candidate != d.pendingDirection || d.pendingSince.IsZero() {
		d.pendingDirection = candidate
		d.pendingSince = now
		return "", false
	}

	if now.Sub(d.pendingSince) >= d.params.MinSignalDuration {
		d.resetEntry()
		return candidate, true
	}
	return "", false
}

// PendingEntry exposes the current candidate and its start time, for
// tick-summary logging.
func (d *Debouncer) PendingEntry() (market.Direction, time.Time) {
	return d.pendingDirection, d.pendingSince
}

// CheckExit evaluates exit conditions for the open position, in priority
// order. Inversion and max-hold fire immediately; stop-loss and
// convergence must persist for the minimum signal duration with an
// unchanged reason. suppressInversion disables the inversion check during
// the grace window after a reconciliation adoption, when the entry
// spread snapshot is too noisy to trust a sign comparison.
func (d *Debouncer) CheckExit(pos *position.Position, snap market.SpreadSnapshot, now time.Time, suppressInversion bool) (market.ExitReason, bool) {
	if pos == nil {
		return "", false
	}

	if !suppressInversion && signFlipped(pos.EntrySpread(), snap.Spread(pos.Direction)) {
		d.resetExit()
		return market.ExitInversion, true
	}

	if d.params.MaxHold > 0 && now.Sub(pos.EntryTime) >= d.params.MaxHold {
		d.resetExit()
		return market.ExitMaxHold, true
	}

	z := snap.Z(pos.Direction)
	var candidate market.ExitReason
	switch {
	case z >= d.params.StopLossThreshold:
		candidate = market.ExitStopLoss
	case z <= d.params.ExitThreshold:
		candidate = market.ExitConvergence
	}

	if candidate == "" {
		d.resetExit()
		return "", false
	}

	if candidate != d.pendingExitReason || d.pendingExitSince.IsZero() {
		d.pendingExitReason = candidate
		d.pendingExitSince = now
		return "", false
	}

	if now.Sub(d.pendingExitSince) >= d.params.MinSignalDuration {
		d.resetExit()
		return candidate, true
	}
	return "", false
}

// Reset clears both pending timers, used when the position slot changes
// out from under the debouncer (reconciliation adoptions and clears).
func (d *Debouncer) Reset() {
	d.resetEntry()
	d.resetExit()
}

func (d *Debouncer) resetEntry() {
	d.pendingDirection = ""
	d.pendingSince = time.Time{}
}

func (d *Debouncer) resetExit() {
	d.pendingExitReason = ""
	d.pendingExitSince = time.Time{}
}

func signFlipped(entry, live float64) bool {
	return (entry > 0 && live < 0) || (entry < 0 && live > 0)
}
