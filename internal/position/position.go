// Package position owns the coordinator's single-slot virtual position
// and the append-only history of closed trades.
package position

import (
	"errors"
	"time"

	"spreadbot-go/internal/market"
)

// Status tracks where the virtual position sits in its lifecycle.
type Status string

const (
	StatusNone         Status = "none"
	StatusPendingEntry Status = "pending_entry"
	StatusOpen         Status = "open"
	StatusPendingExit  Status = "pending_exit"
)

// ErrPositionExists is returned when an entry is attempted while a
// position already occupies the slot.
var ErrPositionExists = errors.New("position already exists")

// Position is the coordinator's intended exposure, held independently of
// venue confirmation latency.
type Position struct {
	Direction       market.Direction
	EntryTime       time.Time
	EntrySpreadAtoB float64
	EntrySpreadBtoA float64
	EntryZ          float64
	Status          Status
	DurationTicks   int
	SizeA           float64
	SizeB           float64

	// SyncedAtTick is the tick this position was adopted from venue
	// state, or -1 when it was opened by the coordinator itself.
	SyncedAtTick int
	// Flagged marks positions needing operator attention: adopted via
	// the direction heuristic or left half-closed by a failed exit.
	Flagged bool
}

// EntrySpread returns the exploitable spread captured at entry for the
// position's own direction.
func (p *Position) EntrySpread() float64 {
	if p.Direction == market.SellABuyB {
		return p.EntrySpreadAtoB
	}
	return p.EntrySpreadBtoA
}

// Trade is a frozen snapshot of a completed position. Never mutated
// after creation.
type Trade struct {
	Direction     market.Direction  `json:"direction"`
	EntryTime     time.Time         `json:"entry_time"`
	ExitTime      time.Time         `json:"exit_time"`
	EntrySpread   float64           `json:"entry_spread"`
	ExitSpread    float64           `json:"exit_spread"`
	PnL           float64           `json:"pnl"`
	Reason        market.ExitReason `json:"reason"`
	DurationTicks int               `json:"duration_ticks"`
}

// Stats aggregates the closed-trade history.
type Stats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      float64
	AvgPnL        float64
	WinRate       float64
	AvgDuration   float64
}

// Model is the single-writer state machine for the virtual position.
// The execution coordinator drives lifecycle transitions; reconciliation
// may adopt or clear the slot to track venue truth.
type Model struct {
	current *Position
	trades  []Trade
}

// NewModel returns an empty model.
func NewModel() *Model { return &Model{} }

// Current returns the live position, or nil when the slot is empty.
func (m *Model) Current() *Position { return m.current }

// BeginEntry reserves the slot for a new position in the given
// direction. It is rejected while any position exists.
func (m *Model) BeginEntry(dir market.Direction, snap market.SpreadSnapshot, now time.Time) (*Position, error) {
	if m.current != nil {
		return nil, ErrPositionExists
	}
	m.current = &Position{
		Direction:       dir,
		EntryTime:       now,
		EntrySpreadAtoB: snap.SpreadAtoB,
		EntrySpreadBtoA: snap.SpreadBtoA,
		EntryZ:          snap.Z(dir),
		Status:          StatusPendingEntry,
		SyncedAtTick:    -1,
	}
	return m.current, nil
}

// ConfirmEntry promotes a pending entry to open once both legs filled.
func (m *Model) ConfirmEntry(sizeA, sizeB float64) {
	if m.current == nil || m.current.Status != StatusPendingEntry {
		return
	}
	m.current.SizeA = sizeA
	m.current.SizeB = sizeB
	m.current.Status = StatusOpen
}

// AbortEntry releases the slot after a failed or partially failed open.
func (m *Model) AbortEntry() {
	if m.current != nil && m.current.Status == StatusPendingEntry {
		m.current = nil
	}
}

// BeginExit marks the open position as closing while legs are in flight.
func (m *Model) BeginExit() {
	if m.current != nil && m.current.Status == StatusOpen {
		m.current.Status = StatusPendingExit
	}
}

// ReopenAfterFailedExit returns a pending-exit position to open and
// flags it. A half-closed position must never be silently assumed
// closed.
func (m *Model) ReopenAfterFailedExit() {
	if m.current != nil && m.current.Status == StatusPendingExit {
		m.current.Status = StatusOpen
		m.current.Flagged = true
	}
}

// Close freezes the position into a Trade and empties the slot. PnL is
// the sum of the entry cash-flow and the reverse-direction cash-flow at
// close: the position is unwound through the opposite leg pairing, not
// by re-crossing the entry spread.
func (m *Model) Close(reason market.ExitReason, snap market.SpreadSnapshot, now time.Time) (Trade, bool) {
	if m.current == nil {
		return Trade{}, false
	}
	p := m.current
	exitSpread := snap.Spread(p.Direction.Opposite())
	trade := Trade{
		Direction:     p.Direction,
		EntryTime:     p.EntryTime,
		ExitTime:      now,
		EntrySpread:   p.EntrySpread(),
		ExitSpread:    exitSpread,
		PnL:           p.EntrySpread() + exitSpread,
		Reason:        reason,
		DurationTicks: p.DurationTicks,
	}
	m.trades = append(m.trades, trade)
	m.current = nil
	return trade, true
}

// Adopt synthesizes a position from venue-reported exposure found during
// reconciliation. The adopted position starts open and remembers the
// tick it was synchronized so exit checks can apply a grace window.
func (m *Model) Adopt(dir market.Direction, snap market.SpreadSnapshot, now time.Time, tick int, sizeA, sizeB float64, heuristic bool) *Position {
	m.current = &Position{
		Direction:       dir,
		EntryTime:       now,
		EntrySpreadAtoB: snap.SpreadAtoB,
		EntrySpreadBtoA: snap.SpreadBtoA,
		EntryZ:          snap.Z(dir),
		Status:          StatusOpen,
		SizeA:           sizeA,
		SizeB:           sizeB,
		SyncedAtTick:    tick,
		Flagged:         heuristic,
	}
	return m.current
}

// Clear empties the slot without recording a trade. Used when venue
// state shows the position was already closed out-of-band.
func (m *Model) Clear() { m.current = nil }

// Tick advances the duration counter of an open position.
func (m *Model) Tick() {
	if m.current != nil && m.current.Status == StatusOpen {
		m.current.DurationTicks++
	}
}

// Trades returns a copy of the closed-trade history.
func (m *Model) Trades() []Trade {
	out := make([]Trade, len(m.trades))
	copy(out, m.trades)
	return out
}

// Stats summarizes the closed-trade history.
func (m *Model) Stats() Stats {
	s := Stats{TotalTrades: len(m.trades)}
	if s.TotalTrades == 0 {
		return s
	}
	var durations float64
	for _, t := range m.trades {
		s.TotalPnL += t.PnL
		durations += float64(t.DurationTicks)
		if t.PnL > 0 {
			s.WinningTrades++
		} else {
			s.LosingTrades++
		}
	}
	s.AvgPnL = s.TotalPnL / float64(s.TotalTrades)
	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	s.AvgDuration = durations / float64(s.TotalTrades)
	return s
}
