// Package spread turns streaming two-venue quotes into exploitable
// spreads and exponentially weighted z-scores.
package spread

import (
	"math"
	"time"

	"spreadbot-go/internal/market"
)

const stdEpsilon = 1e-10

// Engine maintains two independent rolling spread histories, one per
// trade direction, and scores each new sample against its own history.
type Engine struct {
	window int
	decay  float64
	histAB []float64
	histBA []float64
}

// NewEngine builds an engine with the given rolling window and decay
// factor. Out-of-range inputs fall back to sane defaults.
func NewEngine(window int, decay float64) *Engine {
	if window < 2 {
		window = 60
	}
	if decay <= 0 || decay > 1 {
		decay = 0.95
	}
	return &Engine{
		window: window,
		decay:  decay,
		histAB: make([]float64, 0, window),
		histBA: make([]float64, 0, window),
	}
}

// Prime seeds both histories from previously recorded samples, oldest
// first, so the engine does not start cold after a restart.
func (e *Engine) Prime(ab, ba []float64) {
	for _, v := range ab {
		e.histAB = appendBounded(e.histAB, v, e.window)
	}
	for _, v := range ba {
		e.histBA = appendBounded(e.histBA, v, e.window)
	}
}

// Len returns the number of accumulated samples in the A-to-B history.
// Both histories grow in lockstep during normal operation.
func (e *Engine) Len() int { return len(e.histAB) }

// Update appends this tick's spreads to the histories and returns the
// snapshot for the tick. With fewer than two samples the z-scores are 0,
// a degenerate but defined value callers must tolerate.
func (e *Engine) Update(quoteA, quoteB market.Quote, now time.Time) market.SpreadSnapshot {
	ab := quoteA.Bid - quoteB.Ask
	ba := quoteB.Bid - quoteA.Ask

	e.histAB = appendBounded(e.histAB, ab, e.window)
	e.histBA = appendBounded(e.histBA, ba, e.window)

	return market.SpreadSnapshot{
		SpreadAtoB: ab,
		SpreadBtoA: ba,
		ZAtoB:      zScore(ab, e.histAB, e.decay),
		ZBtoA:      zScore(ba, e.histBA, e.decay),
		Ts:         now,
	}
}

func appendBounded(hist []float64, v float64, window int) []float64 {
	hist = append(hist, v)
	if len(hist) > window {
		hist = hist[1:]
	}
	return hist
}

func zScore(sample float64, hist []float64, decay float64) float64 {
	if len(hist) < 2 {
		return 0
	}
	mean, std := weightedMoments(hist, decay)
	return (sample - mean) / std
}

// weightedMoments computes the exponentially weighted mean and standard
// deviation of values. The i-th oldest of n samples carries weight
// decay^(n-1-i), normalized so the weights sum to 1. A near-zero std is
// clamped to 1.0 so z-scores stay finite on flat histories.
func weightedMoments(values []float64, decay float64) (mean, std float64) {
	n := len(values)
	if n == 0 {
		return 0, 1
	}

	weights := make([]float64, n)
	var sum float64
	for i := range values {
		w := math.Pow(decay, float64(n-1-i))
		weights[i] = w
		sum += w
	}
	for i := range weights {
		weights[i] /= sum
	}

	for i, v := range values {
		mean += weights[i] * v
	}

	var variance float64
	for i, v := range values {
		d := v - mean
		variance += weights[i] * d * d
	}
	std = math.Sqrt(variance)
	if std < stdEpsilon {
		std = 1.0
	}
	return mean, std
}
