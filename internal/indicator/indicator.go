// Package indicator classifies rolling bar windows into squeeze, trend and EMA-stack states.
//
// Every classifier is configured once, is immutable afterwards and exposes two operations:
// Series, which returns one reading per bar of the window, and Classify, which returns the
// reading for the newest bar. A reading at index i only depends on bars[0..i]. Windows shorter
// than MinBars yield Undefined readings instead of errors.
package indicator

import (
	"errors"
	"math"

	"github.com/skswe/tenxsqueeze/internal/signal"
)

// ErrInvalidConfig is wrapped by every constructor that rejects its parameters.
var ErrInvalidConfig = errors.New("invalid indicator configuration")

// Closes extracts close prices from bars.
func Closes(bars []signal.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts high prices from bars.
func Highs(bars []signal.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts low prices from bars.
func Lows(bars []signal.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func barOK(b signal.Bar) bool {
	return finite(b.Open, b.High, b.Low, b.Close) && b.High >= b.Low
}

// cleanRuns returns the [start, end) bounds of each maximal run of well-formed bars.
func cleanRuns(bars []signal.Bar) [][2]int {
	var runs [][2]int
	start := -1
	for i, b := range bars {
		switch {
		case barOK(b) && start < 0:
			start = i
		case !barOK(b) && start >= 0:
			runs = append(runs, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, [2]int{start, len(bars)})
	}
	return runs
}

// seriesByRun evaluates fn on every clean run of at least minBars bars. A NaN/Inf or inverted
// bar is Undefined and restarts the warmup, so readings before it never change.
func seriesByRun[R any](bars []signal.Bar, minBars int, fn func([]signal.Bar) []R) []R {
	out := make([]R, len(bars))
	for _, run := range cleanRuns(bars) {
		if run[1]-run[0] < minBars {
			continue
		}
		copy(out[run[0]:run[1]], fn(bars[run[0]:run[1]]))
	}
	return out
}
