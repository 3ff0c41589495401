package indicator

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"github.com/skswe/tenxsqueeze/internal/signal"
)

// StackState describes the ordering of a set of EMAs. The zero value is Undefined.
type StackState int

const (
	StackUndefined StackState = iota
	StackMixed
	StackBullish
	StackBearish
)

func (s StackState) String() string {
	switch s {
	case StackMixed:
		return "mixed"
	case StackBullish:
		return "stacked-bullish"
	case StackBearish:
		return "stacked-bearish"
	default:
		return "undefined"
	}
}

// Direction maps a stack to a signal direction; mixed and undefined are flat.
func (s StackState) Direction() signal.Direction {
	switch s {
	case StackBullish:
		return signal.Long
	case StackBearish:
		return signal.Short
	default:
		return signal.Flat
	}
}

// StackParams lists the EMA periods, shortest first.
type StackParams struct {
	Periods []int `yaml:"periods"`
}

// DefaultStackParams uses fibonacci lookbacks.
func DefaultStackParams() StackParams {
	return StackParams{Periods: []int{8, 13, 21, 34, 55}}
}

// Validate requires at least two strictly increasing positive periods.
func (p StackParams) Validate() error {
	if len(p.Periods) < 2 {
		return fmt.Errorf("%w: ema stack needs at least two periods, got %d", ErrInvalidConfig, len(p.Periods))
	}
	for i, period := range p.Periods {
		if period <= 0 {
			return fmt.Errorf("%w: ema period must be positive, got %d", ErrInvalidConfig, period)
		}
		if i > 0 && period <= p.Periods[i-1] {
			return fmt.Errorf("%w: ema periods must be strictly increasing (%v)", ErrInvalidConfig, p.Periods)
		}
	}
	return nil
}

// StackReading is the per-bar output of the EMA stack classifier. Values follow the period order.
type StackReading struct {
	State  StackState
	Values []float64
}

// Stack classifies EMA ordering.
type Stack struct {
	periods []int
}

// NewStack validates params and returns a classifier.
func NewStack(p StackParams) (*Stack, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	periods := make([]int, len(p.Periods))
	copy(periods, p.Periods)
	return &Stack{periods: periods}, nil
}

// Periods returns a copy of the configured periods.
func (s *Stack) Periods() []int {
	out := make([]int, len(s.periods))
	copy(out, s.periods)
	return out
}

// MinBars is the longest configured period.
func (s *Stack) MinBars() int { return s.periods[len(s.periods)-1] }

// ClassifyStack is bullish when values strictly decrease (short EMA on top), bearish when they strictly increase.
func ClassifyStack(values []float64) StackState {
	if len(values) < 2 || !finite(values...) {
		return StackUndefined
	}
	decreasing, increasing := true, true
	for i := 1; i < len(values); i++ {
		if !(values[i-1] > values[i]) {
			decreasing = false
		}
		if !(values[i-1] < values[i]) {
			increasing = false
		}
	}
	switch {
	case decreasing:
		return StackBullish
	case increasing:
		return StackBearish
	default:
		return StackMixed
	}
}

// Series returns one reading per bar.
func (s *Stack) Series(bars []signal.Bar) []StackReading {
	return seriesByRun(bars, s.MinBars(), s.series)
}

func (s *Stack) series(bars []signal.Bar) []StackReading {
	out := make([]StackReading, len(bars))

	closes := Closes(bars)
	emas := make([][]float64, len(s.periods))
	for j, period := range s.periods {
		emas[j] = talib.Ema(closes, period)
	}
	for i := s.MinBars() - 1; i < len(bars); i++ {
		values := make([]float64, len(s.periods))
		for j := range s.periods {
			values[j] = emas[j][i]
		}
		out[i] = StackReading{State: ClassifyStack(values), Values: values}
	}
	return out
}

// Classify returns the reading for the newest bar.
func (s *Stack) Classify(bars []signal.Bar) StackReading {
	if len(bars) < s.MinBars() {
		return StackReading{}
	}
	series := s.Series(bars)
	return series[len(series)-1]
}
