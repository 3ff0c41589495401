// Package signal standardizes payloads shared between bar feeds, indicator engines and the execution layer.
package signal

import (
	"fmt"
	"time"
)

// Bar models one OHLCV trading interval consumed by the indicator engines.
type Bar struct {
	Symbol string
	Ts     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Direction is the side a signal leans towards.
type Direction int

const (
	Short Direction = -1
	Flat  Direction = 0
	Long  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// Opposite returns the mirrored direction; flat stays flat.
func (d Direction) Opposite() Direction { return -d }

// Grade qualifies how tight the squeeze was when a position-building signal fired.
type Grade int

const (
	GradeNone Grade = iota
	GradeWeak
	GradeStrong
)

func (g Grade) String() string {
	switch g {
	case GradeWeak:
		return "weak"
	case GradeStrong:
		return "strong"
	default:
		return "none"
	}
}

// Levels are the volatility bands measured on a signal's bar. The zero value means the
// squeeze was undefined there.
type Levels struct {
	ATR       float64
	InChannel bool
	// Stop bands are the mid-tier Keltner channel, target bands the low-tier one.
	StopUpper   float64
	StopLower   float64
	TargetUpper float64
	TargetLower float64
}

// Valid reports whether the bands were measured.
func (l Levels) Valid() bool { return l.ATR > 0 }

// Stop returns the protective level for a position in dir.
func (l Levels) Stop(dir Direction) float64 {
	if dir == Short {
		return l.StopUpper
	}
	return l.StopLower
}

// Target returns the profit level for a position in dir.
func (l Levels) Target(dir Direction) float64 {
	if dir == Short {
		return l.TargetLower
	}
	return l.TargetUpper
}

// Signal expresses a trading bias produced by a strategy implementation for a single bar.
type Signal struct {
	Symbol    string
	Strategy  string
	Direction Direction
	Strength  int // consecutive aligned bars, 0 when flat
	Grade     Grade
	Reason    string
	Ts        time.Time
	Levels    Levels
}

// Active reports whether the signal asks for exposure.
func (s Signal) Active() bool { return s.Direction != Flat }

// Score folds direction and strength into a single signed number (positive long bias, negative short bias).
func (s Signal) Score() float64 {
	strength := s.Strength
	if s.Direction != Flat && strength == 0 {
		strength = 1
	}
	return float64(int(s.Direction) * strength)
}

func (s Signal) String() string {
	if s.Direction == Flat {
		return fmt.Sprintf("%s %s flat", s.Symbol, s.Strategy)
	}
	return fmt.Sprintf("%s %s %s x%d (%s)", s.Symbol, s.Strategy, s.Direction, s.Strength, s.Grade)
}
