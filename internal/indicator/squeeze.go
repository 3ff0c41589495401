package indicator

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/skswe/tenxsqueeze/internal/signal"
)

// SqueezeTier ranks how far inside the Keltner channel the Bollinger bands sit.
// Higher values mean a tighter squeeze; the zero value is Undefined.
type SqueezeTier int

const (
	SqueezeUndefined SqueezeTier = iota
	SqueezeNone
	SqueezeLow
	SqueezeMedium
	SqueezeHigh
)

func (t SqueezeTier) String() string {
	switch t {
	case SqueezeNone:
		return "none"
	case SqueezeLow:
		return "low"
	case SqueezeMedium:
		return "medium"
	case SqueezeHigh:
		return "high"
	default:
		return "undefined"
	}
}

// Defined reports whether enough history was available to classify the bar.
func (t SqueezeTier) Defined() bool { return t != SqueezeUndefined }

// SqueezeParams configures the Bollinger/Keltner comparison.
type SqueezeParams struct {
	BBPeriod       int     `yaml:"bb_period"`
	BBMult         float64 `yaml:"bb_mult"`
	KCPeriod       int     `yaml:"kc_period"`
	ATRPeriod      int     `yaml:"atr_period"`
	KCMultLow      float64 `yaml:"kc_mult_low"`
	KCMultMid      float64 `yaml:"kc_mult_mid"`
	KCMultHigh     float64 `yaml:"kc_mult_high"`
	MomentumPeriod int     `yaml:"momentum_period"`
}

// DefaultSqueezeParams mirrors the SqueezePro defaults.
func DefaultSqueezeParams() SqueezeParams {
	return SqueezeParams{
		BBPeriod:       20,
		BBMult:         2,
		KCPeriod:       20,
		ATRPeriod:      10,
		KCMultLow:      2,
		KCMultMid:      1.5,
		KCMultHigh:     1,
		MomentumPeriod: 20,
	}
}

// Validate rejects non-positive periods and multipliers and tier multipliers that are not ordered low >= mid >= high.
func (p SqueezeParams) Validate() error {
	switch {
	case p.BBPeriod <= 0:
		return fmt.Errorf("%w: bb_period must be positive, got %d", ErrInvalidConfig, p.BBPeriod)
	case p.KCPeriod <= 0:
		return fmt.Errorf("%w: kc_period must be positive, got %d", ErrInvalidConfig, p.KCPeriod)
	case p.ATRPeriod <= 0:
		return fmt.Errorf("%w: atr_period must be positive, got %d", ErrInvalidConfig, p.ATRPeriod)
	case p.MomentumPeriod < 2:
		return fmt.Errorf("%w: momentum_period must be at least 2, got %d", ErrInvalidConfig, p.MomentumPeriod)
	case p.BBMult <= 0:
		return fmt.Errorf("%w: bb_mult must be positive, got %v", ErrInvalidConfig, p.BBMult)
	case p.KCMultLow <= 0 || p.KCMultMid <= 0 || p.KCMultHigh <= 0:
		return fmt.Errorf("%w: keltner multipliers must be positive", ErrInvalidConfig)
	case p.KCMultLow < p.KCMultMid || p.KCMultMid < p.KCMultHigh:
		return fmt.Errorf("%w: keltner multipliers must satisfy low >= mid >= high (%v, %v, %v)",
			ErrInvalidConfig, p.KCMultLow, p.KCMultMid, p.KCMultHigh)
	}
	return nil
}

// SqueezeReading is the per-bar output of the squeeze classifier.
type SqueezeReading struct {
	Tier    SqueezeTier
	BBUpper float64
	BBBasis float64
	BBLower float64
	KCBasis float64
	ATR     float64
	// InChannel is true when the close sits inside the high-tier Keltner channel.
	InChannel bool
	// Momentum is only meaningful when MomentumOK is set; it needs a longer warmup than the tier.
	Momentum   float64
	MomentumOK bool
}

// KCUpper returns the upper Keltner band for a multiplier.
func (r SqueezeReading) KCUpper(mult float64) float64 { return r.KCBasis + mult*r.ATR }

// KCLower returns the lower Keltner band for a multiplier.
func (r SqueezeReading) KCLower(mult float64) float64 { return r.KCBasis - mult*r.ATR }

// Squeeze classifies bars into SqueezeTier values.
type Squeeze struct {
	p SqueezeParams
}

// NewSqueeze validates params and returns a classifier.
func NewSqueeze(p SqueezeParams) (*Squeeze, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Squeeze{p: p}, nil
}

// Params returns the configuration the classifier was built with.
func (s *Squeeze) Params() SqueezeParams { return s.p }

// MinBars is the shortest window that yields a defined tier.
func (s *Squeeze) MinBars() int {
	return max(s.p.BBPeriod, s.p.KCPeriod, s.p.ATRPeriod+1)
}

// ClassifySqueeze maps band values to a tier by comparing the Bollinger half-width with the
// Keltner half-width mult*ATR at each tier. Narrower Bollinger bands never rank lower.
func ClassifySqueeze(bbUpper, bbLower, atr float64, p SqueezeParams) SqueezeTier {
	if !finite(bbUpper, bbLower, atr) {
		return SqueezeUndefined
	}
	half := (bbUpper - bbLower) / 2
	switch {
	case half <= p.KCMultHigh*atr:
		return SqueezeHigh
	case half <= p.KCMultMid*atr:
		return SqueezeMedium
	case half <= p.KCMultLow*atr:
		return SqueezeLow
	default:
		return SqueezeNone
	}
}

// Series returns one reading per bar.
func (s *Squeeze) Series(bars []signal.Bar) []SqueezeReading {
	return seriesByRun(bars, s.MinBars(), s.series)
}

func (s *Squeeze) series(bars []signal.Bar) []SqueezeReading {
	out := make([]SqueezeReading, len(bars))

	closes, highs, lows := Closes(bars), Highs(bars), Lows(bars)
	bbUpper, bbBasis, bbLower := talib.BBands(closes, s.p.BBPeriod, s.p.BBMult, s.p.BBMult, talib.SMA)
	kcBasis := talib.Sma(closes, s.p.KCPeriod)
	atr := talib.Atr(highs, lows, closes, s.p.ATRPeriod)
	mom, momStart := s.momentum(closes, highs, lows)

	for i := s.MinBars() - 1; i < len(bars); i++ {
		r := SqueezeReading{
			BBUpper: bbUpper[i],
			BBBasis: bbBasis[i],
			BBLower: bbLower[i],
			KCBasis: kcBasis[i],
			ATR:     atr[i],
		}
		r.Tier = ClassifySqueeze(r.BBUpper, r.BBLower, r.ATR, s.p)
		r.InChannel = closes[i] >= r.KCLower(s.p.KCMultHigh) && closes[i] <= r.KCUpper(s.p.KCMultHigh)
		if momStart >= 0 && i >= momStart && finite(mom[i]) {
			r.Momentum = mom[i]
			r.MomentumOK = true
		}
		out[i] = r
	}
	return out
}

// Classify returns the reading for the newest bar.
func (s *Squeeze) Classify(bars []signal.Bar) SqueezeReading {
	if len(bars) < s.MinBars() {
		return SqueezeReading{}
	}
	series := s.Series(bars)
	return series[len(series)-1]
}

// GoodMomentum latches on once momentum has crossed zero between the two previous bars and
// releases after |momentum| shrinks on two consecutive bars. Bars lacking three defined
// momentum values read false and clear the latch.
func GoodMomentum(readings []SqueezeReading) []bool {
	out := make([]bool, len(readings))
	on := false
	for i := 2; i < len(readings); i++ {
		m0, m1, m2 := readings[i], readings[i-1], readings[i-2]
		if !m0.MomentumOK || !m1.MomentumOK || !m2.MomentumOK {
			on = false
			continue
		}
		switch {
		case m1.Momentum*m2.Momentum <= 0:
			on = true
		case math.Abs(m0.Momentum) < math.Abs(m1.Momentum) && math.Abs(m1.Momentum) < math.Abs(m2.Momentum):
			on = false
		}
		out[i] = on
	}
	return out
}

// momentum is the linear regression of close minus the average of the Donchian midline and the SMA.
// It returns the series aligned to bars and the first valid index, or -1 when the window is too short.
func (s *Squeeze) momentum(closes, highs, lows []float64) ([]float64, int) {
	n := s.p.MomentumPeriod
	out := make([]float64, len(closes))
	if len(closes) < 2*n-1 {
		return out, -1
	}
	hh := talib.Max(highs, n)
	ll := talib.Min(lows, n)
	sma := talib.Sma(closes, n)

	delta := make([]float64, 0, len(closes)-n+1)
	for i := n - 1; i < len(closes); i++ {
		avg := ((hh[i]+ll[i])/2 + sma[i]) / 2
		delta = append(delta, closes[i]-avg)
	}
	reg := talib.LinearReg(delta, n)
	for j := n - 1; j < len(reg); j++ {
		out[j+n-1] = reg[j]
	}
	return out, 2*n - 2
}
