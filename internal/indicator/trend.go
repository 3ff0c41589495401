package indicator

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"github.com/skswe/tenxsqueeze/internal/signal"
)

// TrendDirection is the ADX/DMI classification of a bar. The zero value is Undefined.
type TrendDirection int

const (
	TrendUndefined TrendDirection = iota
	TrendSideways
	TrendBullish
	TrendBearish
)

func (d TrendDirection) String() string {
	switch d {
	case TrendSideways:
		return "sideways"
	case TrendBullish:
		return "bullish"
	case TrendBearish:
		return "bearish"
	default:
		return "undefined"
	}
}

// Direction maps a trend to a signal direction; sideways and undefined are flat.
func (d TrendDirection) Direction() signal.Direction {
	switch d {
	case TrendBullish:
		return signal.Long
	case TrendBearish:
		return signal.Short
	default:
		return signal.Flat
	}
}

// TrendParams configures the ADX/DMI classifier.
type TrendParams struct {
	ADXPeriod int     `yaml:"adx_period"`
	DMIPeriod int     `yaml:"dmi_period"`
	Threshold float64 `yaml:"threshold"`
}

// DefaultTrendParams mirrors the 10X Bars defaults.
func DefaultTrendParams() TrendParams {
	return TrendParams{ADXPeriod: 14, DMIPeriod: 14, Threshold: 20}
}

// Validate rejects unusable periods and thresholds outside the ADX range.
func (p TrendParams) Validate() error {
	switch {
	case p.ADXPeriod < 2:
		return fmt.Errorf("%w: adx_period must be at least 2, got %d", ErrInvalidConfig, p.ADXPeriod)
	case p.DMIPeriod <= 0:
		return fmt.Errorf("%w: dmi_period must be positive, got %d", ErrInvalidConfig, p.DMIPeriod)
	case p.Threshold < 0 || p.Threshold > 100:
		return fmt.Errorf("%w: threshold must be within [0, 100], got %v", ErrInvalidConfig, p.Threshold)
	}
	return nil
}

// TrendReading is the per-bar output of the trend classifier.
type TrendReading struct {
	Direction TrendDirection
	ADX       float64
	PlusDI    float64
	MinusDI   float64
}

// Trend classifies bars as bullish, bearish or sideways.
type Trend struct {
	p TrendParams
}

// NewTrend validates params and returns a classifier.
func NewTrend(p TrendParams) (*Trend, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Trend{p: p}, nil
}

// Params returns the configuration the classifier was built with.
func (t *Trend) Params() TrendParams { return t.p }

// MinBars covers the double Wilder smoothing ADX needs.
func (t *Trend) MinBars() int {
	return max(2*t.p.ADXPeriod+1, t.p.DMIPeriod+2)
}

// ClassifyTrend applies the threshold rule: a direction needs ADX at or above threshold and a strictly dominant DI.
func ClassifyTrend(plusDI, minusDI, adx, threshold float64) TrendDirection {
	if !finite(plusDI, minusDI, adx) {
		return TrendUndefined
	}
	if adx < threshold {
		return TrendSideways
	}
	switch {
	case plusDI > minusDI:
		return TrendBullish
	case minusDI > plusDI:
		return TrendBearish
	default:
		return TrendSideways
	}
}

// Series returns one reading per bar.
func (t *Trend) Series(bars []signal.Bar) []TrendReading {
	return seriesByRun(bars, t.MinBars(), t.series)
}

func (t *Trend) series(bars []signal.Bar) []TrendReading {
	out := make([]TrendReading, len(bars))

	closes, highs, lows := Closes(bars), Highs(bars), Lows(bars)
	adx := talib.Adx(highs, lows, closes, t.p.ADXPeriod)
	plus := talib.PlusDI(highs, lows, closes, t.p.DMIPeriod)
	minus := talib.MinusDI(highs, lows, closes, t.p.DMIPeriod)

	for i := t.MinBars() - 1; i < len(bars); i++ {
		out[i] = TrendReading{
			Direction: ClassifyTrend(plus[i], minus[i], adx[i], t.p.Threshold),
			ADX:       adx[i],
			PlusDI:    plus[i],
			MinusDI:   minus[i],
		}
	}
	return out
}

// Classify returns the reading for the newest bar.
func (t *Trend) Classify(bars []signal.Bar) TrendReading {
	if len(bars) < t.MinBars() {
		return TrendReading{}
	}
	series := t.Series(bars)
	return series[len(series)-1]
}
