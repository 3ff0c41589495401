// Package strategy turns indicator readings into per-bar trading signals.
package strategy

import (
	"fmt"
	"strings"

	"github.com/skswe/tenxsqueeze/internal/indicator"
	sig "github.com/skswe/tenxsqueeze/internal/signal"
)

// Strategy defines behaviour shared by the signal engines. Implementations are immutable
// once built and safe for concurrent use.
type Strategy interface {
	Name() string
	// MinBars is the shortest window for which Evaluate can return a non-flat signal.
	MinBars() int
	// Evaluate returns the signal for the newest bar of window.
	Evaluate(window []sig.Bar) sig.Signal
	// Series returns one signal per bar; element i only depends on window[:i+1].
	Series(window []sig.Bar) []sig.Signal
}

// Mode names accepted by Build.
const (
	ModeTenX = "10xsqueeze"
	ModeBig3 = "big3"
)

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	Squeeze indicator.SqueezeParams
	Trend   indicator.TrendParams
	Stack   indicator.StackParams

	// RequireMomentum gates 10x entries on squeeze momentum agreeing with, and accelerating in, the trend direction.
	RequireMomentum bool
	// RequireGoodMomentum gates 10x entries on the momentum reset latch: on after a zero cross,
	// off after two bars of fading momentum.
	RequireGoodMomentum bool
	// RequireTrend gates Big3 entries on an ADX trend agreeing with the EMA stack.
	RequireTrend bool
	// RequireInChannel gates Big3 entries on the close sitting inside the high-tier Keltner channel.
	RequireInChannel bool
}

// DefaultParams returns the default classifier settings with every optional gate off.
func DefaultParams() Params {
	return Params{
		Squeeze: indicator.DefaultSqueezeParams(),
		Trend:   indicator.DefaultTrendParams(),
		Stack:   indicator.DefaultStackParams(),
	}
}

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "tenx", "10x", ModeTenX:
		return NewTenXSqueeze(params)
	case ModeBig3:
		return NewBig3(params)
	default:
		return nil, fmt.Errorf("unknown strategy mode %q", mode)
	}
}

// Modes lists the canonical strategy names.
func Modes() []string { return []string{ModeTenX, ModeBig3} }

func flat(name string, b sig.Bar) sig.Signal {
	return sig.Signal{Symbol: b.Symbol, Strategy: name, Direction: sig.Flat, Ts: b.Ts}
}

// levelsFor exposes the squeeze bands of a bar to the execution layer.
func levelsFor(r indicator.SqueezeReading, p indicator.SqueezeParams) sig.Levels {
	if !r.Tier.Defined() {
		return sig.Levels{}
	}
	return sig.Levels{
		ATR:         r.ATR,
		InChannel:   r.InChannel,
		StopUpper:   r.KCUpper(p.KCMultMid),
		StopLower:   r.KCLower(p.KCMultMid),
		TargetUpper: r.KCUpper(p.KCMultLow),
		TargetLower: r.KCLower(p.KCMultLow),
	}
}

func last(series []sig.Signal, name string) sig.Signal {
	if len(series) == 0 {
		return sig.Signal{Strategy: name}
	}
	return series[len(series)-1]
}
