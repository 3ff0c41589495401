package strategy

import (
	"fmt"

	"github.com/skswe/tenxsqueeze/internal/indicator"
	sig "github.com/skswe/tenxsqueeze/internal/signal"
)

// TenXSqueeze enters in the ADX/DMI trend direction once the volatility squeeze has released.
type TenXSqueeze struct {
	squeeze             *indicator.Squeeze
	trend               *indicator.Trend
	requireMomentum     bool
	requireGoodMomentum bool
}

// NewTenXSqueeze builds the engine, rejecting invalid classifier parameters.
func NewTenXSqueeze(p Params) (*TenXSqueeze, error) {
	sq, err := indicator.NewSqueeze(p.Squeeze)
	if err != nil {
		return nil, fmt.Errorf("10xsqueeze squeeze: %w", err)
	}
	tr, err := indicator.NewTrend(p.Trend)
	if err != nil {
		return nil, fmt.Errorf("10xsqueeze trend: %w", err)
	}
	return &TenXSqueeze{
		squeeze:             sq,
		trend:               tr,
		requireMomentum:     p.RequireMomentum,
		requireGoodMomentum: p.RequireGoodMomentum,
	}, nil
}

// Name returns the identifier for the strategy implementation.
func (s *TenXSqueeze) Name() string { return ModeTenX }

func (s *TenXSqueeze) MinBars() int {
	n := max(s.squeeze.MinBars(), s.trend.MinBars())
	if s.requireMomentum {
		// rising momentum compares against the previous defined value
		n = max(n, 2*s.squeeze.Params().MomentumPeriod)
	}
	if s.requireGoodMomentum {
		// the latch reads three defined momentum values
		n = max(n, 2*s.squeeze.Params().MomentumPeriod+1)
	}
	return n
}

func (s *TenXSqueeze) Evaluate(window []sig.Bar) sig.Signal {
	return last(s.Series(window), s.Name())
}

func (s *TenXSqueeze) Series(window []sig.Bar) []sig.Signal {
	out := make([]sig.Signal, len(window))
	squeezes := s.squeeze.Series(window)
	trends := s.trend.Series(window)
	var good []bool
	if s.requireGoodMomentum {
		good = indicator.GoodMomentum(squeezes)
	}
	for i, b := range window {
		out[i] = flat(s.Name(), b)
		out[i].Levels = levelsFor(squeezes[i], s.squeeze.Params())
		if good != nil && !good[i] {
			continue
		}
		var prev indicator.SqueezeReading
		if i > 0 {
			prev = squeezes[i-1]
		}
		dir := tenxDirection(squeezes[i], prev, trends[i], s.requireMomentum)
		if dir == sig.Flat {
			continue
		}
		out[i].Direction = dir
		out[i].Strength = 1
		out[i].Reason = fmt.Sprintf("squeeze=%s trend=%s adx=%.1f +di=%.1f -di=%.1f",
			squeezes[i].Tier, trends[i].Direction, trends[i].ADX, trends[i].PlusDI, trends[i].MinusDI)
	}
	return out
}

// tenxDirection is the per-bar entry rule: no squeeze and a directional trend.
func tenxDirection(cur, prev indicator.SqueezeReading, tr indicator.TrendReading, requireMomentum bool) sig.Direction {
	if cur.Tier != indicator.SqueezeNone {
		return sig.Flat
	}
	dir := tr.Direction.Direction()
	if dir == sig.Flat || !requireMomentum {
		return dir
	}
	if !cur.MomentumOK || !prev.MomentumOK {
		return sig.Flat
	}
	switch {
	case dir == sig.Long && cur.Momentum > 0 && cur.Momentum > prev.Momentum:
		return sig.Long
	case dir == sig.Short && cur.Momentum < 0 && cur.Momentum < prev.Momentum:
		return sig.Short
	default:
		return sig.Flat
	}
}
