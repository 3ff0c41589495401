package strategy

import (
	"fmt"

	"github.com/skswe/tenxsqueeze/internal/indicator"
	sig "github.com/skswe/tenxsqueeze/internal/signal"
)

// Big3 builds positions while a medium or high squeeze coincides with a stacked EMA ribbon.
// Strength counts the consecutive aligned bars ending at the current bar; a change of
// squeeze tier between medium and high does not reset it.
type Big3 struct {
	squeeze          *indicator.Squeeze
	stack            *indicator.Stack
	trend            *indicator.Trend
	requireTrend     bool
	requireInChannel bool
}

// NewBig3 builds the engine, rejecting invalid classifier parameters.
func NewBig3(p Params) (*Big3, error) {
	sq, err := indicator.NewSqueeze(p.Squeeze)
	if err != nil {
		return nil, fmt.Errorf("big3 squeeze: %w", err)
	}
	st, err := indicator.NewStack(p.Stack)
	if err != nil {
		return nil, fmt.Errorf("big3 ema stack: %w", err)
	}
	b := &Big3{squeeze: sq, stack: st, requireTrend: p.RequireTrend, requireInChannel: p.RequireInChannel}
	if p.RequireTrend {
		if b.trend, err = indicator.NewTrend(p.Trend); err != nil {
			return nil, fmt.Errorf("big3 trend: %w", err)
		}
	}
	return b, nil
}

// Name returns the identifier for the strategy implementation.
func (s *Big3) Name() string { return ModeBig3 }

func (s *Big3) MinBars() int {
	n := max(s.squeeze.MinBars(), s.stack.MinBars())
	if s.trend != nil {
		n = max(n, s.trend.MinBars())
	}
	return n
}

func (s *Big3) Evaluate(window []sig.Bar) sig.Signal {
	return last(s.Series(window), s.Name())
}

func (s *Big3) Series(window []sig.Bar) []sig.Signal {
	out := make([]sig.Signal, len(window))
	squeezes := s.squeeze.Series(window)
	stacks := s.stack.Series(window)
	var trends []indicator.TrendReading
	if s.trend != nil {
		trends = s.trend.Series(window)
	}

	run, runDir := 0, sig.Flat
	for i, b := range window {
		out[i] = flat(s.Name(), b)
		out[i].Levels = levelsFor(squeezes[i], s.squeeze.Params())
		var tr indicator.TrendReading
		if trends != nil {
			tr = trends[i]
		}
		dir := s.direction(squeezes[i], stacks[i], tr)
		if dir == sig.Flat {
			run, runDir = 0, sig.Flat
			continue
		}
		if dir == runDir {
			run++
		} else {
			run, runDir = 1, dir
		}
		out[i].Direction = dir
		out[i].Strength = run
		out[i].Grade = gradeFor(squeezes[i].Tier)
		out[i].Reason = fmt.Sprintf("squeeze=%s stack=%s bars=%d", squeezes[i].Tier, stacks[i].State, run)
	}
	return out
}

func (s *Big3) direction(sq indicator.SqueezeReading, st indicator.StackReading, tr indicator.TrendReading) sig.Direction {
	if sq.Tier != indicator.SqueezeHigh && sq.Tier != indicator.SqueezeMedium {
		return sig.Flat
	}
	dir := st.State.Direction()
	if dir == sig.Flat {
		return sig.Flat
	}
	if s.requireTrend && tr.Direction.Direction() != dir {
		return sig.Flat
	}
	if s.requireInChannel && !sq.InChannel {
		return sig.Flat
	}
	return dir
}

func gradeFor(tier indicator.SqueezeTier) sig.Grade {
	switch tier {
	case indicator.SqueezeHigh:
		return sig.GradeStrong
	case indicator.SqueezeMedium:
		return sig.GradeWeak
	default:
		return sig.GradeNone
	}
}
