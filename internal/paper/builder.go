package paper

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/skswe/tenxsqueeze/internal/execution"
	"github.com/skswe/tenxsqueeze/internal/risk"
	sig "github.com/skswe/tenxsqueeze/internal/signal"
)

// Exit reasons recorded by the Builder.
const (
	ReasonBandStop   = "band stop"
	ReasonBandTarget = "band target"
)

// Phase is the Builder's per-symbol state.
type Phase int

const (
	PhaseNeutral Phase = iota
	PhaseBuild
	PhaseHold
)

func (p Phase) String() string {
	switch p {
	case PhaseBuild:
		return "build"
	case PhaseHold:
		return "hold"
	default:
		return "neutral"
	}
}

// BuilderConfig sizes and times position building.
type BuilderConfig struct {
	// UnitNotional is the notional of every unit added while building.
	UnitNotional float64
	// BuildBars is the signal strength (consecutive aligned bars) that starts a build.
	BuildBars int
	// BreakBars flat bars following an aligned bar end a build.
	BreakBars int
	// MaxUnits caps the units per position; zero leaves only the risk limits.
	MaxUnits   int
	AllowShort bool
}

// DefaultBuilderConfig builds after six aligned bars and stops after three flat ones.
func DefaultBuilderConfig(unitNotional float64) BuilderConfig {
	return BuilderConfig{UnitNotional: unitNotional, BuildBars: 6, BreakBars: 3}
}

type buildState struct {
	phase Phase
	dir   sig.Direction
	// armed is set by an aligned signal and cleared by an opposite one; flat counts the
	// flat bars since the last aligned signal.
	armed  bool
	flat   int
	units  int
	qty    float64
	levels sig.Levels
}

// Builder scales into a position while a signal persists. A symbol moves from neutral to
// build once the signal strength reaches BuildBars, adds one unit per bar while the close
// sits inside the Keltner channel, and leaves the build after BreakBars flat bars: back to
// neutral when nothing was bought, to hold otherwise. An open position rests a stop on the
// mid-tier band and a target on the low-tier band of the previous bar; either fill returns
// the symbol to neutral.
type Builder struct {
	*desk
	cfg   BuilderConfig
	state map[string]*buildState
}

// NewBuilder wires a builder around an account. Every fill is passed to each recorder.
func NewBuilder(cfg BuilderConfig, account *Account, limits risk.Limits, executor *execution.Executor, log zerolog.Logger, recorders ...FillRecorder) (*Builder, error) {
	switch {
	case cfg.UnitNotional <= 0:
		return nil, fmt.Errorf("unit notional must be positive, got %v", cfg.UnitNotional)
	case cfg.BuildBars < 1:
		return nil, fmt.Errorf("build bars must be at least 1, got %d", cfg.BuildBars)
	case cfg.BreakBars < 1:
		return nil, fmt.Errorf("break bars must be at least 1, got %d", cfg.BreakBars)
	case cfg.MaxUnits < 0:
		return nil, fmt.Errorf("max units must not be negative, got %d", cfg.MaxUnits)
	}
	d, err := newDesk(account, limits, executor, log, recorders)
	if err != nil {
		return nil, err
	}
	return &Builder{desk: d, cfg: cfg, state: make(map[string]*buildState)}, nil
}

// OnSignal advances the symbol's state machine by one bar.
func (b *Builder) OnSignal(bar sig.Bar, s sig.Signal) error {
	if err := checkBar(bar); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.marks[bar.Symbol] = bar.Close
	st := b.state[bar.Symbol]
	if st == nil {
		st = &buildState{}
		b.state[bar.Symbol] = st
	}
	if s.Levels.Valid() {
		defer func() { st.levels = s.Levels }()
	}

	if st.qty > 0 {
		if err := b.checkExits(bar, st); err != nil {
			return err
		}
	}

	switch st.phase {
	case PhaseNeutral:
		if !s.Active() || s.Strength < b.cfg.BuildBars {
			return nil
		}
		if s.Direction == sig.Short && !b.cfg.AllowShort {
			return nil
		}
		*st = buildState{phase: PhaseBuild, dir: s.Direction, armed: true, levels: st.levels}
		b.log.Debug().Str("sym", bar.Symbol).Str("dir", s.Direction.String()).Msg("build started")
		return nil
	case PhaseBuild:
		switch {
		case s.Direction == st.dir:
			st.armed, st.flat = true, 0
		case s.Active():
			st.armed, st.flat = false, 0
		case st.armed:
			st.flat++
		}
		broke := st.armed && st.flat >= b.cfg.BreakBars
		if st.qty == 0 && (broke || targetReached(bar, s.Levels, st.dir)) {
			st.phase = PhaseNeutral
			return nil
		}
		if broke {
			st.phase = PhaseHold
			return nil
		}
		if !s.Levels.InChannel || (b.cfg.MaxUnits > 0 && st.units >= b.cfg.MaxUnits) {
			return nil
		}
		reason := fmt.Sprintf("%s unit %d %s", ReasonEntry, st.units+1, s.String())
		qty, err := b.enter(bar, sideOf(st.dir), b.cfg.UnitNotional, bar.Close, reason)
		if qty > 0 {
			st.units++
			st.qty += qty
		}
		return err
	}
	return nil
}

// checkExits fills the resting stop or target when bar trades through the previous bar's levels.
// The stop wins when both are touched. Gaps fill at the open.
func (b *Builder) checkExits(bar sig.Bar, st *buildState) error {
	if !st.levels.Valid() {
		return nil
	}
	stop, target := st.levels.Stop(st.dir), st.levels.Target(st.dir)
	price, reason := 0.0, ""
	if st.dir == sig.Long {
		switch {
		case bar.Low <= stop:
			price, reason = math.Min(stop, bar.Open), ReasonBandStop
		case bar.High >= target:
			price, reason = math.Max(target, bar.Open), ReasonBandTarget
		}
	} else {
		switch {
		case bar.High >= stop:
			price, reason = math.Max(stop, bar.Open), ReasonBandStop
		case bar.Low <= target:
			price, reason = math.Min(target, bar.Open), ReasonBandTarget
		}
	}
	if reason == "" {
		return nil
	}
	if price <= 0 {
		price = bar.Close
	}
	if err := b.fill(bar, sideOf(st.dir).Opposite(), st.qty, price, reason); err != nil {
		return err
	}
	b.log.Debug().Str("sym", bar.Symbol).Str("reason", reason).Int("units", st.units).Float64("price", price).Msg("position closed")
	*st = buildState{levels: st.levels}
	return nil
}

// targetReached reports whether bar touched either band of the current levels.
func targetReached(bar sig.Bar, l sig.Levels, dir sig.Direction) bool {
	if !l.Valid() {
		return false
	}
	if dir == sig.Long {
		return bar.High >= l.Target(dir) || bar.Low <= l.Stop(dir)
	}
	return bar.Low <= l.Target(dir) || bar.High >= l.Stop(dir)
}

// Phase returns the state of symbol and the units held.
func (b *Builder) Phase(symbol string) (Phase, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.state[symbol]
	if st == nil {
		return PhaseNeutral, 0
	}
	return st.phase, st.units
}
