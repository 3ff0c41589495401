package paper

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/skswe/tenxsqueeze/internal/execution"
	"github.com/skswe/tenxsqueeze/internal/risk"
	sig "github.com/skswe/tenxsqueeze/internal/signal"
)

// bands keep the stop at 95/105 and the target at 90/110 around a 100 close.
var bands = sig.Levels{ATR: 1, StopUpper: 105, StopLower: 95, TargetUpper: 110, TargetLower: 90}

type buildStep struct {
	open, high, low, close float64
	dir                    sig.Direction
	strength               int
	inChannel              bool
}

func flatBar(close float64, dir sig.Direction, strength int, inChannel bool) buildStep {
	return buildStep{close, close, close, close, dir, strength, inChannel}
}

// aligned returns n bars of close 100 whose strength counts up to n.
func aligned(dir sig.Direction, n int) []buildStep {
	out := make([]buildStep, n)
	for i := range out {
		out[i] = flatBar(100, dir, i+1, false)
	}
	return out
}

func newTestBuilder(t *testing.T, cfg BuilderConfig, recorders ...FillRecorder) *Builder {
	t.Helper()
	account := NewAccount(10000, WithShorting(true))
	b, err := NewBuilder(cfg, account, risk.Limits{MaxNotionalPerTrade: 1000}, execution.NewExecutor(zerolog.Nop()), zerolog.Nop(), recorders...)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func driveBuilder(t *testing.T, b *Builder, steps []buildStep) {
	t.Helper()
	for i, s := range steps {
		br := bar("BTCUSDT", i, s.close)
		br.Open, br.High, br.Low = s.open, s.high, s.low
		signal := signalFor(br, s.dir)
		signal.Strength = s.strength
		signal.Levels = bands
		signal.Levels.InChannel = s.inChannel
		if err := b.OnSignal(br, signal); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestBuilderBuildsHoldsAndTakesTarget(t *testing.T) {
	cases := []struct {
		maxUnits int
		units    int
	}{
		{0, 4},
		{2, 2},
	}
	for _, tc := range cases {
		ledger := NewLedger(16)
		cfg := DefaultBuilderConfig(100)
		cfg.MaxUnits = tc.maxUnits
		b := newTestBuilder(t, cfg, ledger)

		steps := aligned(sig.Long, 6)
		steps = append(steps,
			flatBar(100, sig.Long, 7, true),
			flatBar(100, sig.Long, 8, false),
			flatBar(100, sig.Long, 9, true),
			flatBar(100, sig.Flat, 0, true),
			flatBar(100, sig.Flat, 0, true),
		)
		driveBuilder(t, b, steps)
		if phase, units := b.Phase("BTCUSDT"); phase != PhaseBuild || units != tc.units {
			t.Fatalf("max %d: expected build with %d units, got %s with %d", tc.maxUnits, tc.units, phase, units)
		}

		driveBuilder(t, b, []buildStep{flatBar(100, sig.Flat, 0, true)})
		if phase, units := b.Phase("BTCUSDT"); phase != PhaseHold || units != tc.units {
			t.Fatalf("max %d: expected hold after three flat bars, got %s with %d", tc.maxUnits, phase, units)
		}

		driveBuilder(t, b, []buildStep{{105, 111, 104, 108, sig.Flat, 0, true}})
		fills := ledger.Snapshot()
		if len(fills) != tc.units+1 {
			t.Fatalf("max %d: expected %d entries and one exit, got %+v", tc.maxUnits, tc.units, fills)
		}
		exit := fills[len(fills)-1]
		if exit.Side != execution.Sell || exit.Reason != ReasonBandTarget || !near(exit.Price, 110) || !near(exit.Qty, float64(tc.units)) {
			t.Fatalf("max %d: unexpected exit %+v", tc.maxUnits, exit)
		}
		if phase, _ := b.Phase("BTCUSDT"); phase != PhaseNeutral {
			t.Fatalf("max %d: expected neutral after the target, got %s", tc.maxUnits, phase)
		}
		if snap := b.Snapshot(); !near(snap.RealizedPnL, float64(10*tc.units)) {
			t.Fatalf("max %d: realized pnl %v", tc.maxUnits, snap.RealizedPnL)
		}
	}
}

func TestBuilderBreakWithoutPositionReturnsToNeutral(t *testing.T) {
	ledger := NewLedger(8)
	b := newTestBuilder(t, DefaultBuilderConfig(100), ledger)

	steps := aligned(sig.Long, 6)
	steps = append(steps,
		flatBar(100, sig.Long, 7, false),
		flatBar(100, sig.Flat, 0, false),
		flatBar(100, sig.Flat, 0, false),
	)
	driveBuilder(t, b, steps)
	if phase, _ := b.Phase("BTCUSDT"); phase != PhaseBuild {
		t.Fatalf("expected build after two flat bars, got %s", phase)
	}
	driveBuilder(t, b, []buildStep{flatBar(100, sig.Flat, 0, false)})
	if phase, _ := b.Phase("BTCUSDT"); phase != PhaseNeutral {
		t.Fatalf("expected neutral after the break, got %s", phase)
	}
	if ledger.Len() != 0 {
		t.Fatalf("expected no fills, got %d", ledger.Len())
	}
}

func TestBuilderTargetWithoutPositionReturnsToNeutral(t *testing.T) {
	b := newTestBuilder(t, DefaultBuilderConfig(100))
	steps := aligned(sig.Long, 6)
	steps = append(steps, buildStep{100, 111, 99, 108, sig.Long, 7, false})
	driveBuilder(t, b, steps)
	if phase, _ := b.Phase("BTCUSDT"); phase != PhaseNeutral {
		t.Fatalf("expected neutral once the price target was touched, got %s", phase)
	}
}

func TestBuilderShortStopFillsAtGap(t *testing.T) {
	ledger := NewLedger(8)
	cfg := DefaultBuilderConfig(100)
	cfg.AllowShort = true
	b := newTestBuilder(t, cfg, ledger)

	steps := aligned(sig.Short, 6)
	steps = append(steps,
		flatBar(100, sig.Short, 7, true),
		buildStep{107, 108, 106, 107, sig.Flat, 0, false},
	)
	driveBuilder(t, b, steps)

	fills := ledger.Snapshot()
	if len(fills) != 2 {
		t.Fatalf("expected one unit and a stop, got %+v", fills)
	}
	if fills[0].Side != execution.Sell || !near(fills[0].Qty, 1) {
		t.Fatalf("unexpected entry %+v", fills[0])
	}
	if fills[1].Side != execution.Buy || fills[1].Reason != ReasonBandStop || !near(fills[1].Price, 107) {
		t.Fatalf("expected the stop to fill at the gap open, got %+v", fills[1])
	}
	if phase, units := b.Phase("BTCUSDT"); phase != PhaseNeutral || units != 0 {
		t.Fatalf("expected neutral after the stop, got %s with %d", phase, units)
	}
}

func TestBuilderSkipsShortsWhenDisabled(t *testing.T) {
	b := newTestBuilder(t, DefaultBuilderConfig(100))
	driveBuilder(t, b, aligned(sig.Short, 8))
	if phase, _ := b.Phase("BTCUSDT"); phase != PhaseNeutral {
		t.Fatalf("expected shorts to be ignored, got %s", phase)
	}
}

func TestBuilderValidation(t *testing.T) {
	account := NewAccount(100)
	exec := execution.NewExecutor(zerolog.Nop())
	bad := []BuilderConfig{
		{BuildBars: 6, BreakBars: 3},
		{UnitNotional: 1, BuildBars: 0, BreakBars: 3},
		{UnitNotional: 1, BuildBars: 6, BreakBars: 0},
		{UnitNotional: 1, BuildBars: 6, BreakBars: 3, MaxUnits: -1},
	}
	for i, cfg := range bad {
		if _, err := NewBuilder(cfg, account, risk.Limits{}, exec, zerolog.Nop()); err == nil {
			t.Fatalf("case %d: expected a validation error", i)
		}
	}
	if _, err := NewBuilder(DefaultBuilderConfig(1), nil, risk.Limits{}, exec, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing account")
	}
	var _ Trader = (*Builder)(nil)
	var _ Trader = (*Runner)(nil)
}
