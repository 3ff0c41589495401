package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/skswe/tenxsqueeze/internal/indicator"
	"github.com/skswe/tenxsqueeze/internal/signal"
)

type segment struct {
	slope float64
	n     int
}

func rampBars(symbol string, segments ...segment) []signal.Bar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var bars []signal.Bar
	v := 100.0
	for _, seg := range segments {
		for i := 0; i < seg.n; i++ {
			bars = append(bars, signal.Bar{
				Symbol: symbol,
				Ts:     start.Add(time.Duration(len(bars)) * 5 * time.Minute),
				Open:   v,
				High:   v + 1,
				Low:    v - 1,
				Close:  v,
				Volume: 1000,
			})
			v += seg.slope
		}
	}
	return bars
}

// decelerating tightens the squeeze from none through low and medium to high while the
// EMA ribbon stays stacked bullish.
func decelerating() []signal.Bar {
	return rampBars("TEST", segment{0.6, 20}, segment{0.3, 28}, segment{0.2, 30}, segment{0.08, 40})
}

func mustBuild(t *testing.T, mode string, p Params) Strategy {
	t.Helper()
	s, err := Build(mode, p)
	if err != nil {
		t.Fatalf("Build(%q): %v", mode, err)
	}
	return s
}

func TestBuildModes(t *testing.T) {
	cases := map[string]string{
		"":           ModeTenX,
		"tenx":       ModeTenX,
		"10xsqueeze": ModeTenX,
		" BIG3 ":     ModeBig3,
	}
	for mode, want := range cases {
		if got := mustBuild(t, mode, DefaultParams()).Name(); got != want {
			t.Fatalf("mode %q: got %s want %s", mode, got, want)
		}
	}
	if _, err := Build("obi", DefaultParams()); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestBuildRejectsInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.Squeeze.BBPeriod = 0
	for _, mode := range Modes() {
		if _, err := Build(mode, p); !errors.Is(err, indicator.ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", mode, err)
		}
	}
	p = DefaultParams()
	p.Stack.Periods = []int{21, 8}
	if _, err := Build(ModeBig3, p); !errors.Is(err, indicator.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for unordered ema periods, got %v", err)
	}
}

func TestShortWindowIsFlat(t *testing.T) {
	for _, mode := range Modes() {
		s := mustBuild(t, mode, DefaultParams())
		bars := rampBars("TEST", segment{0.6, s.MinBars() - 1})
		for i, out := range s.Series(bars) {
			if out.Active() {
				t.Fatalf("%s bar %d: expected flat before MinBars, got %s", mode, i, out)
			}
		}
		if got := s.Evaluate(nil); got.Active() || got.Strategy != s.Name() {
			t.Fatalf("%s: unexpected signal for empty window: %+v", mode, got)
		}
	}
}

func TestTenXFollowsTrendOutsideSqueeze(t *testing.T) {
	s := mustBuild(t, ModeTenX, DefaultParams())
	cases := []struct {
		slope float64
		want  signal.Direction
	}{
		{0.6, signal.Long},
		{-0.6, signal.Short},
		{0, signal.Flat},
	}
	for _, tc := range cases {
		bars := rampBars("BTCUSDT", segment{tc.slope, 60})
		got := s.Evaluate(bars)
		if got.Direction != tc.want {
			t.Fatalf("slope %.1f: got %s want %s (%s)", tc.slope, got.Direction, tc.want, got.Reason)
		}
		if got.Symbol != "BTCUSDT" || !got.Ts.Equal(bars[len(bars)-1].Ts) {
			t.Fatalf("signal not stamped with the newest bar: %+v", got)
		}
	}
}

func TestTenXDirectionRule(t *testing.T) {
	bull := indicator.TrendReading{Direction: indicator.TrendBullish}
	bear := indicator.TrendReading{Direction: indicator.TrendBearish}
	side := indicator.TrendReading{Direction: indicator.TrendSideways}
	none := func(m float64) indicator.SqueezeReading {
		return indicator.SqueezeReading{Tier: indicator.SqueezeNone, Momentum: m, MomentumOK: true}
	}
	low := indicator.SqueezeReading{Tier: indicator.SqueezeLow}

	cases := []struct {
		name      string
		cur, prev indicator.SqueezeReading
		trend     indicator.TrendReading
		momentum  bool
		want      signal.Direction
	}{
		{"bullish release", none(0), none(0), bull, false, signal.Long},
		{"bearish release", none(0), none(0), bear, false, signal.Short},
		{"sideways", none(0), none(0), side, false, signal.Flat},
		{"still squeezed", low, low, bull, false, signal.Flat},
		{"undefined squeeze", indicator.SqueezeReading{}, none(0), bull, false, signal.Flat},
		{"undefined trend", none(0), none(0), indicator.TrendReading{}, false, signal.Flat},
		{"momentum rising", none(2), none(1), bull, true, signal.Long},
		{"momentum falling", none(1), none(2), bull, true, signal.Flat},
		{"momentum negative", none(-1), none(-2), bull, true, signal.Flat},
		{"momentum short", none(-2), none(-1), bear, true, signal.Short},
		{"momentum not ready", none(2), indicator.SqueezeReading{Tier: indicator.SqueezeNone}, bull, true, signal.Flat},
	}
	for _, tc := range cases {
		if got := tenxDirection(tc.cur, tc.prev, tc.trend, tc.momentum); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestDeceleratingTrendEndToEnd(t *testing.T) {
	bars := decelerating()

	// With the default 14-bar ADX the trend is defined from bar 28 while the squeeze is
	// still none (bars 19-34), so 10x rightly fires long on the initial impulse. A 20-bar
	// ADX needs 41 bars, by which time the squeeze is low, so 10x stays flat throughout.
	early := mustBuild(t, ModeTenX, DefaultParams()).Series(bars)
	if early[30].Direction != signal.Long {
		t.Fatalf("10x bar 30: expected long before the squeeze forms, got %s (%s)", early[30], early[30].Reason)
	}
	for i := 35; i < len(early); i++ {
		if early[i].Active() {
			t.Fatalf("10x bar %d: expected flat once squeezed, got %s", i, early[i])
		}
	}

	p := DefaultParams()
	p.Trend.ADXPeriod = 20
	tenx := mustBuild(t, ModeTenX, p)
	for i, out := range tenx.Series(bars) {
		if out.Active() {
			t.Fatalf("10x bar %d: expected flat while squeezed, got %s (%s)", i, out, out.Reason)
		}
	}

	big3 := mustBuild(t, ModeBig3, DefaultParams())
	series := big3.Series(bars)
	const firstLong = 57
	for i, out := range series {
		if i < firstLong {
			if out.Active() {
				t.Fatalf("big3 bar %d: expected flat, got %s (%s)", i, out, out.Reason)
			}
			continue
		}
		if out.Direction != signal.Long {
			t.Fatalf("big3 bar %d: expected long, got %s", i, out.Direction)
		}
		if want := i - firstLong + 1; out.Strength != want {
			t.Fatalf("big3 bar %d: strength %d want %d", i, out.Strength, want)
		}
	}
	if got := series[70].Grade; got != signal.GradeWeak {
		t.Fatalf("expected weak grade on medium squeeze, got %s", got)
	}
	final := series[len(series)-1]
	if final.Grade != signal.GradeStrong || final.Strength != 61 {
		t.Fatalf("unexpected final signal %s", final)
	}
}

func TestTenXGoodMomentumGate(t *testing.T) {
	bars := rampBars("BTCUSDT", segment{0.6, 60})
	p := DefaultParams()
	p.RequireGoodMomentum = true
	s := mustBuild(t, ModeTenX, p)
	if s.MinBars() != 2*p.Squeeze.MomentumPeriod+1 {
		t.Fatalf("unexpected MinBars %d", s.MinBars())
	}
	// momentum never crosses zero on a steady ramp, so the latch never turns on
	for i, out := range s.Series(bars) {
		if out.Active() {
			t.Fatalf("bar %d: expected the momentum latch to block entries, got %s", i, out)
		}
	}
	if got := mustBuild(t, ModeTenX, DefaultParams()).Evaluate(bars); got.Direction != signal.Long {
		t.Fatalf("expected long without the latch, got %s", got)
	}
}

func TestSignalsCarryLevels(t *testing.T) {
	bars := decelerating()
	for _, mode := range Modes() {
		s := mustBuild(t, mode, DefaultParams())
		series := s.Series(bars)
		if series[0].Levels.Valid() {
			t.Fatalf("%s: expected no levels before the warmup", mode)
		}
		l := series[len(series)-1].Levels
		if !l.Valid() || !(l.TargetLower < l.StopLower && l.StopLower < l.StopUpper && l.StopUpper < l.TargetUpper) {
			t.Fatalf("%s: unexpected levels %+v", mode, l)
		}
	}
}

func TestTrailingBadBarKeepsSignals(t *testing.T) {
	bars := decelerating()
	bad := append([]signal.Bar(nil), bars...)
	next := bars[len(bars)-1]
	next.Ts = next.Ts.Add(5 * time.Minute)
	next.Close = math.NaN()
	bad = append(bad, next)

	for _, mode := range Modes() {
		s := mustBuild(t, mode, DefaultParams())
		clean, dirty := s.Series(bars), s.Series(bad)
		for i := range clean {
			if clean[i] != dirty[i] {
				t.Fatalf("%s bar %d: %s changed to %s after a NaN bar", mode, i, clean[i], dirty[i])
			}
		}
		if got := dirty[len(bars)]; got.Active() || got.Levels.Valid() {
			t.Fatalf("%s: expected a flat signal on the NaN bar, got %+v", mode, got)
		}
	}
	if got := mustBuild(t, ModeBig3, DefaultParams()).Series(bad)[57]; got.Direction != signal.Long {
		t.Fatalf("big3 bar 57: expected long, got %s", got)
	}
}

func TestBig3OptionalGates(t *testing.T) {
	bars := decelerating()

	p := DefaultParams()
	p.RequireTrend = true
	gated := mustBuild(t, ModeBig3, p)
	if got := gated.Evaluate(bars); got.Direction != signal.Long {
		t.Fatalf("expected trend gate to agree on a pure uptrend, got %s", got)
	}

	// close drifts outside a very tight high-tier channel
	p = DefaultParams()
	p.RequireInChannel = true
	p.Squeeze.KCMultHigh = 0.01
	p.Squeeze.KCMultMid = 1.5
	inChannel := mustBuild(t, ModeBig3, p)
	for i, out := range inChannel.Series(bars) {
		if out.Active() {
			t.Fatalf("bar %d: expected in-channel gate to block entries, got %s", i, out)
		}
	}
}

func TestSeriesHasNoLookAhead(t *testing.T) {
	bars := decelerating()
	for _, mode := range Modes() {
		s := mustBuild(t, mode, DefaultParams())
		full := s.Series(bars)
		for _, k := range []int{30, 57, 84, len(bars)} {
			prefix := s.Series(bars[:k])
			for i := range prefix {
				if prefix[i] != full[i] {
					t.Fatalf("%s prefix %d bar %d: %s vs %s", mode, k, i, prefix[i], full[i])
				}
			}
			if got := s.Evaluate(bars[:k]); got != full[k-1] {
				t.Fatalf("%s: Evaluate differs from Series at %d", mode, k-1)
			}
		}
	}
}
