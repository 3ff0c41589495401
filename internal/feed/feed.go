// Package feed replays OHLCV bars from files or a synthetic generator.
package feed

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/skswe/tenxsqueeze/internal/metrics"
	"github.com/skswe/tenxsqueeze/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic bars (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderCSV replays bars from CSV files on disk.
	ProviderCSV = "csv"

	// SymbolPlaceholder in a CSV path is replaced by each symbol.
	SymbolPlaceholder = "{symbol}"
)

// Feed represents a pluggable bar source.
type Feed struct {
	provider string
	symbols  []string
	log      zerolog.Logger
	path     string
	interval time.Duration
	resample time.Duration
	offset   time.Duration
	pace     time.Duration
	count    int
	start    time.Time
}

// Option configures Feed construction parameters.
type Option func(*Feed)

const (
	defaultInterval  = 5 * time.Minute
	defaultStubCount = 500
)

// WithPath sets the CSV path; it may contain SymbolPlaceholder.
func WithPath(path string) Option {
	return func(f *Feed) { f.path = path }
}

// WithResample aggregates source bars into interval buckets shifted by offset before replay.
func WithResample(interval, offset time.Duration) Option {
	return func(f *Feed) {
		if interval > 0 {
			f.resample = interval
			f.offset = offset
		}
	}
}

// WithPace sleeps between emitted bars; zero replays as fast as the consumer reads.
func WithPace(d time.Duration) Option {
	return func(f *Feed) {
		if d >= 0 {
			f.pace = d
		}
	}
}

// WithStub configures the synthetic generator: bar interval, bar count per symbol (<= 0 means
// unbounded) and the first timestamp.
func WithStub(interval time.Duration, count int, start time.Time) Option {
	return func(f *Feed) {
		if interval > 0 {
			f.interval = interval
		}
		f.count = count
		if !start.IsZero() {
			f.start = start.UTC()
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, symbols []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider: strings.ToLower(strings.TrimSpace(provider)),
		log:      log,
		interval: defaultInterval,
		count:    defaultStubCount,
		start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.symbols = dedupe(symbols)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Symbols returns the deduplicated, sorted symbol list.
func (f *Feed) Symbols() []string {
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

func dedupe(symbols []string) []string {
	unique := make(map[string]struct{}, len(symbols))
	var out []string
	for _, sym := range symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		if _, ok := unique[sym]; ok {
			continue
		}
		unique[sym] = struct{}{}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Run pushes bars onto the provided channel until the source is exhausted or the context
// is canceled. A finite source returns nil once every bar was delivered.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Bar) error {
	switch f.provider {
	case ProviderCSV:
		bars, err := f.loadAll()
		if err != nil {
			return err
		}
		f.log.Info().Str("provider", f.provider).Strs("symbols", f.symbols).Int("bars", len(bars)).Msg("replaying bar feed")
		return f.emit(ctx, out, bars)
	case ProviderStub:
		return f.runStub(ctx, out)
	default:
		return fmt.Errorf("unknown feed provider %q", f.provider)
	}
}

// Load returns every bar the CSV provider would replay, merged across symbols in time order.
func (f *Feed) Load() ([]signal.Bar, error) {
	if f.provider != ProviderCSV {
		return nil, fmt.Errorf("feed provider %q has no backing files", f.provider)
	}
	return f.loadAll()
}

func (f *Feed) loadAll() ([]signal.Bar, error) {
	if f.path == "" {
		return nil, fmt.Errorf("csv feed requires a path")
	}
	symbols := f.symbols
	if len(symbols) == 0 {
		symbols = []string{strings.TrimSuffix(filepath.Base(f.path), filepath.Ext(f.path))}
	}
	if !strings.Contains(f.path, SymbolPlaceholder) && len(symbols) > 1 {
		return nil, fmt.Errorf("csv path %q must contain %s for %d symbols", f.path, SymbolPlaceholder, len(symbols))
	}

	var merged []signal.Bar
	for _, sym := range symbols {
		bars, err := LoadCSV(strings.ReplaceAll(f.path, SymbolPlaceholder, sym), sym)
		if err != nil {
			return nil, err
		}
		if f.resample > 0 {
			if bars, err = Resample(bars, f.resample, f.offset); err != nil {
				return nil, fmt.Errorf("resample %s: %w", sym, err)
			}
		}
		merged = append(merged, bars...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Ts.Before(merged[j].Ts) })
	return merged, nil
}

func (f *Feed) emit(ctx context.Context, out chan<- signal.Bar, bars []signal.Bar) error {
	for _, b := range bars {
		if err := f.send(ctx, out, b); err != nil {
			return err
		}
	}
	return nil
}

func (f *Feed) send(ctx context.Context, out chan<- signal.Bar, b signal.Bar) error {
	if f.pace > 0 {
		select {
		case <-time.After(f.pace):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case out <- b:
		metrics.BarsTotal.WithLabelValues(b.Symbol).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Feed) runStub(ctx context.Context, out chan<- signal.Bar) error {
	symbols := f.symbols
	if len(symbols) == 0 {
		symbols = []string{"STUB"}
	}
	for i := 0; f.count <= 0 || i < f.count; i++ {
		for j, sym := range symbols {
			if err := f.send(ctx, out, SyntheticBar(sym, j, i, f.start, f.interval)); err != nil {
				return err
			}
		}
	}
	return nil
}

// SyntheticBar is bar i of a deterministic drifting sine wave. seed shifts the phase so that
// several symbols do not move in lockstep.
func SyntheticBar(symbol string, seed, i int, start time.Time, interval time.Duration) signal.Bar {
	at := func(k int) float64 {
		x := float64(k)
		return 100 + 0.05*x + 4*math.Sin((x+float64(seed)*11)/9)
	}
	open, closePx := at(i), at(i+1)
	return signal.Bar{
		Symbol: symbol,
		Ts:     start.Add(time.Duration(i) * interval),
		Open:   open,
		High:   max(open, closePx) + 0.5,
		Low:    min(open, closePx) - 0.5,
		Close:  closePx,
		Volume: 1000 + float64((i*37+seed*13)%500),
	}
}

// Synthetic returns n bars from SyntheticBar.
func Synthetic(symbol string, seed, n int, start time.Time, interval time.Duration) []signal.Bar {
	out := make([]signal.Bar, n)
	for i := range out {
		out[i] = SyntheticBar(symbol, seed, i, start, interval)
	}
	return out
}
