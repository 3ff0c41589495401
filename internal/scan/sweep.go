package scan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/skswe/tenxsqueeze/internal/feed"
	"github.com/skswe/tenxsqueeze/internal/metrics"
	"github.com/skswe/tenxsqueeze/internal/signal"
	"github.com/skswe/tenxsqueeze/internal/strategy"
)

// Result kinds.
const (
	KindConsecutive = "consecutive"
	KindPartial     = "partial"
	KindMTF         = "mtf"
	KindMTFQuorum   = "mtf_quorum"
)

// Timeframe is one resampling of the base bars. Offset shifts bucket boundaries, e.g. 30m
// aligns hourly buckets to a market that opens on the half hour.
type Timeframe struct {
	Name     string
	Interval time.Duration
	Offset   time.Duration
}

// PartialSpec asks for windows of Q bars holding exactly N signal bars.
type PartialSpec struct {
	N int
	Q int
}

// SweepConfig lists the parameter grid. The first timeframe is the base used for
// multi-timeframe alignment and for measuring tails.
type SweepConfig struct {
	Timeframes []Timeframe
	N          []int
	T          []int
	Partial    []PartialSpec
	// MTFCounts selects how many of the leading timeframes are combined.
	MTFCounts  []int
	Thresholds []float64
	Workers    int
}

// Validate rejects grids that cannot produce results.
func (c SweepConfig) Validate() error {
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("scan needs at least one timeframe")
	}
	for _, tf := range c.Timeframes {
		if tf.Interval <= 0 {
			return fmt.Errorf("timeframe %q: non-positive interval", tf.Name)
		}
	}
	if len(c.T) == 0 {
		return fmt.Errorf("scan needs at least one tail length")
	}
	for _, v := range append(append([]int{}, c.N...), c.T...) {
		if v <= 0 {
			return fmt.Errorf("scan bar counts must be positive, got %d", v)
		}
	}
	for _, p := range c.Partial {
		if p.N <= 0 || p.Q < p.N {
			return fmt.Errorf("partial spec needs 0 < N <= Q, got N=%d Q=%d", p.N, p.Q)
		}
	}
	for _, k := range c.MTFCounts {
		if k < 2 || k > len(c.Timeframes) {
			return fmt.Errorf("mtf count %d outside [2, %d]", k, len(c.Timeframes))
		}
	}
	for _, th := range c.Thresholds {
		if th < 0 || th >= 1 {
			return fmt.Errorf("quorum threshold %v outside [0, 1)", th)
		}
	}
	return nil
}

// Job is the base-timeframe history of one symbol.
type Job struct {
	Symbol string
	Bars   []signal.Bar
}

// Result is the measured movement after one signal group.
type Result struct {
	RunID     string
	Symbol    string
	Kind      string
	Timeframe string
	TFCount   int
	N         int
	Q         int
	Thresh    float64
	T         int
	Direction signal.Direction
	Start     time.Time
	End       time.Time
	Movement
}

// Sweep runs the parameter grid over many symbols concurrently.
type Sweep struct {
	strat strategy.Strategy
	cfg   SweepConfig
	log   zerolog.Logger
}

// NewSweep validates cfg and binds it to a strategy.
func NewSweep(strat strategy.Strategy, cfg SweepConfig, log zerolog.Logger) (*Sweep, error) {
	if strat == nil {
		return nil, fmt.Errorf("scan needs a strategy")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	cfg.Timeframes = append([]Timeframe(nil), cfg.Timeframes...)
	for i := range cfg.Timeframes {
		if cfg.Timeframes[i].Name == "" {
			cfg.Timeframes[i].Name = feed.FormatInterval(cfg.Timeframes[i].Interval)
		}
	}
	return &Sweep{strat: strat, cfg: cfg, log: log}, nil
}

// Run analyses every job and returns the results sorted deterministically. Jobs that fail
// are logged and skipped; only cancellation aborts the run.
func (s *Sweep) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	runID := uuid.NewString()
	log := s.log.With().Str("run", runID).Str("strategy", s.strat.Name()).Logger()
	log.Info().Int("jobs", len(jobs)).Int("workers", s.cfg.Workers).Msg("scan started")

	var (
		mu      sync.Mutex
		results []Result
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.Analyze(job)
			if err != nil {
				log.Warn().Err(err).Str("symbol", job.Symbol).Msg("skipping scan job")
				return nil
			}
			for i := range res {
				res[i].RunID = runID
				metrics.ScanResultsTotal.WithLabelValues(res[i].Timeframe).Inc()
			}
			mu.Lock()
			results = append(results, res...)
			mu.Unlock()
			log.Debug().Str("symbol", job.Symbol).Int("results", len(res)).Msg("scan job done")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortResults(results)
	log.Info().Int("results", len(results)).Msg("scan finished")
	return results, nil
}

// Analyze runs the full grid over one symbol.
func (s *Sweep) Analyze(job Job) ([]Result, error) {
	if len(job.Bars) == 0 {
		return nil, fmt.Errorf("%s: no bars", job.Symbol)
	}
	frames := make([]Frame, len(s.cfg.Timeframes))
	for i, tf := range s.cfg.Timeframes {
		bars, err := feed.Resample(job.Bars, tf.Interval, tf.Offset)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", job.Symbol, tf.Name, err)
		}
		frames[i] = Frame{Interval: tf.Interval, Bars: bars, Dirs: Directions(s.strat.Series(bars))}
	}

	var out []Result
	for i, tf := range s.cfg.Timeframes {
		fr := frames[i]
		proto := Result{Symbol: job.Symbol, Kind: KindConsecutive, Timeframe: tf.Name, TFCount: 1}
		for _, n := range s.cfg.N {
			proto.N = n
			out = append(out, s.measure(proto, fr.Bars, ConsecutiveGroups(fr.Dirs, n))...)
		}
		proto.Kind, proto.N = KindPartial, 0
		for _, p := range s.cfg.Partial {
			proto.N, proto.Q = p.N, p.Q
			out = append(out, s.measure(proto, fr.Bars, PartialGroups(fr.Dirs, p.Q, p.N))...)
		}
	}

	base := frames[0]
	for _, k := range s.cfg.MTFCounts {
		rows, err := AlignTimeframes(base, frames[1:k]...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", job.Symbol, err)
		}
		names := make([]string, k)
		for i := range names {
			names[i] = s.cfg.Timeframes[i].Name
		}
		proto := Result{Symbol: job.Symbol, Kind: KindMTF, Timeframe: strings.Join(names, "+"), TFCount: k}
		unanimous := Reduce(rows, Unanimous)
		for _, n := range s.cfg.N {
			proto.N = n
			out = append(out, s.measure(proto, base.Bars, ConsecutiveGroups(unanimous, n))...)
		}
		proto.Kind = KindMTFQuorum
		for _, th := range s.cfg.Thresholds {
			quorum := Reduce(rows, Quorum(th))
			proto.Thresh = th
			for _, n := range s.cfg.N {
				proto.N = n
				out = append(out, s.measure(proto, base.Bars, ConsecutiveGroups(quorum, n))...)
			}
		}
	}
	return out, nil
}

func (s *Sweep) measure(proto Result, bars []signal.Bar, groups []Group) []Result {
	var out []Result
	for _, g := range groups {
		for _, t := range s.cfg.T {
			tail, ok := Tail(bars, g, t)
			if !ok {
				continue
			}
			mv, err := PriceMovement(tail, g.Direction)
			if err != nil {
				s.log.Debug().Err(err).Str("symbol", proto.Symbol).Msg("skipping group")
				continue
			}
			r := proto
			r.T = t
			r.Direction = g.Direction
			r.Start = bars[g.Start].Ts
			r.End = tail[len(tail)-1].Ts
			r.Movement = mv
			out = append(out, r)
		}
	}
	return out
}

// SortResults orders results by symbol, kind, timeframe and grid position, then start time.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		switch {
		case a.Symbol != b.Symbol:
			return a.Symbol < b.Symbol
		case a.Kind != b.Kind:
			return a.Kind < b.Kind
		case a.TFCount != b.TFCount:
			return a.TFCount < b.TFCount
		case a.Timeframe != b.Timeframe:
			return a.Timeframe < b.Timeframe
		case a.N != b.N:
			return a.N < b.N
		case a.Q != b.Q:
			return a.Q < b.Q
		case a.Thresh != b.Thresh:
			return a.Thresh < b.Thresh
		case a.T != b.T:
			return a.T < b.T
		case !a.Start.Equal(b.Start):
			return a.Start.Before(b.Start)
		default:
			return a.Direction < b.Direction
		}
	})
}
