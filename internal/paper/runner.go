package paper

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/skswe/tenxsqueeze/internal/execution"
	"github.com/skswe/tenxsqueeze/internal/risk"
	sig "github.com/skswe/tenxsqueeze/internal/signal"
)

// Exit reasons recorded on closing fills.
const (
	ReasonEntry    = "entry"
	ReasonOpposite = "opposite signal"
	ReasonMaxHold  = "max hold"
	ReasonTarget   = "atr target"
	ReasonTrail    = "trailing stop"
)

// RunnerConfig sizes and times paper trades.
type RunnerConfig struct {
	NotionalPerTrade float64
	// MaxHoldBars closes a position after that many bars; zero holds until an opposite signal.
	MaxHoldBars int
	AllowShort  bool
	// TargetATR closes a position once the close has moved that many ATRs past the entry.
	// Zero disables the target.
	TargetATR float64
	// TrailATR closes a position once the close gives back that many ATRs from the best
	// close since entry. Zero disables the trailing stop.
	TrailATR float64
}

type openTrade struct {
	side  execution.Side
	qty   float64
	entry float64
	best  float64
	held  int
}

// Runner routes one signal per bar into the paper account. When flat it opens a
// fixed-notional position on an active signal; when in a position it exits on an
// opposite signal (reversing into it), on the ATR target or trailing stop, or after
// MaxHoldBars bars. ATR exits use the Levels carried by the bar's signal.
type Runner struct {
	*desk
	cfg  RunnerConfig
	open map[string]*openTrade
}

// NewRunner wires a runner around an account. Every fill is passed to each recorder.
func NewRunner(cfg RunnerConfig, account *Account, limits risk.Limits, executor *execution.Executor, log zerolog.Logger, recorders ...FillRecorder) (*Runner, error) {
	if cfg.NotionalPerTrade <= 0 {
		return nil, fmt.Errorf("notional per trade must be positive, got %v", cfg.NotionalPerTrade)
	}
	if cfg.MaxHoldBars < 0 {
		return nil, fmt.Errorf("max hold bars must not be negative, got %d", cfg.MaxHoldBars)
	}
	if cfg.TargetATR < 0 || cfg.TrailATR < 0 {
		return nil, fmt.Errorf("atr exits must not be negative, got target %v trail %v", cfg.TargetATR, cfg.TrailATR)
	}
	d, err := newDesk(account, limits, executor, log, recorders)
	if err != nil {
		return nil, err
	}
	return &Runner{desk: d, cfg: cfg, open: make(map[string]*openTrade)}, nil
}

// OnSignal processes the signal computed for bar. Entries the account or the risk
// limits refuse are logged and skipped; only execution and recording failures are returned.
func (r *Runner) OnSignal(bar sig.Bar, s sig.Signal) error {
	if err := checkBar(bar); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.marks[bar.Symbol] = bar.Close
	reopen := true
	if trade := r.open[bar.Symbol]; trade != nil {
		trade.held++
		reason := r.exitReason(trade, bar, s)
		if reason == "" {
			return nil
		}
		reopen = reason == ReasonOpposite
		if err := r.fill(bar, trade.side.Opposite(), trade.qty, bar.Close, reason); err != nil {
			return err
		}
		delete(r.open, bar.Symbol)
	}

	if !reopen || !s.Active() {
		return nil
	}
	side := sideOf(s.Direction)
	if side == execution.Sell && !r.cfg.AllowShort {
		r.log.Debug().Str("sym", bar.Symbol).Msg("short entry skipped")
		return nil
	}
	qty, err := r.enter(bar, side, r.cfg.NotionalPerTrade, bar.Close, ReasonEntry+" "+s.String())
	if qty > 0 {
		r.open[bar.Symbol] = &openTrade{side: side, qty: qty, entry: bar.Close, best: bar.Close}
	}
	return err
}

// exitReason picks the first exit rule that fires for trade on bar, or "" to keep holding.
func (r *Runner) exitReason(trade *openTrade, bar sig.Bar, s sig.Signal) string {
	if s.Active() && sideOf(s.Direction) != trade.side {
		return ReasonOpposite
	}
	// gain is the move in the trade's favour; best tracks the most favourable close
	sign := 1.0
	if trade.side == execution.Sell {
		sign = -1
	}
	gain := sign * (bar.Close - trade.entry)
	if sign*(bar.Close-trade.best) > 0 {
		trade.best = bar.Close
	}
	if atr := s.Levels.ATR; s.Levels.Valid() {
		if r.cfg.TargetATR > 0 && gain >= r.cfg.TargetATR*atr {
			return ReasonTarget
		}
		if r.cfg.TrailATR > 0 && sign*(trade.best-bar.Close) >= r.cfg.TrailATR*atr {
			return ReasonTrail
		}
	}
	if r.cfg.MaxHoldBars > 0 && trade.held >= r.cfg.MaxHoldBars {
		return ReasonMaxHold
	}
	return ""
}

// Holding returns the side of the open position for symbol, if any.
func (r *Runner) Holding(symbol string) (execution.Side, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trade := r.open[symbol]
	if trade == nil {
		return "", false
	}
	return trade.side, true
}
