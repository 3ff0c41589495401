package paper

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skswe/tenxsqueeze/internal/execution"
	"github.com/skswe/tenxsqueeze/internal/risk"
	sig "github.com/skswe/tenxsqueeze/internal/signal"
)

// Trader consumes the signal computed for each bar and trades it on a paper account.
type Trader interface {
	OnSignal(bar sig.Bar, s sig.Signal) error
	Session() string
	Snapshot() Snapshot
}

// desk holds what every trader shares: the account, risk limits, the executor and the
// fill recorders, plus the last close seen per symbol.
type desk struct {
	session   string
	account   *Account
	limits    risk.Limits
	executor  *execution.Executor
	recorders []FillRecorder
	log       zerolog.Logger

	mu    sync.Mutex
	marks map[string]float64
}

func newDesk(account *Account, limits risk.Limits, executor *execution.Executor, log zerolog.Logger, recorders []FillRecorder) (*desk, error) {
	if account == nil || executor == nil {
		return nil, errors.New("runner requires an account and an executor")
	}
	session := uuid.NewString()
	return &desk{
		session:   session,
		account:   account,
		limits:    limits,
		executor:  executor,
		recorders: recorders,
		log:       log.With().Str("session", session).Logger(),
		marks:     make(map[string]float64),
	}, nil
}

// Session identifies this trader's fills.
func (d *desk) Session() string { return d.session }

// Snapshot marks the account to the last close seen per symbol.
func (d *desk) Snapshot() Snapshot {
	d.mu.Lock()
	marks := make(map[string]float64, len(d.marks))
	for k, v := range d.marks {
		marks[k] = v
	}
	d.mu.Unlock()
	return d.account.Snapshot(marks)
}

func checkBar(bar sig.Bar) error {
	if bar.Symbol == "" || bar.Close <= 0 {
		return fmt.Errorf("runner: unusable bar %q at %s", bar.Symbol, bar.Ts)
	}
	return nil
}

// enter fills an entry of notional at price once the risk limits and the account accept it.
// Refusals are logged and reported as a zero quantity. Callers hold d.mu.
func (d *desk) enter(bar sig.Bar, side execution.Side, notional, price float64, reason string) (float64, error) {
	gross := d.account.Snapshot(d.marks).Gross
	if !d.limits.AllowExposure(gross, notional) {
		d.log.Warn().Str("sym", bar.Symbol).Float64("notional", notional).Float64("gross", gross).Msg("entry blocked by risk limits")
		return 0, nil
	}
	qty := notional / price
	if err := d.account.MarketFill(bar.Symbol, side, qty, price); err != nil {
		d.log.Warn().Err(err).Str("sym", bar.Symbol).Msg("entry rejected by account")
		return 0, nil
	}
	return qty, d.book(bar, side, qty, price, reason)
}

// fill books an exit against the account before recording it.
func (d *desk) fill(bar sig.Bar, side execution.Side, qty, price float64, reason string) error {
	if err := d.account.MarketFill(bar.Symbol, side, qty, price); err != nil {
		return fmt.Errorf("close %s: %w", bar.Symbol, err)
	}
	return d.book(bar, side, qty, price, reason)
}

func (d *desk) book(bar sig.Bar, side execution.Side, qty, price float64, reason string) error {
	order := execution.Order{Symbol: bar.Symbol, Side: side, Qty: qty, Price: price, Ts: bar.Ts, Reason: reason}
	if err := d.executor.Submit(order); err != nil {
		return fmt.Errorf("submit %s: %w", bar.Symbol, err)
	}
	fill := execution.Fill{
		Session:  d.session,
		Symbol:   bar.Symbol,
		Side:     side,
		Qty:      qty,
		Price:    price,
		Notional: qty * price,
		Ts:       bar.Ts,
		Reason:   reason,
	}
	for _, rec := range d.recorders {
		if err := rec.Record(fill); err != nil {
			return fmt.Errorf("record fill: %w", err)
		}
	}
	return nil
}

func sideOf(dir sig.Direction) execution.Side {
	side, _ := execution.SideFor(dir)
	return side
}
