// Package paper simulates fills for signals against a virtual account.
package paper

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/skswe/tenxsqueeze/internal/execution"
)

type positionState struct {
	Qty     decimal.Decimal // signed: negative is short
	AvgCost decimal.Decimal
}

// Account tracks virtual cash, realized PnL, and signed per-symbol positions while trading in paper mode.
// Short sales credit cash; equity is cash plus the signed market value of every position.
type Account struct {
	mu           sync.Mutex
	startingCash decimal.Decimal
	cash         decimal.Decimal
	realizedPnL  decimal.Decimal
	maxPosition  decimal.Decimal
	allowShort   bool
	positions    map[string]positionState
}

// AccountOption configures optional account behaviour.
type AccountOption func(*Account)

// WithMaxPosition caps the absolute quantity held per symbol; zero disables the cap.
func WithMaxPosition(qty float64) AccountOption {
	return func(a *Account) { a.maxPosition = decimal.NewFromFloat(qty) }
}

// WithShorting lets sells open or extend short positions.
func WithShorting(allow bool) AccountOption {
	return func(a *Account) { a.allowShort = allow }
}

// PositionSnapshot exposes a read-only view of a single symbol position.
type PositionSnapshot struct {
	Qty         float64
	AvgCost     float64
	MarketValue float64
	Unrealized  float64
}

// Snapshot represents a thread-safe view of the account state, optionally marked to market using provided prices.
type Snapshot struct {
	Cash        float64
	RealizedPnL float64
	Equity      float64
	Gross       float64
	Positions   map[string]PositionSnapshot
}

// NewAccount constructs an account populated with starting cash.
func NewAccount(startingCash float64, opts ...AccountOption) *Account {
	cash := decimal.NewFromFloat(startingCash)
	a := &Account{
		startingCash: cash,
		cash:         cash,
		positions:    make(map[string]positionState),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StartingCash returns the initial bankroll used to compute drawdown.
func (a *Account) StartingCash() float64 { return a.startingCash.InexactFloat64() }

// MarketFill executes a market order at price, mutating balances if successful. A fill against
// an opposite position first reduces it, realizing PnL, and any remainder opens a new position.
func (a *Account) MarketFill(symbol string, side execution.Side, qty, price float64) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	if price <= 0 {
		return errors.New("price must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	q := decimal.NewFromFloat(qty)
	px := decimal.NewFromFloat(price)
	notional := q.Mul(px)
	state := a.positions[symbol]

	var delta decimal.Decimal
	switch side {
	case execution.Buy:
		if notional.GreaterThan(a.cash) {
			return errors.New("insufficient cash for buy")
		}
		delta = q
	case execution.Sell:
		if !a.allowShort && state.Qty.LessThan(q) {
			return errors.New("insufficient position to sell")
		}
		delta = q.Neg()
	default:
		return errors.New("unknown order side")
	}

	newQty := state.Qty.Add(delta)
	if a.maxPosition.IsPositive() && newQty.Abs().GreaterThan(a.maxPosition) {
		return errors.New("position limit exceeded")
	}

	next := positionState{Qty: newQty, AvgCost: state.AvgCost}
	switch {
	case state.Qty.IsZero() || state.Qty.Sign() == delta.Sign():
		// opening or adding: blend the average cost
		next.AvgCost = state.AvgCost.Mul(state.Qty.Abs()).Add(notional).Div(newQty.Abs())
	default:
		closed := decimal.Min(q, state.Qty.Abs())
		pnl := px.Sub(state.AvgCost).Mul(closed)
		if state.Qty.IsNegative() {
			pnl = pnl.Neg()
		}
		a.realizedPnL = a.realizedPnL.Add(pnl)
		if newQty.Sign() != 0 && newQty.Sign() != state.Qty.Sign() {
			next.AvgCost = px
		}
	}

	if side == execution.Buy {
		a.cash = a.cash.Sub(notional)
	} else {
		a.cash = a.cash.Add(notional)
	}
	if next.Qty.IsZero() {
		delete(a.positions, symbol)
	} else {
		a.positions[symbol] = next
	}
	return nil
}

// Snapshot returns a copy of balances, optionally marked using the supplied prices map.
// Positions without a mark are valued at cost.
func (a *Account) Snapshot(prices map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]PositionSnapshot, len(a.positions))
	equity := a.cash
	gross := decimal.Zero
	for sym, pos := range a.positions {
		mark := pos.AvgCost
		if p, ok := prices[sym]; ok && p > 0 {
			mark = decimal.NewFromFloat(p)
		}
		marketValue := pos.Qty.Mul(mark)
		unrealized := mark.Sub(pos.AvgCost).Mul(pos.Qty)
		positions[sym] = PositionSnapshot{
			Qty:         pos.Qty.InexactFloat64(),
			AvgCost:     pos.AvgCost.InexactFloat64(),
			MarketValue: marketValue.InexactFloat64(),
			Unrealized:  unrealized.InexactFloat64(),
		}
		equity = equity.Add(marketValue)
		gross = gross.Add(marketValue.Abs())
	}

	return Snapshot{
		Cash:        a.cash.InexactFloat64(),
		RealizedPnL: a.realizedPnL.InexactFloat64(),
		Equity:      equity.InexactFloat64(),
		Gross:       gross.InexactFloat64(),
		Positions:   positions,
	}
}

// AvailableCash reports free cash that can be deployed into new longs.
func (a *Account) AvailableCash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash.InexactFloat64()
}

// Position returns the signed position size for the supplied symbol.
func (a *Account) Position(symbol string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[symbol].Qty.InexactFloat64()
}

// RealizedPnL returns total closed-trade profit and loss.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL.InexactFloat64()
}
