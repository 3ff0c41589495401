// Package execution turns signals into orders and reports what was submitted.
package execution

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/skswe/tenxsqueeze/internal/metrics"
	"github.com/skswe/tenxsqueeze/internal/signal"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy opens or adds to a long, or covers a short.
	Buy Side = "BUY"
	// Sell closes a long, or opens a short.
	Sell Side = "SELL"
)

// SideFor maps a signal direction to the side that builds exposure in it.
func SideFor(dir signal.Direction) (Side, bool) {
	switch dir {
	case signal.Long:
		return Buy, true
	case signal.Short:
		return Sell, true
	default:
		return "", false
	}
}

// Opposite returns the side that unwinds s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Order represents a market order priced at the bar close.
type Order struct {
	Symbol string
	Side   Side
	Qty    float64
	Price  float64
	Ts     time.Time
	Reason string
}

// Fill is an executed order as recorded by the paper account.
type Fill struct {
	Session  string    `json:"session,omitempty"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Qty      float64   `json:"qty"`
	Price    float64   `json:"price"`
	Notional float64   `json:"notional"`
	Ts       time.Time `json:"ts"`
	Reason   string    `json:"reason,omitempty"`
}

// Executor implements a logger-backed submitter for orders.
type Executor struct{ log zerolog.Logger }

// NewExecutor wraps a zerolog logger for order submissions.
func NewExecutor(log zerolog.Logger) *Executor { return &Executor{log: log} }

// Submit validates and logs the order request and counts it in orders_total.
func (executor *Executor) Submit(order Order) error {
	if order.Symbol == "" {
		return errors.New("order without symbol")
	}
	if order.Side != Buy && order.Side != Sell {
		return errors.New("unknown order side")
	}
	if order.Qty <= 0 || order.Price <= 0 {
		return errors.New("order quantity and price must be positive")
	}
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	executor.log.Info().
		Str("sym", order.Symbol).
		Str("side", string(order.Side)).
		Float64("qty", order.Qty).
		Float64("px", order.Price).
		Str("reason", order.Reason).
		Time("bar", order.Ts).
		Msg("submit order (paper)")
	return nil
}
