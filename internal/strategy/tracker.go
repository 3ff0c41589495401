package strategy

import (
	"fmt"
	"sync"

	"github.com/skswe/tenxsqueeze/internal/metrics"
	sig "github.com/skswe/tenxsqueeze/internal/signal"
)

// Tracker keeps a bounded window per symbol and evaluates a strategy on every accepted bar.
type Tracker struct {
	strategy Strategy
	capacity int

	mu      sync.Mutex
	windows map[string]*sig.Window
}

// NewTracker wraps strat; capacity is raised to the strategy's MinBars when smaller.
func NewTracker(strat Strategy, capacity int) *Tracker {
	if capacity < strat.MinBars() {
		capacity = strat.MinBars()
	}
	return &Tracker{strategy: strat, capacity: capacity, windows: make(map[string]*sig.Window)}
}

// Strategy returns the wrapped engine.
func (t *Tracker) Strategy() Strategy { return t.strategy }

// OnBar appends b to its symbol window and returns the signal for it. Bars that do not
// advance the symbol's clock are rejected with signal.ErrOutOfOrder.
func (t *Tracker) OnBar(b sig.Bar) (sig.Signal, error) {
	if b.Symbol == "" {
		return sig.Signal{}, fmt.Errorf("bar without symbol at %s", b.Ts)
	}

	t.mu.Lock()
	w := t.windows[b.Symbol]
	if w == nil {
		w = sig.NewWindow(t.capacity)
		t.windows[b.Symbol] = w
	}
	if err := w.Push(b); err != nil {
		t.mu.Unlock()
		return sig.Signal{}, err
	}
	bars := w.Bars()
	t.mu.Unlock()

	out := t.strategy.Evaluate(bars)
	if out.Active() {
		metrics.SignalsTotal.WithLabelValues(t.strategy.Name(), out.Direction.String()).Inc()
	}
	return out, nil
}

// Symbols returns the number of symbols with a window.
func (t *Tracker) Symbols() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}
