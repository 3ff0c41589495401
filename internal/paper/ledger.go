package paper

import (
	"sync"

	"github.com/skswe/tenxsqueeze/internal/execution"
)

// FillRecorder receives every fill the runner books.
type FillRecorder interface {
	Record(fill execution.Fill) error
}

// Ledger stores paper fills in memory for quick inspection.
type Ledger struct {
	mu    sync.Mutex
	fills []execution.Fill
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{fills: make([]execution.Fill, 0, capacity)}
}

// Record appends a fill to the ledger.
func (l *Ledger) Record(fill execution.Fill) error {
	l.mu.Lock()
	l.fills = append(l.fills, fill)
	l.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the recorded fills.
func (l *Ledger) Snapshot() []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]execution.Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// Symbol returns the fills booked for one symbol in order.
func (l *Ledger) Symbol(symbol string) []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []execution.Fill
	for _, f := range l.fills {
		if f.Symbol == symbol {
			out = append(out, f)
		}
	}
	return out
}

// Len reports the number of stored fills.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fills)
}

// Reset clears all stored fills.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.fills = l.fills[:0]
	l.mu.Unlock()
}
