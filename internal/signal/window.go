package signal

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder is returned when a bar does not advance the window's clock.
var ErrOutOfOrder = errors.New("bar timestamp does not advance")

// Window is a bounded rolling sequence of bars for one symbol. It is not safe for concurrent use.
type Window struct {
	capacity int
	bars     []Bar
}

// NewWindow builds a window holding at most capacity bars; capacity <= 0 means unbounded.
func NewWindow(capacity int) *Window {
	if capacity < 0 {
		capacity = 0
	}
	return &Window{capacity: capacity}
}

// Push appends a bar, evicting the oldest bar once capacity is reached.
func (w *Window) Push(b Bar) error {
	if n := len(w.bars); n > 0 && !b.Ts.After(w.bars[n-1].Ts) {
		return fmt.Errorf("%w: %s at %s after %s", ErrOutOfOrder, b.Symbol, b.Ts, w.bars[n-1].Ts)
	}
	w.bars = append(w.bars, b)
	if w.capacity > 0 && len(w.bars) > w.capacity {
		// shift instead of reslicing so the backing array does not grow without bound
		copy(w.bars, w.bars[len(w.bars)-w.capacity:])
		w.bars = w.bars[:w.capacity]
	}
	return nil
}

// Len returns the number of buffered bars.
func (w *Window) Len() int { return len(w.bars) }

// Last returns the newest bar.
func (w *Window) Last() (Bar, bool) {
	if len(w.bars) == 0 {
		return Bar{}, false
	}
	return w.bars[len(w.bars)-1], true
}

// Bars returns a copy of the buffered bars, oldest first.
func (w *Window) Bars() []Bar {
	out := make([]Bar, len(w.bars))
	copy(out, w.bars)
	return out
}
