package scan

import (
	"fmt"

	"github.com/skswe/tenxsqueeze/internal/signal"
)

// Movement is the excursion over a tail in percent of the first tail bar's open, signed so
// that positive values favour the signal direction.
type Movement struct {
	Min   float64
	Max   float64
	Final float64
}

// PriceMovement measures the worst, best and closing move over tail for a position in dir.
func PriceMovement(tail []signal.Bar, dir signal.Direction) (Movement, error) {
	if len(tail) == 0 {
		return Movement{}, fmt.Errorf("empty tail")
	}
	if dir == signal.Flat {
		return Movement{}, fmt.Errorf("flat direction has no movement")
	}
	open := tail[0].Open
	if open <= 0 {
		return Movement{}, fmt.Errorf("non-positive open %v at %s", open, tail[0].Ts)
	}
	hi, lo := tail[0].High, tail[0].Low
	for _, b := range tail[1:] {
		hi = max(hi, b.High)
		lo = min(lo, b.Low)
	}
	closePx := tail[len(tail)-1].Close

	pct := func(v float64) float64 { return 100 * v / open }
	m := Movement{Final: pct(closePx-open) * float64(dir)}
	if dir == signal.Long {
		m.Min, m.Max = pct(lo-open), pct(hi-open)
	} else {
		m.Min, m.Max = pct(open-hi), pct(open-lo)
	}
	return m, nil
}
