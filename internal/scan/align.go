package scan

import (
	"fmt"
	"time"

	"github.com/skswe/tenxsqueeze/internal/signal"
)

// Frame pairs one timeframe's bars with the signal direction computed on each bar.
// Bars are stamped with their open time.
type Frame struct {
	Interval time.Duration
	Bars     []signal.Bar
	Dirs     []signal.Direction
}

func (f Frame) closeAt(i int) time.Time { return f.Bars[i].Ts.Add(f.Interval) }

// AlignTimeframes returns, for every base bar, the base direction followed by the direction
// of the latest bar of each higher timeframe that had closed by the time the base bar closed.
// A higher timeframe with no closed bar yet contributes Flat.
func AlignTimeframes(base Frame, higher ...Frame) ([][]signal.Direction, error) {
	frames := append([]Frame{base}, higher...)
	for i, f := range frames {
		if len(f.Bars) != len(f.Dirs) {
			return nil, fmt.Errorf("frame %d: %d bars but %d directions", i, len(f.Bars), len(f.Dirs))
		}
		if f.Interval <= 0 {
			return nil, fmt.Errorf("frame %d: non-positive interval %s", i, f.Interval)
		}
	}

	cursors := make([]int, len(higher))
	for i := range cursors {
		cursors[i] = -1
	}
	out := make([][]signal.Direction, len(base.Bars))
	for i := range base.Bars {
		closed := base.closeAt(i)
		row := make([]signal.Direction, len(frames))
		row[0] = base.Dirs[i]
		for j, f := range higher {
			for cursors[j]+1 < len(f.Bars) && !f.closeAt(cursors[j]+1).After(closed) {
				cursors[j]++
			}
			if cursors[j] >= 0 {
				row[j+1] = f.Dirs[cursors[j]]
			}
		}
		out[i] = row
	}
	return out, nil
}

// Reducer folds one aligned row into a single direction.
type Reducer func(row []signal.Direction) signal.Direction

// Unanimous is long or short only when every timeframe agrees.
func Unanimous(row []signal.Direction) signal.Direction {
	if len(row) == 0 {
		return signal.Flat
	}
	first := row[0]
	for _, d := range row[1:] {
		if d != first {
			return signal.Flat
		}
	}
	return first
}

// Quorum is long (short) when the fraction of long (short) timeframes exceeds thresh.
// A row where both sides clear the threshold is flat.
func Quorum(thresh float64) Reducer {
	return func(row []signal.Direction) signal.Direction {
		if len(row) == 0 {
			return signal.Flat
		}
		var longs, shorts int
		for _, d := range row {
			switch d {
			case signal.Long:
				longs++
			case signal.Short:
				shorts++
			}
		}
		n := float64(len(row))
		isLong, isShort := float64(longs)/n > thresh, float64(shorts)/n > thresh
		switch {
		case isLong && !isShort:
			return signal.Long
		case isShort && !isLong:
			return signal.Short
		default:
			return signal.Flat
		}
	}
}

// Reduce applies r to every aligned row.
func Reduce(rows [][]signal.Direction, r Reducer) []signal.Direction {
	out := make([]signal.Direction, len(rows))
	for i, row := range rows {
		out[i] = r(row)
	}
	return out
}
