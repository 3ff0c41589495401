// Package scan measures how price moves after a signal has persisted for a number of bars.
package scan

import (
	"github.com/skswe/tenxsqueeze/internal/signal"
)

// Group is an inclusive range of bar indexes on which a signal fired in one direction.
type Group struct {
	Start     int
	End       int
	Direction signal.Direction
}

// Len returns the number of bars covered by the group.
func (g Group) Len() int { return g.End - g.Start + 1 }

// Directions extracts the direction of each signal.
func Directions(sigs []signal.Signal) []signal.Direction {
	out := make([]signal.Direction, len(sigs))
	for i, s := range sigs {
		out[i] = s.Direction
	}
	return out
}

// ConsecutiveGroups returns the first n bars of every run of at least n same-direction
// signals. A run only counts when the bar before it did not carry that direction, so a run
// starting on the first bar is skipped and a long run yields a single group. Strong and
// weak grades are not distinguished. Groups are ordered by start index.
func ConsecutiveGroups(dirs []signal.Direction, n int) []Group {
	if n <= 0 {
		return nil
	}
	var out []Group
	for i := 0; i+n < len(dirs); i++ {
		d := dirs[i+1]
		if d == signal.Flat || dirs[i] == d {
			continue
		}
		run := true
		for j := i + 2; j <= i+n; j++ {
			if dirs[j] != d {
				run = false
				break
			}
		}
		if run {
			out = append(out, Group{Start: i + 1, End: i + n, Direction: d})
		}
	}
	return out
}

// PartialGroups returns windows of q bars holding exactly n bars in one direction, where the
// window ends on such a bar and the bar before the window does not carry it.
func PartialGroups(dirs []signal.Direction, q, n int) []Group {
	if q <= 0 || n <= 0 || n > q {
		return nil
	}
	var out []Group
	for i := 0; i+q < len(dirs); i++ {
		for _, d := range []signal.Direction{signal.Long, signal.Short} {
			if dirs[i] == d || dirs[i+q] != d {
				continue
			}
			count := 0
			for j := i + 1; j <= i+q; j++ {
				if dirs[j] == d {
					count++
				}
			}
			if count == n {
				out = append(out, Group{Start: i + 1, End: i + q, Direction: d})
			}
		}
	}
	return out
}

// Tail returns the t bars following the group, or false when fewer remain.
func Tail(bars []signal.Bar, g Group, t int) ([]signal.Bar, bool) {
	from := g.End + 1
	if t <= 0 || from+t > len(bars) {
		return nil, false
	}
	return bars[from : from+t], true
}
