package scan

import (
	"sort"
)

// Summary aggregates the results sharing one grid cell.
type Summary struct {
	Kind      string
	Timeframe string
	TFCount   int
	N         int
	Q         int
	Thresh    float64
	T         int
	Count     int
	// WinRate is the fraction of results with a positive final move.
	WinRate   float64
	MeanFinal float64
	MeanMax   float64
	MeanMin   float64
}

type summaryKey struct {
	kind, timeframe string
	tfCount, n, q   int
	thresh          float64
	t               int
}

// Summarize groups results across symbols by grid cell.
func Summarize(results []Result) []Summary {
	cells := make(map[summaryKey]*Summary)
	var order []summaryKey
	for _, r := range results {
		k := summaryKey{r.Kind, r.Timeframe, r.TFCount, r.N, r.Q, r.Thresh, r.T}
		s := cells[k]
		if s == nil {
			s = &Summary{Kind: r.Kind, Timeframe: r.Timeframe, TFCount: r.TFCount, N: r.N, Q: r.Q, Thresh: r.Thresh, T: r.T}
			cells[k] = s
			order = append(order, k)
		}
		s.Count++
		if r.Final > 0 {
			s.WinRate++
		}
		s.MeanFinal += r.Final
		s.MeanMax += r.Max
		s.MeanMin += r.Min
	}

	out := make([]Summary, 0, len(order))
	for _, k := range order {
		s := *cells[k]
		n := float64(s.Count)
		s.WinRate /= n
		s.MeanFinal /= n
		s.MeanMax /= n
		s.MeanMin /= n
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Kind != b.Kind:
			return a.Kind < b.Kind
		case a.TFCount != b.TFCount:
			return a.TFCount < b.TFCount
		case a.Timeframe != b.Timeframe:
			return a.Timeframe < b.Timeframe
		case a.N != b.N:
			return a.N < b.N
		case a.Q != b.Q:
			return a.Q < b.Q
		case a.Thresh != b.Thresh:
			return a.Thresh < b.Thresh
		default:
			return a.T < b.T
		}
	})
	return out
}
