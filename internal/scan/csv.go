package scan

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var resultHeader = []string{
	"run_id", "symbol", "kind", "timeframe", "n_tf", "n", "q", "thresh", "t",
	"dir", "start", "end", "min", "max", "final",
}

// WriteCSV writes one row per result.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, r := range results {
		rec := []string{
			r.RunID, r.Symbol, r.Kind, r.Timeframe,
			strconv.Itoa(r.TFCount), strconv.Itoa(r.N), strconv.Itoa(r.Q),
			strconv.FormatFloat(r.Thresh, 'f', -1, 64), strconv.Itoa(r.T),
			strconv.Itoa(int(r.Direction)),
			r.Start.UTC().Format(time.RFC3339), r.End.UTC().Format(time.RFC3339),
			f(r.Min), f(r.Max), f(r.Final),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
