package feed

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/skswe/tenxsqueeze/internal/signal"
)

// ErrBadRow is wrapped by every per-row parsing failure.
var ErrBadRow = errors.New("malformed bar row")

var columnAliases = map[string]string{
	"timestamp":    "ts",
	"timestamp_ms": "ts",
	"open_time":    "ts",
	"time":         "ts",
	"date":         "ts",
	"datetime":     "ts",
	"open":         "open",
	"high":         "high",
	"low":          "low",
	"close":        "close",
	"volume":       "volume",
}

// LoadCSV reads OHLCV bars for symbol from a CSV file with a header row.
func LoadCSV(path, symbol string) ([]signal.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer file.Close()

	bars, err := ReadCSV(file, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadCSV parses bars from r. Rows are sorted by timestamp; duplicate timestamps are rejected.
func ReadCSV(r io.Reader, symbol string) ([]signal.Bar, error) {
	br := bufio.NewReader(r)
	// spreadsheet exports are often UTF-16 with a BOM
	if b, _ := br.Peek(2); len(b) == 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		br = bufio.NewReader(transform.NewReader(br, dec))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var bars []signal.Bar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		bar, err := parseRow(rec, cols, symbol)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Ts.Before(bars[j].Ts) })
	for i := 1; i < len(bars); i++ {
		if !bars[i].Ts.After(bars[i-1].Ts) {
			return nil, fmt.Errorf("%w: duplicate timestamp %s", signal.ErrOutOfOrder, bars[i].Ts.Format(time.RFC3339))
		}
	}
	return bars, nil
}

func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if key, ok := columnAliases[name]; ok {
			if _, dup := cols[key]; !dup {
				cols[key] = i
			}
		}
	}
	for _, required := range []string{"ts", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %s column in header %v", required, header)
		}
	}
	return cols, nil
}

func parseRow(rec []string, cols map[string]int, symbol string) (signal.Bar, error) {
	field := func(key string) (string, bool) {
		idx, ok := cols[key]
		if !ok || idx >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(strings.Trim(rec[idx], `"`)), true
	}
	num := func(key string) (float64, error) {
		raw, ok := field(key)
		if !ok {
			return 0, fmt.Errorf("%w: missing %s", ErrBadRow, key)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %s=%q", ErrBadRow, key, raw)
		}
		return v, nil
	}

	raw, _ := field("ts")
	ts, err := ParseTime(raw)
	if err != nil {
		return signal.Bar{}, err
	}
	bar := signal.Bar{Symbol: symbol, Ts: ts}
	if bar.Open, err = num("open"); err != nil {
		return signal.Bar{}, err
	}
	if bar.High, err = num("high"); err != nil {
		return signal.Bar{}, err
	}
	if bar.Low, err = num("low"); err != nil {
		return signal.Bar{}, err
	}
	if bar.Close, err = num("close"); err != nil {
		return signal.Bar{}, err
	}
	if _, ok := cols["volume"]; ok {
		if bar.Volume, err = num("volume"); err != nil {
			return signal.Bar{}, err
		}
	}
	if bar.High < bar.Low {
		return signal.Bar{}, fmt.Errorf("%w: high %v below low %v", ErrBadRow, bar.High, bar.Low)
	}
	return bar, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts RFC3339, common datetime layouts (UTC), unix seconds and unix milliseconds.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrBadRow)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// anything past 1e11 cannot be seconds in a realistic range
		if n > 1e11 || n < -1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrBadRow, raw)
}

// WriteCSV writes bars with a timestamp,open,high,low,close,volume header (RFC3339 timestamps).
func WriteCSV(w io.Writer, bars []signal.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, b := range bars {
		rec := []string{b.Ts.UTC().Format(time.RFC3339), f(b.Open), f(b.High), f(b.Low), f(b.Close), f(b.Volume)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
