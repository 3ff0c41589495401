package feed

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/skswe/tenxsqueeze/internal/signal"
)

// ParseInterval accepts compact bar intervals such as "5m", "1h", "1d", "1w" and the
// "interval_15m" form used by dataset names.
func ParseInterval(raw string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "interval_")
	if s == "" {
		return 0, fmt.Errorf("empty interval")
	}

	unit := time.Duration(0)
	num := s
	switch {
	case strings.HasSuffix(s, "min"):
		unit, num = time.Minute, strings.TrimSuffix(s, "min")
	case strings.HasSuffix(s, "s"):
		unit, num = time.Second, strings.TrimSuffix(s, "s")
	case strings.HasSuffix(s, "m"):
		unit, num = time.Minute, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "h"):
		unit, num = time.Hour, strings.TrimSuffix(s, "h")
	case strings.HasSuffix(s, "d"):
		unit, num = 24*time.Hour, strings.TrimSuffix(s, "d")
	case strings.HasSuffix(s, "w"):
		unit, num = 7*24*time.Hour, strings.TrimSuffix(s, "w")
	default:
		return 0, fmt.Errorf("unsupported interval %q", raw)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unsupported interval %q", raw)
	}
	return time.Duration(n) * unit, nil
}

// FormatInterval renders d in the compact form ParseInterval accepts.
func FormatInterval(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d%(7*24*time.Hour) == 0:
		return fmt.Sprintf("%dw", d/(7*24*time.Hour))
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}

// BucketStart returns the start of the interval bucket containing ts, with buckets
// shifted by offset from the unix epoch.
func BucketStart(ts time.Time, interval, offset time.Duration) time.Time {
	ms := ts.UnixMilli() - offset.Milliseconds()
	step := interval.Milliseconds()
	bucket := ms - ((ms%step)+step)%step
	return time.UnixMilli(bucket + offset.Milliseconds()).UTC()
}

// Resample aggregates bars (sorted, one symbol) into interval buckets: first open, max high,
// min low, last close, summed volume. Each output bar is stamped with its bucket start.
func Resample(bars []signal.Bar, interval, offset time.Duration) ([]signal.Bar, error) {
	if interval < time.Millisecond {
		return nil, fmt.Errorf("resample interval must be at least 1ms, got %s", interval)
	}
	var out []signal.Bar
	for i, b := range bars {
		if i > 0 && !b.Ts.After(bars[i-1].Ts) {
			return nil, fmt.Errorf("%w: resample input at %s", signal.ErrOutOfOrder, b.Ts)
		}
		start := BucketStart(b.Ts, interval, offset)
		if n := len(out); n > 0 && out[n-1].Ts.Equal(start) {
			agg := &out[n-1]
			agg.High = max(agg.High, b.High)
			agg.Low = min(agg.Low, b.Low)
			agg.Close = b.Close
			agg.Volume += b.Volume
			continue
		}
		b.Ts = start
		out = append(out, b)
	}
	return out, nil
}
