package paper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skswe/tenxsqueeze/internal/execution"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fills", "fills.jsonl")

	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	ts := time.Date(2024, 3, 1, 0, 5, 0, 0, time.UTC)
	fills := []execution.Fill{
		{Session: "s1", Symbol: "BTCUSDT", Side: execution.Buy, Qty: 1, Price: 1000, Notional: 1000, Ts: ts, Reason: ReasonEntry},
		{Session: "s1", Symbol: "BTCUSDT", Side: execution.Sell, Qty: 1, Price: 1010, Notional: 1010, Ts: ts.Add(5 * time.Minute), Reason: ReasonMaxHold},
	}
	for _, f := range fills {
		if err := recorder.Record(f); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := recorder.Record(fills[0]); err == nil {
		t.Fatalf("expected error recording after close")
	}

	decoded, err := ReadJSONL(path)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if len(decoded) != len(fills) {
		t.Fatalf("expected %d fills, got %d", len(fills), len(decoded))
	}
	for i := range fills {
		got, want := decoded[i], fills[i]
		if got.Symbol != want.Symbol || got.Side != want.Side || got.Reason != want.Reason || !got.Ts.Equal(want.Ts) || got.Price != want.Price {
			t.Fatalf("fill %d: got %+v want %+v", i, got, want)
		}
	}
}

func TestReadJSONLRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"symbol\":\"BTCUSDT\"}\nnot json\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadJSONL(path); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := ReadJSONL(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Fatalf("expected open error")
	}
}
