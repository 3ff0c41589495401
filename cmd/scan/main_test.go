package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skswe/tenxsqueeze/internal/config"
	"github.com/skswe/tenxsqueeze/internal/feed"
	"github.com/skswe/tenxsqueeze/internal/scan"
)

func writeBars(t *testing.T, dir, symbol string, seed int) string {
	t.Helper()
	var buf bytes.Buffer
	bars := feed.Synthetic(symbol, seed, 600, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)
	if err := feed.WriteCSV(&buf, bars); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	path := filepath.Join(dir, symbol+".csv")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestRunWritesResultsAndSummary(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := config.Save(cfgPath, config.Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	files := []string{writeBars(t, dir, "AAA", 0), writeBars(t, dir, "BBB", 1), filepath.Join(dir, "missing.csv")}
	out := filepath.Join(dir, "out", "results.csv")

	var stdout bytes.Buffer
	opts := &options{configPath: cfgPath, envFile: filepath.Join(dir, "none.env"), mode: "big3", output: out, workers: 2, top: 5}
	if err := run(context.Background(), opts, files, &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if !strings.HasPrefix(string(data), "run_id,symbol,kind") {
		t.Fatalf("unexpected results header: %q", strings.SplitN(string(data), "\n", 2)[0])
	}
	if !strings.Contains(stdout.String(), "big3") {
		t.Fatalf("expected a summary naming the strategy, got %q", stdout.String())
	}
}

func TestRunFailsWithoutData(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := config.Save(cfgPath, config.Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	opts := &options{configPath: cfgPath, envFile: filepath.Join(dir, "none.env"), output: "-"}
	if err := run(context.Background(), opts, []string{filepath.Join(dir, "nope.csv")}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected an error when no file loads")
	}
}

func TestConfiguredFiles(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Path = "data/{symbol}_5m.csv"
	cfg.Feed.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	got := configuredFiles(cfg)
	if len(got) != 2 || got[1] != "data/ETHUSDT_5m.csv" {
		t.Fatalf("unexpected files %v", got)
	}
	cfg.Feed.Path = "data/one.csv"
	if got := configuredFiles(cfg); len(got) != 1 || got[0] != "data/one.csv" {
		t.Fatalf("unexpected files %v", got)
	}
	cfg.Feed.Path = ""
	if got := configuredFiles(cfg); len(got) != 0 {
		t.Fatalf("expected no files, got %v", got)
	}
}

func TestLoadJobsNamesSymbolsAfterFiles(t *testing.T) {
	dir := t.TempDir()
	jobs := loadJobs([]string{writeBars(t, dir, "SOLUSDT", 2), filepath.Join(dir, "gone.csv")}, zerolog.Nop())
	if len(jobs) != 1 || jobs[0].Symbol != "SOLUSDT" || len(jobs[0].Bars) != 600 {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}

func TestSummaryRows(t *testing.T) {
	summaries := []scan.Summary{
		{Kind: scan.KindConsecutive, Timeframe: "5m", TFCount: 1, N: 2, T: 3, Count: 4, WinRate: 0.75, MeanFinal: 0.5},
		{Kind: scan.KindPartial, Timeframe: "15m", TFCount: 1, N: 2, Q: 3, T: 3, Count: 1, MeanFinal: -0.25},
	}
	rows := summaryRows(summaries, 0)
	if len(rows) != 2 || len(rows[0]) != len(summaryHeaders) {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows[0][4] != "-" || rows[1][4] != "3" || rows[0][8] != "75.0" || rows[1][9] != "-0.250" {
		t.Fatalf("unexpected cells %v", rows)
	}
	if got := summaryRows(summaries, 1); len(got) != 1 {
		t.Fatalf("expected top to cap rows, got %d", len(got))
	}
	if out := renderSummary("10xsqueeze", nil, 5); !strings.Contains(out, "no signal groups") {
		t.Fatalf("unexpected empty render %q", out)
	}
}
