package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skswe/tenxsqueeze/internal/indicator"
	"github.com/skswe/tenxsqueeze/internal/strategy"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "tenx-test" || cfg.App.LogLevel != "debug" || cfg.App.MetricsAddr != ":9200" {
		t.Fatalf("unexpected App: %+v", cfg.App)
	}
	if len(cfg.Feed.Symbols) != 2 || cfg.Feed.Symbols[1] != "ETHUSDT" {
		t.Fatalf("unexpected symbols %+v", cfg.Feed.Symbols)
	}
	if cfg.Indicators.Squeeze.ATRPeriod != 14 || cfg.Indicators.Squeeze.MomentumPeriod != 12 {
		t.Fatalf("unexpected squeeze params %+v", cfg.Indicators.Squeeze)
	}
	if cfg.Indicators.Trend.DMIPeriod != 10 || cfg.Indicators.Trend.Threshold != 25 {
		t.Fatalf("unexpected trend params %+v", cfg.Indicators.Trend)
	}
	if got := cfg.Indicators.EMAStack.Periods; len(got) != 3 || got[2] != 34 {
		t.Fatalf("unexpected ema periods %v", got)
	}
	if cfg.Strategy.Mode != "big3" || cfg.Strategy.Window != 300 || !cfg.Strategy.RequireTrend || !cfg.Strategy.RequireGoodMomentum {
		t.Fatalf("unexpected strategy %+v", cfg.Strategy)
	}
	if cfg.Risk.MaxNotionalPerTrade != 250 {
		t.Fatalf("unexpected max notional: %.2f", cfg.Risk.MaxNotionalPerTrade)
	}
	// unset in the file, so the default survives
	if cfg.Risk.MaxPortfolioNotional != 5000 {
		t.Fatalf("expected default portfolio notional, got %.2f", cfg.Risk.MaxPortfolioNotional)
	}
	if cfg.Paper.StartingCash != 5000 || cfg.Paper.MaxHoldBars != 12 || !cfg.Paper.AllowShort {
		t.Fatalf("unexpected paper section %+v", cfg.Paper)
	}
	if cfg.Paper.Mode != PaperModeBuild || cfg.Paper.MaxUnits != 4 || cfg.Paper.BuildBars != 6 || cfg.Paper.TargetATR != 2.3 {
		t.Fatalf("unexpected paper build settings %+v", cfg.Paper)
	}
	if cfg.Scan.Workers != 8 || len(cfg.Scan.Timeframes) != 2 {
		t.Fatalf("unexpected scan section %+v", cfg.Scan)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadRejectsInvalidIndicators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	body := "indicators:\n  ema_stack:\n    periods: [21, 8]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, indicator.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg, err := Load("config.yaml")
	if err != nil {
		t.Fatalf("shipped config invalid: %v", err)
	}
	if cfg.Strategy.Mode != strategy.ModeTenX {
		t.Fatalf("unexpected shipped mode %s", cfg.Strategy.Mode)
	}
}

func TestValidateSections(t *testing.T) {
	mutate := []func(*Config){
		func(c *Config) { c.Strategy.Mode = "obi" },
		func(c *Config) { c.Strategy.Window = -1 },
		func(c *Config) { c.Feed.Provider = "binance" },
		func(c *Config) { c.Feed.Provider = "csv"; c.Feed.Path = "" },
		func(c *Config) { c.Feed.Interval = "5y" },
		func(c *Config) { c.Risk.MaxNotionalPerTrade = 0 },
		func(c *Config) { c.Paper.NotionalPerTrade = 0 },
		func(c *Config) { c.Paper.Mode = "hedge" },
		func(c *Config) { c.Paper.TrailATR = -1 },
		func(c *Config) { c.Paper.Mode = PaperModeBuild; c.Paper.BreakBars = 0 },
		func(c *Config) { c.Scan.T = nil },
		func(c *Config) { c.Scan.Timeframes = []ScanTimeframe{{Interval: "soon"}} },
		func(c *Config) { c.Scan.MTFCounts = []int{9} },
	}
	for i, m := range mutate {
		cfg := Default()
		m(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestScanConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sc, err := cfg.ScanConfig()
	if err != nil {
		t.Fatalf("ScanConfig: %v", err)
	}
	if len(sc.Timeframes) != 2 || sc.Timeframes[1].Interval != time.Hour || sc.Timeframes[1].Offset != 30*time.Minute {
		t.Fatalf("unexpected timeframes %+v", sc.Timeframes)
	}
	if sc.Timeframes[1].Name != "1h" || sc.Partial[0].Q != 4 {
		t.Fatalf("unexpected scan config %+v", sc)
	}
}

func TestStrategyParamsCarryGates(t *testing.T) {
	cfg := Default()
	cfg.Strategy.RequireMomentum = true
	cfg.Strategy.RequireInChannel = true
	cfg.Strategy.RequireGoodMomentum = true
	p := cfg.StrategyParams()
	if !p.RequireMomentum || !p.RequireInChannel || !p.RequireGoodMomentum || p.RequireTrend {
		t.Fatalf("gates not carried: %+v", p)
	}
	s, err := cfg.BuildStrategy()
	if err != nil {
		t.Fatalf("BuildStrategy: %v", err)
	}
	if s.Name() != strategy.ModeTenX {
		t.Fatalf("unexpected strategy %s", s.Name())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Strategy.Mode = strategy.ModeBig3
	cfg.Indicators.Squeeze.KCMultMid = 1.25
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Strategy.Mode != strategy.ModeBig3 || loaded.Indicators.Squeeze.KCMultMid != 1.25 {
		t.Fatalf("round trip lost fields: %+v", loaded)
	}
	if err := Save(path, nil); err == nil {
		t.Fatalf("expected error saving nil config")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvMetricsAddr, ":9999")
	t.Setenv(EnvFeedPath, "bars/{symbol}.csv")
	t.Setenv(EnvStrategyMode, " big3 ")

	cfg := Default()
	cfg.ApplyEnv()
	if cfg.App.LogLevel != "warn" || cfg.App.MetricsAddr != ":9999" {
		t.Fatalf("app overrides not applied: %+v", cfg.App)
	}
	if cfg.Feed.Path != "bars/{symbol}.csv" || cfg.Feed.Provider != "csv" {
		t.Fatalf("feed overrides not applied: %+v", cfg.Feed)
	}
	if cfg.Strategy.Mode != "big3" {
		t.Fatalf("mode override not applied: %q", cfg.Strategy.Mode)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(EnvStrategyMode+"=big3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvStrategyMode, "")
	os.Unsetenv(EnvStrategyMode)
	if err := LoadEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv(EnvStrategyMode); got != "big3" {
		t.Fatalf("expected %s from .env, got %q", EnvStrategyMode, got)
	}
}
