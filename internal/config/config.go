// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skswe/tenxsqueeze/internal/feed"
	"github.com/skswe/tenxsqueeze/internal/indicator"
	"github.com/skswe/tenxsqueeze/internal/scan"
	"github.com/skswe/tenxsqueeze/internal/strategy"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Feed selects the bar source replayed by the paper engine.
type Feed struct {
	Provider string   `yaml:"provider"` // csv|stub
	Symbols  []string `yaml:"symbols"`
	Path     string   `yaml:"path"` // may contain {symbol}
	Interval string   `yaml:"interval"`
	Resample string   `yaml:"resample"`
	Offset   string   `yaml:"offset"`
	PaceMs   int      `yaml:"pace_ms"`
	StubBars int      `yaml:"stub_bars"`
}

// Indicators groups the classifier parameter sets.
type Indicators struct {
	Squeeze  indicator.SqueezeParams `yaml:"squeeze"`
	Trend    indicator.TrendParams   `yaml:"trend"`
	EMAStack indicator.StackParams   `yaml:"ema_stack"`
}

// Strategy specifies which signal engine is active along with its optional gates.
type Strategy struct {
	Mode                string `yaml:"mode"`
	Window              int    `yaml:"window"`
	RequireMomentum     bool   `yaml:"require_momentum"`
	RequireGoodMomentum bool   `yaml:"require_good_momentum"`
	RequireTrend        bool   `yaml:"require_trend"`
	RequireInChannel    bool   `yaml:"require_in_channel"`
}

// Risk encodes guard-rails for how much size the paper runner may take on.
type Risk struct {
	MaxNotionalPerTrade  float64 `yaml:"max_notional_per_trade"`
	MaxPortfolioNotional float64 `yaml:"max_portfolio_notional"`
}

// Paper trading modes.
const (
	PaperModeFlip  = "flip"
	PaperModeBuild = "build"
)

// Paper captures paper-trading account settings. Flip mode holds one position per symbol
// and exits on an opposite signal, the ATR target or trail, or max_hold_bars. Build mode
// scales in one notional_per_trade unit per bar and exits on the Keltner bands.
type Paper struct {
	Mode             string  `yaml:"mode"` // flip|build
	StartingCash     float64 `yaml:"starting_cash"`
	NotionalPerTrade float64 `yaml:"notional_per_trade"`
	MaxHoldBars      int     `yaml:"max_hold_bars"`
	TargetATR        float64 `yaml:"target_atr"`
	TrailATR         float64 `yaml:"trail_atr"`
	BuildBars        int     `yaml:"build_bars"`
	BreakBars        int     `yaml:"break_bars"`
	MaxUnits         int     `yaml:"max_units"`
	AllowShort       bool    `yaml:"allow_short"`
	FillsPath        string  `yaml:"fills_path"`
}

// ScanTimeframe is one resampling of the base bars in a scan.
type ScanTimeframe struct {
	Interval string `yaml:"interval"`
	Offset   string `yaml:"offset"`
}

// ScanPartial asks for windows of Q bars holding exactly N signal bars.
type ScanPartial struct {
	N int `yaml:"n"`
	Q int `yaml:"q"`
}

// Scan configures the signal persistence sweep.
type Scan struct {
	Timeframes []ScanTimeframe `yaml:"timeframes"`
	N          []int           `yaml:"n"`
	T          []int           `yaml:"t"`
	Partial    []ScanPartial   `yaml:"partial"`
	MTFCounts  []int           `yaml:"mtf_counts"`
	Thresholds []float64       `yaml:"thresholds"`
	Workers    int             `yaml:"workers"`
	Output     string          `yaml:"output"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App        App        `yaml:"app"`
	Feed       Feed       `yaml:"feed"`
	Indicators Indicators `yaml:"indicators"`
	Strategy   Strategy   `yaml:"strategy"`
	Risk       Risk       `yaml:"risk"`
	Paper      Paper      `yaml:"paper"`
	Scan       Scan       `yaml:"scan"`
}

// Default returns a configuration that validates as-is.
func Default() *Config {
	return &Config{
		App: App{Name: "tenxsqueeze", Env: "dev", MetricsAddr: ":9100", LogLevel: "info"},
		Feed: Feed{
			Provider: feed.ProviderStub,
			Symbols:  []string{"BTCUSDT"},
			Interval: "5m",
			StubBars: 500,
		},
		Indicators: Indicators{
			Squeeze:  indicator.DefaultSqueezeParams(),
			Trend:    indicator.DefaultTrendParams(),
			EMAStack: indicator.DefaultStackParams(),
		},
		Strategy: Strategy{Mode: strategy.ModeTenX, Window: 200},
		Risk:     Risk{MaxNotionalPerTrade: 1000, MaxPortfolioNotional: 5000},
		Paper: Paper{
			Mode:             PaperModeFlip,
			StartingCash:     10000,
			NotionalPerTrade: 500,
			MaxHoldBars:      20,
			TargetATR:        2.3,
			TrailATR:         0.7,
			BuildBars:        6,
			BreakBars:        3,
		},
		Scan: Scan{
			Timeframes: []ScanTimeframe{
				{Interval: "5m"},
				{Interval: "15m"},
				{Interval: "30m"},
				{Interval: "1h", Offset: "30m"},
			},
			N:          []int{1, 2, 3, 4, 5},
			T:          []int{1, 3, 6, 12},
			Partial:    []ScanPartial{{N: 2, Q: 3}, {N: 3, Q: 5}},
			MTFCounts:  []int{2, 3, 4},
			Thresholds: []float64{0.5},
			Workers:    4,
			Output:     "scan_results.csv",
		},
	}
}

// Load reads a YAML file from disk over the defaults and validates the result.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate builds every indicator and strategy parameter set and checks the remaining sections.
// Indicator errors wrap indicator.ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.Indicators.Squeeze.Validate(); err != nil {
		return fmt.Errorf("indicators.squeeze: %w", err)
	}
	if err := c.Indicators.Trend.Validate(); err != nil {
		return fmt.Errorf("indicators.trend: %w", err)
	}
	if err := c.Indicators.EMAStack.Validate(); err != nil {
		return fmt.Errorf("indicators.ema_stack: %w", err)
	}
	if _, err := c.BuildStrategy(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if c.Strategy.Window < 0 {
		return fmt.Errorf("strategy: window must not be negative, got %d", c.Strategy.Window)
	}
	if _, err := c.FeedOptions(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	if c.Risk.MaxNotionalPerTrade <= 0 {
		return fmt.Errorf("risk: max_notional_per_trade must be positive")
	}
	if c.Paper.StartingCash < 0 || c.Paper.NotionalPerTrade <= 0 || c.Paper.MaxHoldBars < 0 {
		return fmt.Errorf("paper: starting_cash >= 0, notional_per_trade > 0 and max_hold_bars >= 0 required")
	}
	switch c.Paper.Mode {
	case "", PaperModeFlip, PaperModeBuild:
	default:
		return fmt.Errorf("paper: unknown mode %q", c.Paper.Mode)
	}
	if c.Paper.TargetATR < 0 || c.Paper.TrailATR < 0 {
		return fmt.Errorf("paper: target_atr and trail_atr must not be negative")
	}
	if c.Paper.Mode == PaperModeBuild && (c.Paper.BuildBars < 1 || c.Paper.BreakBars < 1 || c.Paper.MaxUnits < 0) {
		return fmt.Errorf("paper: build mode needs build_bars >= 1, break_bars >= 1 and max_units >= 0")
	}
	if _, err := c.ScanConfig(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

// StrategyParams assembles the engine parameters from the indicator and strategy sections.
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{
		Squeeze:             c.Indicators.Squeeze,
		Trend:               c.Indicators.Trend,
		Stack:               c.Indicators.EMAStack,
		RequireMomentum:     c.Strategy.RequireMomentum,
		RequireGoodMomentum: c.Strategy.RequireGoodMomentum,
		RequireTrend:        c.Strategy.RequireTrend,
		RequireInChannel:    c.Strategy.RequireInChannel,
	}
}

// BuildStrategy returns the configured signal engine.
func (c *Config) BuildStrategy() (strategy.Strategy, error) {
	return strategy.Build(c.Strategy.Mode, c.StrategyParams())
}

// FeedOptions translates the feed section into feed options.
func (c *Config) FeedOptions() ([]feed.Option, error) {
	f := c.Feed
	switch f.Provider {
	case "", feed.ProviderStub, feed.ProviderCSV:
	default:
		return nil, fmt.Errorf("unknown provider %q", f.Provider)
	}
	if f.Provider == feed.ProviderCSV && f.Path == "" {
		return nil, fmt.Errorf("csv provider requires a path")
	}
	interval, err := parseOptional(f.Interval)
	if err != nil {
		return nil, err
	}
	resample, err := parseOptional(f.Resample)
	if err != nil {
		return nil, err
	}
	offset, err := parseOptional(f.Offset)
	if err != nil {
		return nil, err
	}
	if f.PaceMs < 0 {
		return nil, fmt.Errorf("pace_ms must not be negative")
	}
	return []feed.Option{
		feed.WithPath(f.Path),
		feed.WithResample(resample, offset),
		feed.WithPace(time.Duration(f.PaceMs) * time.Millisecond),
		feed.WithStub(interval, f.StubBars, time.Time{}),
	}, nil
}

// ScanConfig translates and validates the scan section.
func (c *Config) ScanConfig() (scan.SweepConfig, error) {
	s := c.Scan
	out := scan.SweepConfig{
		N:          s.N,
		T:          s.T,
		MTFCounts:  s.MTFCounts,
		Thresholds: s.Thresholds,
		Workers:    s.Workers,
	}
	for _, tf := range s.Timeframes {
		interval, err := feed.ParseInterval(tf.Interval)
		if err != nil {
			return scan.SweepConfig{}, err
		}
		offset, err := parseOptional(tf.Offset)
		if err != nil {
			return scan.SweepConfig{}, err
		}
		out.Timeframes = append(out.Timeframes, scan.Timeframe{Name: feed.FormatInterval(interval), Interval: interval, Offset: offset})
	}
	for _, p := range s.Partial {
		out.Partial = append(out.Partial, scan.PartialSpec{N: p.N, Q: p.Q})
	}
	if err := out.Validate(); err != nil {
		return scan.SweepConfig{}, err
	}
	return out, nil
}

func parseOptional(raw string) (time.Duration, error) {
	if raw == "" || raw == "0" {
		return 0, nil
	}
	return feed.ParseInterval(raw)
}
