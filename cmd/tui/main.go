// Binary tui is an interactive editor for the indicator, strategy, paper and scan settings.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/skswe/tenxsqueeze/internal/config"
	"github.com/skswe/tenxsqueeze/internal/strategy"
)

const defaultConfigPath = "internal/config/config.yaml"

const (
	menuSummary    = "Show configuration summary"
	menuIndicators = "Edit indicator parameters"
	menuStrategy   = "Edit strategy and gates"
	menuPaper      = "Edit paper account and risk"
	menuScan       = "Edit scan grid"
	menuSave       = "Save config"
	menuPaperRun   = "Launch paper engine"
	menuScanRun    = "Run scan"
	menuReload     = "Reload config from disk"
	menuExit       = "Exit"
)

func main() {
	path := locateConfig()
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		var choice string
		err := survey.AskOne(&survey.Select{
			Message: "10x squeeze control:",
			Options: []string{menuSummary, menuIndicators, menuStrategy, menuPaper, menuScan, menuSave, menuPaperRun, menuScanRun, menuReload, menuExit},
		}, &choice)
		if errors.Is(err, terminal.InterruptErr) {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "prompt failed: %v\n", err)
			os.Exit(1)
		}

		switch choice {
		case menuSummary:
			printSummary(cfg)
		case menuIndicators:
			edit(cfg, editIndicators)
		case menuStrategy:
			edit(cfg, editStrategy)
		case menuPaper:
			edit(cfg, editPaper)
		case menuScan:
			edit(cfg, editScan)
		case menuSave:
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "not saved: %v\n", err)
			} else if err := config.Save(path, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case menuPaperRun:
			launch("./cmd/paper", "--config", path)
		case menuScanRun:
			launch("./cmd/scan", "--config", path)
		case menuReload:
			reloaded, err := config.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case menuExit:
			return
		}
	}
}

// edit applies an editor to a copy of cfg and keeps the changes only if they validate.
func edit(cfg *config.Config, editor func(*config.Config) error) {
	draft := *cfg
	draft.Indicators.EMAStack.Periods = append([]int(nil), cfg.Indicators.EMAStack.Periods...)
	if err := editor(&draft); err != nil {
		fmt.Fprintf(os.Stderr, "edit aborted: %v\n", err)
		return
	}
	if err := draft.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "changes discarded: %v\n", err)
		return
	}
	*cfg = draft
}

func printSummary(cfg *config.Config) {
	sq, tr := cfg.Indicators.Squeeze, cfg.Indicators.Trend
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Strategy: %s (window %d bars)\n", cfg.Strategy.Mode, cfg.Strategy.Window)
	fmt.Printf("Gates: momentum=%t good_momentum=%t trend=%t in_channel=%t\n",
		cfg.Strategy.RequireMomentum, cfg.Strategy.RequireGoodMomentum, cfg.Strategy.RequireTrend, cfg.Strategy.RequireInChannel)
	fmt.Printf("Squeeze: BB %d x %.2f | KC %d atr %d x %.2f/%.2f/%.2f | momentum %d\n",
		sq.BBPeriod, sq.BBMult, sq.KCPeriod, sq.ATRPeriod, sq.KCMultLow, sq.KCMultMid, sq.KCMultHigh, sq.MomentumPeriod)
	fmt.Printf("Trend: ADX %d DMI %d threshold %.1f\n", tr.ADXPeriod, tr.DMIPeriod, tr.Threshold)
	fmt.Printf("EMA stack: %v\n", cfg.Indicators.EMAStack.Periods)
	fmt.Printf("Feed: %s %v %s\n", cfg.Feed.Provider, cfg.Feed.Symbols, cfg.Feed.Path)
	fmt.Printf("Paper: %s | cash $%.2f | $%.2f per trade | max hold %d | shorts %t\n",
		cfg.Paper.Mode, cfg.Paper.StartingCash, cfg.Paper.NotionalPerTrade, cfg.Paper.MaxHoldBars, cfg.Paper.AllowShort)
	fmt.Printf("Exits: target %.2f atr | trail %.2f atr | build after %d bars, break after %d, max units %d\n",
		cfg.Paper.TargetATR, cfg.Paper.TrailATR, cfg.Paper.BuildBars, cfg.Paper.BreakBars, cfg.Paper.MaxUnits)
	fmt.Printf("Risk: $%.2f per trade | $%.2f portfolio\n", cfg.Risk.MaxNotionalPerTrade, cfg.Risk.MaxPortfolioNotional)
	tfs := make([]string, 0, len(cfg.Scan.Timeframes))
	for _, tf := range cfg.Scan.Timeframes {
		if tf.Offset != "" {
			tfs = append(tfs, tf.Interval+"+"+tf.Offset)
		} else {
			tfs = append(tfs, tf.Interval)
		}
	}
	fmt.Printf("Scan: timeframes %s | N %v | T %v | mtf %v | thresholds %v | workers %d\n",
		strings.Join(tfs, ", "), cfg.Scan.N, cfg.Scan.T, cfg.Scan.MTFCounts, cfg.Scan.Thresholds, cfg.Scan.Workers)
}

func editIndicators(cfg *config.Config) error {
	sq := &cfg.Indicators.Squeeze
	tr := &cfg.Indicators.Trend
	steps := []error{
		askInt("Bollinger period", &sq.BBPeriod),
		askFloat("Bollinger multiplier", &sq.BBMult),
		askInt("Keltner period", &sq.KCPeriod),
		askInt("ATR period", &sq.ATRPeriod),
		askFloat("Keltner multiplier (low squeeze)", &sq.KCMultLow),
		askFloat("Keltner multiplier (medium squeeze)", &sq.KCMultMid),
		askFloat("Keltner multiplier (high squeeze)", &sq.KCMultHigh),
		askInt("Momentum period", &sq.MomentumPeriod),
		askInt("ADX period", &tr.ADXPeriod),
		askInt("DMI period", &tr.DMIPeriod),
		askFloat("ADX trend threshold", &tr.Threshold),
		askInts("EMA stack periods (fastest first)", &cfg.Indicators.EMAStack.Periods),
	}
	return errors.Join(steps...)
}

func editStrategy(cfg *config.Config) error {
	s := &cfg.Strategy
	if err := survey.AskOne(&survey.Select{
		Message: "Signal engine:",
		Options: strategy.Modes(),
		Default: canonicalMode(s.Mode),
	}, &s.Mode); err != nil {
		return err
	}
	return errors.Join(
		askInt("Bars kept per symbol", &s.Window),
		survey.AskOne(&survey.Confirm{Message: "Require accelerating momentum (10xsqueeze)?", Default: s.RequireMomentum}, &s.RequireMomentum),
		survey.AskOne(&survey.Confirm{Message: "Require a momentum reset since the last zero cross (10xsqueeze)?", Default: s.RequireGoodMomentum}, &s.RequireGoodMomentum),
		survey.AskOne(&survey.Confirm{Message: "Require an ADX trend agreeing with the stack (big3)?", Default: s.RequireTrend}, &s.RequireTrend),
		survey.AskOne(&survey.Confirm{Message: "Require the close inside the Keltner channel (big3)?", Default: s.RequireInChannel}, &s.RequireInChannel),
	)
}

func editPaper(cfg *config.Config) error {
	mode := cfg.Paper.Mode
	if mode == "" {
		mode = config.PaperModeFlip
	}
	if err := survey.AskOne(&survey.Select{
		Message: "Paper mode:",
		Options: []string{config.PaperModeFlip, config.PaperModeBuild},
		Default: mode,
	}, &cfg.Paper.Mode); err != nil {
		return err
	}
	return errors.Join(
		askFloat("Starting cash", &cfg.Paper.StartingCash),
		askFloat("Notional per trade (per unit in build mode)", &cfg.Paper.NotionalPerTrade),
		askInt("Max hold bars (0 = until opposite signal)", &cfg.Paper.MaxHoldBars),
		askFloat("ATR take-profit multiple (0 = off)", &cfg.Paper.TargetATR),
		askFloat("ATR trailing stop multiple (0 = off)", &cfg.Paper.TrailATR),
		askInt("Signal strength that starts a build", &cfg.Paper.BuildBars),
		askInt("Flat bars that end a build", &cfg.Paper.BreakBars),
		askInt("Max units per build (0 = risk limits only)", &cfg.Paper.MaxUnits),
		survey.AskOne(&survey.Confirm{Message: "Allow shorts?", Default: cfg.Paper.AllowShort}, &cfg.Paper.AllowShort),
		askFloat("Max notional per trade", &cfg.Risk.MaxNotionalPerTrade),
		askFloat("Max portfolio notional (0 = off)", &cfg.Risk.MaxPortfolioNotional),
	)
}

func editScan(cfg *config.Config) error {
	sc := &cfg.Scan
	var raw string
	current := make([]string, 0, len(sc.Timeframes))
	for _, tf := range sc.Timeframes {
		if tf.Offset != "" {
			current = append(current, tf.Interval+"@"+tf.Offset)
		} else {
			current = append(current, tf.Interval)
		}
	}
	if err := survey.AskOne(&survey.Input{
		Message: "Timeframes (comma-separated, interval[@offset], base first):",
		Default: strings.Join(current, ","),
	}, &raw, survey.WithValidator(survey.Required)); err != nil {
		return err
	}
	sc.Timeframes = parseTimeframes(raw)
	return errors.Join(
		askInts("Consecutive bar counts N", &sc.N),
		askInts("Tail lengths T", &sc.T),
		askInts("Multi-timeframe counts", &sc.MTFCounts),
		askInt("Workers", &sc.Workers),
	)
}

func parseTimeframes(raw string) []config.ScanTimeframe {
	var out []config.ScanTimeframe
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		interval, offset, _ := strings.Cut(part, "@")
		out = append(out, config.ScanTimeframe{Interval: strings.TrimSpace(interval), Offset: strings.TrimSpace(offset)})
	}
	return out
}

func canonicalMode(mode string) string {
	for _, m := range strategy.Modes() {
		if strings.EqualFold(m, mode) {
			return m
		}
	}
	return strategy.ModeTenX
}

func askInt(label string, target *int) error {
	var raw string
	err := survey.AskOne(&survey.Input{Message: label + ":", Default: strconv.Itoa(*target)}, &raw,
		survey.WithValidator(func(val interface{}) error {
			_, err := strconv.Atoi(strings.TrimSpace(val.(string)))
			return err
		}))
	if err != nil {
		return err
	}
	*target, _ = strconv.Atoi(strings.TrimSpace(raw))
	return nil
}

func askFloat(label string, target *float64) error {
	var raw string
	err := survey.AskOne(&survey.Input{Message: label + ":", Default: strconv.FormatFloat(*target, 'f', -1, 64)}, &raw,
		survey.WithValidator(func(val interface{}) error {
			_, err := strconv.ParseFloat(strings.TrimSpace(val.(string)), 64)
			return err
		}))
	if err != nil {
		return err
	}
	*target, _ = strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return nil
}

func askInts(label string, target *[]int) error {
	current := make([]string, len(*target))
	for i, v := range *target {
		current[i] = strconv.Itoa(v)
	}
	var raw string
	err := survey.AskOne(&survey.Input{Message: label + " (comma-separated):", Default: strings.Join(current, ",")}, &raw,
		survey.WithValidator(func(val interface{}) error {
			_, err := parseInts(val.(string))
			return err
		}))
	if err != nil {
		return err
	}
	*target, _ = parseInts(raw)
	return nil
}

func parseInts(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", part)
		}
		out = append(out, v)
	}
	return out, nil
}

func launch(pkg string, args ...string) {
	fmt.Printf("Launching %s (Ctrl+C to stop)...\n", pkg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", append([]string{"run", pkg}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start %s: %v\n", pkg, err)
		return
	}
	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	for stop := false; !stop && ctx.Err() == nil; {
		if err := survey.AskOne(&survey.Confirm{Message: "Stop and return to the menu?", Default: true}, &stop); err != nil {
			break
		}
	}
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func locateConfig() string {
	if env := os.Getenv("TENX_CONFIG"); env != "" {
		return filepath.Clean(env)
	}
	return filepath.Clean(defaultConfigPath)
}
