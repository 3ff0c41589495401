// Binary paper replays the configured bar feed through the signal engine and trades the
// signals on a virtual account.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skswe/tenxsqueeze/internal/config"
	"github.com/skswe/tenxsqueeze/internal/execution"
	"github.com/skswe/tenxsqueeze/internal/feed"
	"github.com/skswe/tenxsqueeze/internal/metrics"
	"github.com/skswe/tenxsqueeze/internal/paper"
	"github.com/skswe/tenxsqueeze/internal/risk"
	sig "github.com/skswe/tenxsqueeze/internal/signal"
	"github.com/skswe/tenxsqueeze/internal/strategy"
	"github.com/skswe/tenxsqueeze/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, envFile string
	cmd := &cobra.Command{
		Use:          "paper",
		Short:        "Replay bars through the signal engine and paper trade the signals",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath, envFile)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the YAML config")
	cmd.Flags().StringVar(&envFile, "env", ".env", "dotenv file with TENX_* overrides")
	return cmd
}

func run(ctx context.Context, configPath, envFile string) error {
	if err := config.LoadEnv(envFile); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	log := util.NewLogger(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		srv := metrics.Serve(cfg.App.MetricsAddr)
		defer srv.Close()
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	strat, err := cfg.BuildStrategy()
	if err != nil {
		return err
	}
	opts, err := cfg.FeedOptions()
	if err != nil {
		return err
	}
	src := feed.NewFeed(cfg.Feed.Provider, cfg.Feed.Symbols, log, opts...)
	tracker := strategy.NewTracker(strat, cfg.Strategy.Window)

	ledger := paper.NewLedger(256)
	recorders := []paper.FillRecorder{ledger}
	if cfg.Paper.FillsPath != "" {
		rec, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath)
		if err != nil {
			return err
		}
		defer rec.Close()
		recorders = append(recorders, rec)
	}

	account := paper.NewAccount(cfg.Paper.StartingCash, paper.WithShorting(cfg.Paper.AllowShort))
	limits := risk.Limits{
		MaxNotionalPerTrade:  cfg.Risk.MaxNotionalPerTrade,
		MaxPortfolioNotional: cfg.Risk.MaxPortfolioNotional,
	}
	runner, err := newTrader(cfg.Paper, account, limits, execution.NewExecutor(log), log, recorders...)
	if err != nil {
		return err
	}

	bars := make(chan sig.Bar, 1024)
	feedErr := make(chan error, 1)
	go func() {
		feedErr <- src.Run(ctx, bars)
		close(bars)
	}()

	log.Info().
		Str("strategy", strat.Name()).
		Str("provider", cfg.Feed.Provider).
		Strs("symbols", src.Symbols()).
		Int("window", cfg.Strategy.Window).
		Str("mode", cfg.Paper.Mode).
		Str("session", runner.Session()).
		Msg("paper engine started")

	for b := range bars {
		s, err := tracker.OnBar(b)
		if err != nil {
			log.Warn().Err(err).Str("sym", b.Symbol).Time("ts", b.Ts).Msg("bar rejected")
			continue
		}
		if s.Active() {
			log.Debug().Str("sym", s.Symbol).Str("dir", s.Direction.String()).Int("strength", s.Strength).Str("grade", s.Grade.String()).Msg("signal")
		}
		if err := runner.OnSignal(b, s); err != nil {
			return err
		}
	}
	if err := <-feedErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("feed stopped: %w", err)
	}

	snap := runner.Snapshot()
	log.Info().
		Int("fills", ledger.Len()).
		Float64("cash", snap.Cash).
		Float64("equity", snap.Equity).
		Float64("realized_pnl", snap.RealizedPnL).
		Int("open_positions", len(snap.Positions)).
		Msg("paper session finished")
	return nil
}

// newTrader picks the paper trader for the configured mode.
func newTrader(p config.Paper, account *paper.Account, limits risk.Limits, executor *execution.Executor, log zerolog.Logger, recorders ...paper.FillRecorder) (paper.Trader, error) {
	if p.Mode == config.PaperModeBuild {
		return paper.NewBuilder(paper.BuilderConfig{
			UnitNotional: p.NotionalPerTrade,
			BuildBars:    p.BuildBars,
			BreakBars:    p.BreakBars,
			MaxUnits:     p.MaxUnits,
			AllowShort:   p.AllowShort,
		}, account, limits, executor, log, recorders...)
	}
	return paper.NewRunner(paper.RunnerConfig{
		NotionalPerTrade: p.NotionalPerTrade,
		MaxHoldBars:      p.MaxHoldBars,
		AllowShort:       p.AllowShort,
		TargetATR:        p.TargetATR,
		TrailATR:         p.TrailATR,
	}, account, limits, executor, log, recorders...)
}
