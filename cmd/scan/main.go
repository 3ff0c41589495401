// Binary scan sweeps the signal engine over CSV bar files and reports how price moved after
// runs of aligned signals.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skswe/tenxsqueeze/internal/config"
	"github.com/skswe/tenxsqueeze/internal/feed"
	"github.com/skswe/tenxsqueeze/internal/scan"
	"github.com/skswe/tenxsqueeze/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

type options struct {
	configPath string
	envFile    string
	mode       string
	output     string
	workers    int
	top        int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "scan [CSV files...]",
		Short: "Measure price movement after persistent squeeze signals",
		Long: `Scan runs the configured signal engine over every bar file, groups runs of aligned
signals per timeframe, and records the price movement over the following bars.
Without arguments the files come from feed.path with {symbol} replaced by each feed symbol.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, opts, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to the YAML config")
	cmd.Flags().StringVar(&opts.envFile, "env", ".env", "dotenv file with TENX_* overrides")
	cmd.Flags().StringVarP(&opts.mode, "strategy", "s", "", "signal engine override (10xsqueeze|big3)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "results CSV path, - for stdout (default scan.output)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "parallel jobs (default scan.workers)")
	cmd.Flags().IntVar(&opts.top, "top", 20, "summary rows to print, 0 for all")
	return cmd
}

func run(ctx context.Context, opts *options, files []string, stdout io.Writer) error {
	if err := config.LoadEnv(opts.envFile); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if opts.mode != "" {
		cfg.Strategy.Mode = opts.mode
	}
	if opts.workers > 0 {
		cfg.Scan.Workers = opts.workers
	}
	if opts.output != "" {
		cfg.Scan.Output = opts.output
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	log := util.NewConsoleLogger(cfg.App.LogLevel)

	strat, err := cfg.BuildStrategy()
	if err != nil {
		return err
	}
	sweepCfg, err := cfg.ScanConfig()
	if err != nil {
		return err
	}
	sweep, err := scan.NewSweep(strat, sweepCfg, log)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		files = configuredFiles(cfg)
	}
	jobs := loadJobs(files, log)
	if len(jobs) == 0 {
		return fmt.Errorf("no bar files could be loaded")
	}

	started := time.Now()
	results, err := sweep.Run(ctx, jobs)
	if err != nil {
		return err
	}
	log.Info().
		Str("strategy", strat.Name()).
		Int("symbols", len(jobs)).
		Int("results", len(results)).
		Dur("took", time.Since(started)).
		Msg("scan complete")

	if err := writeResults(cfg.Scan.Output, results, stdout); err != nil {
		return err
	}
	if cfg.Scan.Output != "-" {
		summaries := scan.Summarize(results)
		fmt.Fprintln(stdout, renderSummary(strat.Name(), summaries, opts.top))
	}
	return nil
}

// configuredFiles expands feed.path for every configured symbol.
func configuredFiles(cfg *config.Config) []string {
	if cfg.Feed.Path == "" {
		return nil
	}
	if !strings.Contains(cfg.Feed.Path, feed.SymbolPlaceholder) {
		return []string{cfg.Feed.Path}
	}
	files := make([]string, 0, len(cfg.Feed.Symbols))
	for _, sym := range cfg.Feed.Symbols {
		files = append(files, strings.ReplaceAll(cfg.Feed.Path, feed.SymbolPlaceholder, sym))
	}
	return files
}

// loadJobs reads every file, naming the symbol after the file; unreadable files are skipped.
func loadJobs(files []string, log zerolog.Logger) []scan.Job {
	jobs := make([]scan.Job, 0, len(files))
	for _, path := range files {
		symbol := symbolFromPath(path)
		bars, err := feed.LoadCSV(path, symbol)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping bar file")
			continue
		}
		jobs = append(jobs, scan.Job{Symbol: symbol, Bars: bars})
	}
	return jobs
}

func symbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func writeResults(path string, results []scan.Result, stdout io.Writer) error {
	if path == "-" {
		return scan.WriteCSV(stdout, results)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	if err := scan.WriteCSV(file, results); err != nil {
		file.Close()
		return fmt.Errorf("write results: %w", err)
	}
	return file.Close()
}
