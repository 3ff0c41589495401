package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/skswe/tenxsqueeze/internal/feed"
)

// Environment variables that override file settings.
const (
	EnvLogLevel     = "TENX_LOG_LEVEL"
	EnvMetricsAddr  = "TENX_METRICS_ADDR"
	EnvFeedPath     = "TENX_FEED_PATH"
	EnvStrategyMode = "TENX_STRATEGY_MODE"
)

// LoadEnv loads .env style files into the process environment without overriding variables
// that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides configuration fields from TENX_* environment variables.
func (c *Config) ApplyEnv() {
	if val := os.Getenv(EnvLogLevel); val != "" {
		c.App.LogLevel = val
	}
	if val := os.Getenv(EnvMetricsAddr); val != "" {
		c.App.MetricsAddr = val
	}
	if val := os.Getenv(EnvFeedPath); val != "" {
		c.Feed.Path = val
		if c.Feed.Provider == "" || c.Feed.Provider == feed.ProviderStub {
			c.Feed.Provider = feed.ProviderCSV
		}
	}
	if val := os.Getenv(EnvStrategyMode); val != "" {
		c.Strategy.Mode = strings.TrimSpace(val)
	}
}
