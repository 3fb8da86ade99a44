package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"FuturesBacktest/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Backtest struct {
		Symbols      []string `yaml:"symbols"`
		Interval     string   `yaml:"interval"`
		LookbackDays int      `yaml:"lookback_days"`
		StartingCash float64  `yaml:"starting_cash"`
		Strategy     string   `yaml:"strategy"`
		Parallelism  int      `yaml:"parallelism"`
	} `yaml:"backtest"`
	Strategy struct {
		Anchor            string  `yaml:"anchor"`
		RewardRisk        float64 `yaml:"reward_risk"`
		Size              int64   `yaml:"size"`
		SecondaryInterval string  `yaml:"secondary_interval"`
	} `yaml:"strategy"`
	DataSource struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		Timezone  string `yaml:"timezone"`
		ChunkDays int    `yaml:"chunk_days"`
	} `yaml:"data_source"`
	Schedule struct {
		BacktestCron string `yaml:"backtest_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		c.DataSource.Provider = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("DATA_TIMEZONE"); v != "" {
		c.DataSource.Timezone = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("BACKTEST_SYMBOLS"); v != "" {
		c.Backtest.Symbols = splitList(v)
	}
	if v := os.Getenv("STARTING_CASH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Backtest.StartingCash = f
		}
	}
	if v := os.Getenv("CRON_BACKTEST"); v != "" {
		c.Schedule.BacktestCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if len(c.Backtest.Symbols) == 0 {
		c.Backtest.Symbols = []string{"ES=F"}
	}
	if c.Backtest.Interval == "" {
		c.Backtest.Interval = "5m"
	}
	if c.Backtest.LookbackDays == 0 {
		c.Backtest.LookbackDays = 14
	}
	if c.Backtest.StartingCash == 0 {
		c.Backtest.StartingCash = 100000
	}
	if c.Backtest.Strategy == "" {
		c.Backtest.Strategy = "sweep_fvg"
	}
	if c.Backtest.Parallelism == 0 {
		c.Backtest.Parallelism = 2
	}
	if c.Strategy.Anchor == "" {
		c.Strategy.Anchor = "06:30"
	}
	if c.Strategy.RewardRisk == 0 {
		c.Strategy.RewardRisk = 1
	}
	if c.Strategy.Size == 0 {
		c.Strategy.Size = 1
	}
	if c.Strategy.SecondaryInterval == "" {
		c.Strategy.SecondaryInterval = "1m"
	}
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.Timezone == "" {
		c.DataSource.Timezone = "America/Los_Angeles"
	}
	if c.DataSource.ChunkDays == 0 {
		c.DataSource.ChunkDays = 7
	}
	if c.Schedule.BacktestCron == "" {
		c.Schedule.BacktestCron = "0 30 14 * * 1-5"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/backtest.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that fields are present and parse.
func (c *Config) Validate() error {
	if _, err := model.ParseInterval(c.Backtest.Interval); err != nil {
		return fmt.Errorf("backtest.interval: %w", err)
	}
	if _, err := model.ParseInterval(c.Strategy.SecondaryInterval); err != nil {
		return fmt.Errorf("strategy.secondary_interval: %w", err)
	}
	if c.Backtest.StartingCash <= 0 {
		return fmt.Errorf("backtest.starting_cash must be positive")
	}
	if c.Backtest.LookbackDays < 0 {
		return fmt.Errorf("backtest.lookback_days must not be negative")
	}
	if c.Strategy.RewardRisk <= 0 {
		return fmt.Errorf("strategy.reward_risk must be positive")
	}
	if c.Strategy.Size <= 0 {
		return fmt.Errorf("strategy.size must be positive")
	}
	if _, err := ParseClock(c.Strategy.Anchor); err != nil {
		return fmt.Errorf("strategy.anchor: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("data_source.timezone: %w", err)
	}
	switch c.DataSource.Provider {
	case "yahoo":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	if c.DataSource.ChunkDays <= 0 {
		return fmt.Errorf("data_source.chunk_days must be positive")
	}
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).
		Parse(c.Schedule.BacktestCron); err != nil {
		return fmt.Errorf("schedule.backtest_cron: %w", err)
	}
	return nil
}

// Location loads the configured exchange-local timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.DataSource.Timezone)
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
