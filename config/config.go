package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable parameter of the trading loop. Defaults match
// the strategy as it runs in production; Validate catches the values that
// would silently break the breakout math before any trading starts.
type Config struct {
	// Loop cadence. Also used as the pacing delay between consecutive
	// order submissions so the exchange rate limit is respected.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`

	// When false every order submission is logged and dropped; all market
	// data calls still go out.
	LiveTrading bool `mapstructure:"live_trading"`

	// Number of positions held in parallel; the volume ranking is
	// truncated to this many candidates.
	ParallelPositions int `mapstructure:"parallel_positions"`

	// Larry Williams K: target = prevClose + K * (prevHigh - prevLow).
	KFactor float64 `mapstructure:"k_factor"`

	// The take-profit blacklist is wiped this often, independent of the
	// daily session reset.
	BlacklistResetMinutes int `mapstructure:"blacklist_reset_minutes"`

	// Exchange-qualified tickers the loop trades, e.g. "KRW-XRP". This is
	// a curated watch-list, not the full exchange universe.
	WatchedTickers []string `mapstructure:"watched_tickers"`

	// Taker fee deducted from the per-coin budget before a market buy.
	FeeRate float64 `mapstructure:"fee_rate"`

	// Unconditional exit threshold, expressed as a fraction (-0.02 = -2%).
	StopLossPct float64 `mapstructure:"stop_loss_pct"`

	// Sleep after a session reset so the same window is not re-entered.
	SettleDelaySeconds int `mapstructure:"settle_delay_seconds"`

	// StrictEntry restores the richer buy gate (positive volume ratio,
	// price at the daily high, high within 2% of target). Off by default:
	// the plain "not already held" gate is the authoritative behavior.
	StrictEntry bool `mapstructure:"strict_entry"`

	// Two-line file: access key, secret key.
	CredentialsFile string `mapstructure:"credentials_file"`

	// Prometheus listen address; empty disables the endpoint.
	MetricsAddr string `mapstructure:"metrics_addr"`

	RESTURL string `mapstructure:"rest_url"`
}

// Default returns the configuration the loop runs with when no file
// overrides anything.
func Default() Config {
	return Config{
		PollIntervalSeconds:   1,
		LiveTrading:           false,
		ParallelPositions:     1,
		KFactor:               0.5,
		BlacklistResetMinutes: 20,
		WatchedTickers:        []string{"KRW-XRP", "KRW-GMT"},
		FeeRate:               0.0005,
		StopLossPct:           -0.02,
		SettleDelaySeconds:    20,
		StrictEntry:           false,
		CredentialsFile:       "upbit.txt",
		MetricsAddr:           ":9187",
		RESTURL:               "https://api.upbit.com",
	}
}

// Load reads config.yaml from dir (if present) on top of the defaults.
// A missing file is not an error; a malformed one is.
func Load(dir string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate returns the first encountered problem so the caller can surface a
// clear configuration error before the loop starts.
func (c *Config) Validate() error {
	if c.PollIntervalSeconds <= 0 {
		return errors.New("poll_interval_seconds must be positive")
	}
	if c.ParallelPositions <= 0 {
		return errors.New("parallel_positions must be positive")
	}
	if c.KFactor <= 0 || c.KFactor > 1 {
		return fmt.Errorf("k_factor (%f) must be >0 and <=1", c.KFactor)
	}
	if c.BlacklistResetMinutes <= 0 {
		return errors.New("blacklist_reset_minutes must be positive")
	}
	if len(c.WatchedTickers) == 0 {
		return errors.New("watched_tickers cannot be empty")
	}
	for _, t := range c.WatchedTickers {
		if !strings.Contains(t, "-") {
			return fmt.Errorf("watched ticker %q is not exchange-qualified (want e.g. KRW-XRP)", t)
		}
	}
	if c.FeeRate < 0 || c.FeeRate >= 0.01 {
		return fmt.Errorf("fee_rate (%f) out of realistic range", c.FeeRate)
	}
	if c.StopLossPct >= 0 {
		return errors.New("stop_loss_pct must be negative")
	}
	if c.SettleDelaySeconds < 0 {
		return errors.New("settle_delay_seconds cannot be negative")
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *Config) BlacklistResetInterval() time.Duration {
	return time.Duration(c.BlacklistResetMinutes) * time.Minute
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelaySeconds) * time.Second
}

// Credentials are loaded once at startup and never persisted elsewhere.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// LoadCredentials reads the two-line secret file: access key on the first
// line, secret key on the second.
func LoadCredentials(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() && len(lines) < 2 {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return Credentials{}, fmt.Errorf("read credentials file: %w", err)
	}
	if len(lines) < 2 || lines[0] == "" || lines[1] == "" {
		return Credentials{}, fmt.Errorf("credentials file %s must contain an access key line and a secret key line", path)
	}
	return Credentials{AccessKey: lines[0], SecretKey: lines[1]}, nil
}
