package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the market maker. Values come from an
// optional YAML file and are overridden per-key by environment variables,
// so a bare .env deployment works without any file at all.
type Config struct {
	Trading struct {
		Mode             string   `yaml:"mode"`              // "paper" or "real"
		Markets          []string `yaml:"markets"`           // e.g. ["BTC-PERP","SOL-PERP"]
		MarketsDelimiter string   `yaml:"markets_delimiter"` // separator for the MARKETS env list
		MaxGain          float64  `yaml:"max_gain"`          // fraction, e.g. 0.25
		MaxLoss          float64  `yaml:"max_loss"`          // fraction, e.g. 0.25
		SpreadPercentage float64  `yaml:"spread_percentage"` // fraction of mid quoted each side
		MidMode          string   `yaml:"mid_mode"`          // "pairwise" (default) or "mean"
	} `yaml:"trading"`

	Intervals struct {
		RebalanceSec        float64 `yaml:"rebalance_sec"`         // cycle tick
		RebalanceStaggerSec float64 `yaml:"rebalance_stagger_sec"` // per-market offset
		CancelSec           float64 `yaml:"cancel_sec"`            // per-order cancel offset
	} `yaml:"intervals"`

	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	BotKey string `yaml:"-"` // env-only, never read from file
}

// DefaultConfig returns the configuration used when no file and no env
// overrides are present.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Trading.Mode = "paper"
	cfg.Trading.Markets = []string{"BTC-PERP"}
	cfg.Trading.MarketsDelimiter = ","
	cfg.Trading.MaxGain = 0.25
	cfg.Trading.MaxLoss = 0.25
	cfg.Trading.SpreadPercentage = 0.01
	cfg.Trading.MidMode = "pairwise"
	cfg.Intervals.RebalanceSec = 60
	cfg.Intervals.RebalanceStaggerSec = 5
	cfg.Intervals.CancelSec = 1
	cfg.Journal.Path = "zo-mm.db"
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads the YAML file (path may be empty), applies environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if len(c.Trading.Markets) == 0 {
		return fmt.Errorf("at least one market symbol is required")
	}
	if c.Trading.MaxGain <= 0 || c.Trading.MaxLoss <= 0 {
		return fmt.Errorf("max_gain and max_loss must be positive fractions")
	}
	if c.Trading.MaxLoss >= 1 {
		return fmt.Errorf("max_loss must be below 1")
	}
	if c.Trading.SpreadPercentage <= 0 || c.Trading.SpreadPercentage >= 1 {
		return fmt.Errorf("spread_percentage must be in (0, 1)")
	}
	if c.Intervals.RebalanceSec <= 0 {
		return fmt.Errorf("rebalance interval must be positive")
	}
	if c.Intervals.RebalanceStaggerSec < 0 || c.Intervals.CancelSec < 0 {
		return fmt.Errorf("stagger intervals must not be negative")
	}
	switch c.Trading.MidMode {
	case "pairwise", "mean":
	default:
		return fmt.Errorf("mid_mode must be \"pairwise\" or \"mean\", got %q", c.Trading.MidMode)
	}
	if strings.EqualFold(c.Trading.Mode, "real") && c.BotKey == "" {
		return fmt.Errorf("real mode requires a BOT_KEY env variable")
	}
	return nil
}

// RebalanceInterval returns the cycle tick as a duration.
func (c *Config) RebalanceInterval() time.Duration {
	return secDuration(c.Intervals.RebalanceSec)
}

// RebalanceStagger returns the per-market sub-cycle offset.
func (c *Config) RebalanceStagger() time.Duration {
	return secDuration(c.Intervals.RebalanceStaggerSec)
}

// CancelInterval returns the per-order cancellation offset.
func (c *Config) CancelInterval() time.Duration {
	return secDuration(c.Intervals.CancelSec)
}

func secDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// overrideWithEnv applies environment variables on top of file values.
// Env always wins so secrets and ops tweaks never require editing files.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("MARKETS_DELIMITER"); v != "" {
		cfg.Trading.MarketsDelimiter = v
	}
	if v := os.Getenv("MARKETS"); v != "" {
		sep := cfg.Trading.MarketsDelimiter
		if sep == "" {
			sep = ","
		}
		var markets []string
		for _, s := range strings.Split(v, sep) {
			if s = strings.TrimSpace(s); s != "" {
				markets = append(markets, s)
			}
		}
		cfg.Trading.Markets = markets
	}
	envFloat("MAX_GAIN", &cfg.Trading.MaxGain)
	envFloat("MAX_LOSS", &cfg.Trading.MaxLoss)
	envFloat("SPREAD_PERCENTAGE", &cfg.Trading.SpreadPercentage)
	envFloat("REBALANCE_INTERVAL_SECONDS", &cfg.Intervals.RebalanceSec)
	envFloat("REBALANCE_STAGGER_SECONDS", &cfg.Intervals.RebalanceStaggerSec)
	envFloat("CANCEL_INTERVAL_SECONDS", &cfg.Intervals.CancelSec)
	if v := os.Getenv("MID_MODE"); v != "" {
		cfg.Trading.MidMode = v
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Journal.Enabled = true
		cfg.Journal.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	cfg.BotKey = os.Getenv("BOT_KEY")
}

func envFloat(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return
	}
	*dst = f
}
