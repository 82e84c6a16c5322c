// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rovshanmuradov/xtbhelper/internal/quote"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	PositionsFile    string       `mapstructure:"positions_file"`
	ClosedTradesFile string       `mapstructure:"closed_trades_file"`
	Providers        []string     `mapstructure:"providers"`
	Workers          int          `mapstructure:"workers"`
	PacingMs         int          `mapstructure:"pacing_ms"`
	RefreshMs        int          `mapstructure:"refresh_ms"`
	RequestTimeoutMs int          `mapstructure:"request_timeout_ms"`
	RatePerMinute    int          `mapstructure:"rate_per_minute"`
	FinnhubToken     string       `mapstructure:"finnhub_token"`
	AlphaVantageKey  string       `mapstructure:"alphavantage_key"`
	Cache            CacheConfig  `mapstructure:"cache"`
	Movers           MoversConfig `mapstructure:"movers"`
	DebugLogging     bool         `mapstructure:"debug_logging"`
	LogFile          string       `mapstructure:"log_file"`
	MetricsAddr      string       `mapstructure:"metrics_addr"`
	ExportDir        string       `mapstructure:"export_dir"`
}

// CacheConfig configures the persistent quote cache. An empty Path keeps
// entries in memory only.
type CacheConfig struct {
	Path        string `mapstructure:"path"`
	Version     string `mapstructure:"version"`
	QuoteTTLMs  int    `mapstructure:"quote_ttl_ms"`
	MoversTTLMs int    `mapstructure:"movers_ttl_ms"`
}

type MoversConfig struct {
	Exchange string `mapstructure:"exchange"`
	TopN     int    `mapstructure:"top_n"`
}

const (
	DefaultWorkers          = 8
	DefaultPacingMs         = 120
	DefaultRefreshMs        = 30000
	DefaultRequestTimeoutMs = 10000
	DefaultRatePerMinute    = 300
	DefaultCacheVersion     = "v1"
	DefaultQuoteTTLMs       = 25000
	DefaultMoversTTLMs      = 180000
	DefaultExchange         = "XETRA"
	DefaultTopN             = 50
	DefaultToken            = "demo"
	EnvPrefix               = "XTBHELPER"
)

// LoadConfig reads the config file at path (JSON or YAML), applies defaults
// and XTBHELPER_* environment overrides, then validates the result. An empty
// path runs on defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"providers":           quote.DefaultProviders,
		"workers":             DefaultWorkers,
		"pacing_ms":           DefaultPacingMs,
		"refresh_ms":          DefaultRefreshMs,
		"request_timeout_ms":  DefaultRequestTimeoutMs,
		"rate_per_minute":     DefaultRatePerMinute,
		"finnhub_token":       DefaultToken,
		"alphavantage_key":    DefaultToken,
		"positions_file":      "",
		"closed_trades_file":  "",
		"cache.path":          "",
		"cache.version":       DefaultCacheVersion,
		"cache.quote_ttl_ms":  DefaultQuoteTTLMs,
		"cache.movers_ttl_ms": DefaultMoversTTLMs,
		"movers.exchange":     DefaultExchange,
		"movers.top_n":        DefaultTopN,
		"debug_logging":       false,
		"log_file":            "",
		"metrics_addr":        "",
		"export_dir":          "",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Providers = cleanList(cfg.Providers)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.Providers) == 0 {
		return errors.New("providers list is empty")
	}
	registry := quote.NewRegistry(zap.NewNop())
	for _, name := range cfg.Providers {
		if !registry.Has(name) {
			return fmt.Errorf("unknown provider %q", name)
		}
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Cache.Version) == "" {
		return errors.New("cache.version is empty")
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.Workers < 1 {
		return errors.New("invalid workers count")
	}
	if cfg.PacingMs < 0 {
		return errors.New("invalid pacing_ms")
	}
	if cfg.RefreshMs <= 0 {
		return errors.New("invalid refresh_ms")
	}
	if cfg.RequestTimeoutMs <= 0 {
		return errors.New("invalid request_timeout_ms")
	}
	if cfg.RatePerMinute < 0 {
		return errors.New("invalid rate_per_minute")
	}
	if cfg.Cache.QuoteTTLMs <= 0 {
		return errors.New("invalid cache.quote_ttl_ms")
	}
	if cfg.Cache.MoversTTLMs <= 0 {
		return errors.New("invalid cache.movers_ttl_ms")
	}
	if cfg.Movers.TopN < 1 {
		return errors.New("invalid movers.top_n")
	}
	return nil
}

// cleanList also splits comma-joined entries, which is how list values arrive
// from the environment.
func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if clean := strings.TrimSpace(part); clean != "" {
				out = append(out, clean)
			}
		}
	}
	return out
}

func (c *Config) Pacing() time.Duration {
	return time.Duration(c.PacingMs) * time.Millisecond
}

func (c *Config) Refresh() time.Duration {
	return time.Duration(c.RefreshMs) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.Cache.QuoteTTLMs) * time.Millisecond
}

func (c *Config) MoversTTL() time.Duration {
	return time.Duration(c.Cache.MoversTTLMs) * time.Millisecond
}
