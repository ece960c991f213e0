// Package config provides configuration management for the paper
// trader.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	yaml "gopkg.in/yaml.v3"
)

// Defaults applied to unset fields before validation
const (
	// defaultInitialCash funds a brand-new account when account.initial_cash is unset
	defaultInitialCash = 1_000_000
	// defaultTPlus is the settlement rule when account.t_plus is unset
	defaultTPlus = 1
	// defaultEndpoint is the public Eastmoney push2 quote host
	defaultEndpoint = "https://push2.eastmoney.com"
	// defaultMarketTimeout bounds a single quote request
	defaultMarketTimeout = "5s"
	// defaultRatePerSec throttles quote requests to the upstream host
	defaultRatePerSec = 10.0
	// defaultBurst is the request burst allowed above the steady rate
	defaultBurst = 5
	// defaultCacheTTL is how long a fetched price stays fresh
	defaultCacheTTL = "1s"
	// defaultPollInterval is the time between matching passes
	defaultPollInterval = "2s"
	// defaultOrderTTL is how long a pending order lives before expiring
	defaultOrderTTL = "30m"
	// defaultMaxAttempts caps matching attempts before an auto-cancel
	defaultMaxAttempts = 10
	// defaultStoragePath is where the account snapshot lives
	defaultStoragePath = "data/state.json"
	// defaultFlushInterval is the minimum time between background saves
	defaultFlushInterval = "30s"
	// defaultTimezone is the exchange timezone
	defaultTimezone = "Asia/Shanghai"
	// defaultLogMaxSizeMB rotates the log file past this size
	defaultLogMaxSizeMB = 10
	// defaultLogMaxBackups is how many rotated log files to keep
	defaultLogMaxBackups = 3
)

// Config represents the complete application configuration.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Market    MarketConfig    `yaml:"market"`
	Engine    EngineConfig    `yaml:"engine"`
	Storage   StorageConfig   `yaml:"storage"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AccountConfig defines the simulated account.
type AccountConfig struct {
	InitialCash float64 `yaml:"initial_cash"` // starting cash in CNY
	// TPlus is the settlement days before a lot may be sold. A pointer
	// so an explicit 0 (same-day selling) survives default application.
	TPlus *int `yaml:"t_plus"`
}

// MarketConfig defines the market data feed.
type MarketConfig struct {
	Provider   string  `yaml:"provider"` // eastmoney | random_walk
	Endpoint   string  `yaml:"endpoint"`
	UTToken    string  `yaml:"ut_token"`
	Timeout    string  `yaml:"timeout"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
	CacheTTL   string  `yaml:"cache_ttl"`
}

// EngineConfig defines matching loop parameters.
type EngineConfig struct {
	PollInterval string `yaml:"poll_interval"`
	OrderTTL     string `yaml:"order_ttl"`
	MaxAttempts  int    `yaml:"max_attempts"`
}

// StorageConfig defines where and how often state is persisted.
type StorageConfig struct {
	Path          string `yaml:"path"`
	FlushInterval string `yaml:"flush_interval"`
}

// CalendarConfig defines the exchange calendar.
type CalendarConfig struct {
	Timezone string   `yaml:"timezone"` // e.g., "Asia/Shanghai"
	Holidays []string `yaml:"holidays"` // YYYY-MM-DD
}

// DashboardConfig defines the read-only HTTP API.
type DashboardConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	AuthToken  string `yaml:"auth_token"`
}

// LoggingConfig defines log output and rotation.
type LoggingConfig struct {
	File       string `yaml:"file"` // empty logs to stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and
// consistent. Unset fields receive their defaults first.
func (c *Config) Validate() error {
	c.applyDefaults()

	// Account validation
	if c.Account.InitialCash <= 0 {
		return fmt.Errorf("account.initial_cash must be > 0")
	}
	if *c.Account.TPlus < 0 {
		return fmt.Errorf("account.t_plus must be >= 0")
	}

	// Market validation
	if c.Market.Provider != "eastmoney" && c.Market.Provider != "random_walk" {
		return fmt.Errorf("market.provider must be 'eastmoney' or 'random_walk'")
	}
	if c.Market.Provider == "eastmoney" && c.Market.Endpoint == "" {
		return fmt.Errorf("market.endpoint is required")
	}
	if d, err := time.ParseDuration(c.Market.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("market.timeout invalid: %q", c.Market.Timeout)
	}
	if c.Market.RatePerSec <= 0 {
		return fmt.Errorf("market.rate_per_sec must be > 0")
	}
	if c.Market.Burst < 1 {
		return fmt.Errorf("market.burst must be >= 1")
	}
	if d, err := time.ParseDuration(c.Market.CacheTTL); err != nil || d <= 0 {
		return fmt.Errorf("market.cache_ttl invalid: %q", c.Market.CacheTTL)
	}

	// Engine validation
	if d, err := time.ParseDuration(c.Engine.PollInterval); err != nil || d <= 0 {
		return fmt.Errorf("engine.poll_interval invalid: %q", c.Engine.PollInterval)
	}
	if d, err := time.ParseDuration(c.Engine.OrderTTL); err != nil || d <= 0 {
		return fmt.Errorf("engine.order_ttl invalid: %q", c.Engine.OrderTTL)
	}
	if c.Engine.MaxAttempts <= 0 {
		return fmt.Errorf("engine.max_attempts must be > 0")
	}

	// Storage validation
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if d, err := time.ParseDuration(c.Storage.FlushInterval); err != nil || d <= 0 {
		return fmt.Errorf("storage.flush_interval invalid: %q", c.Storage.FlushInterval)
	}

	// Calendar validation: the timezone falls back at use, but holidays
	// must be well-formed dates
	for _, day := range c.Calendar.Holidays {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			return fmt.Errorf("calendar.holidays entry %q must be YYYY-MM-DD", day)
		}
	}

	// Dashboard validation
	if c.Dashboard.Enabled && c.Dashboard.ListenAddr == "" {
		return fmt.Errorf("dashboard.listen_addr is required when dashboard.enabled")
	}

	// Logging validation
	if c.Logging.MaxSizeMB < 0 {
		return fmt.Errorf("logging.max_size_mb must be >= 0")
	}
	if c.Logging.MaxBackups < 0 {
		return fmt.Errorf("logging.max_backups must be >= 0")
	}

	return nil
}

// applyDefaults fills unset fields
func (c *Config) applyDefaults() {
	if c.Account.InitialCash == 0 {
		c.Account.InitialCash = defaultInitialCash
	}
	if c.Account.TPlus == nil {
		tp := defaultTPlus
		c.Account.TPlus = &tp
	}
	if c.Market.Provider == "" {
		c.Market.Provider = "eastmoney"
	}
	if c.Market.Endpoint == "" && c.Market.Provider == "eastmoney" {
		c.Market.Endpoint = defaultEndpoint
	}
	if c.Market.Timeout == "" {
		c.Market.Timeout = defaultMarketTimeout
	}
	if c.Market.RatePerSec == 0 {
		c.Market.RatePerSec = defaultRatePerSec
	}
	if c.Market.Burst == 0 {
		c.Market.Burst = defaultBurst
	}
	if c.Market.CacheTTL == "" {
		c.Market.CacheTTL = defaultCacheTTL
	}
	if c.Engine.PollInterval == "" {
		c.Engine.PollInterval = defaultPollInterval
	}
	if c.Engine.OrderTTL == "" {
		c.Engine.OrderTTL = defaultOrderTTL
	}
	if c.Engine.MaxAttempts == 0 {
		c.Engine.MaxAttempts = defaultMaxAttempts
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultStoragePath
	}
	if c.Storage.FlushInterval == "" {
		c.Storage.FlushInterval = defaultFlushInterval
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = defaultTimezone
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = defaultLogMaxBackups
	}
}

// InitialCashDecimal returns the configured funding as a decimal.
func (c *Config) InitialCashDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Account.InitialCash)
}

// TPlusDays returns the settlement rule, defaulting when unset.
func (c *Config) TPlusDays() int {
	if c.Account.TPlus == nil {
		return defaultTPlus
	}
	return *c.Account.TPlus
}

// GetMarketTimeout returns the configured quote request timeout.
func (c *Config) GetMarketTimeout() time.Duration {
	d, err := time.ParseDuration(c.Market.Timeout)
	if err != nil {
		return 5 * time.Second // default
	}
	return d
}

// GetCacheTTL returns the configured price cache lifetime.
func (c *Config) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Market.CacheTTL)
	if err != nil {
		return time.Second // default
	}
	return d
}

// GetPollInterval returns the configured matching pass interval.
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Engine.PollInterval)
	if err != nil {
		return 2 * time.Second // default
	}
	return d
}

// GetOrderTTL returns the configured pending order lifetime.
func (c *Config) GetOrderTTL() time.Duration {
	d, err := time.ParseDuration(c.Engine.OrderTTL)
	if err != nil {
		return 30 * time.Minute // default
	}
	return d
}

// GetFlushInterval returns the configured background save interval.
func (c *Config) GetFlushInterval() time.Duration {
	d, err := time.ParseDuration(c.Storage.FlushInterval)
	if err != nil {
		return 30 * time.Second // default
	}
	return d
}

// Location returns the configured exchange timezone.
func (c *Config) Location() *time.Location {
	tz := c.Calendar.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		// Fallback for minimal containers
		loc = time.FixedZone("CST", 8*60*60)
	}
	return loc
}
