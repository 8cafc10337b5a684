// Package config provides configuration management for the backtester.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
	"spread-backtester/pkg/utils"
)

// EnvPrefix prefixes environment overrides, e.g. SPREADBT_ACCOUNT_AUM.
const EnvPrefix = "SPREADBT"

// Config holds all application configuration.
type Config struct {
	Account     AccountConfig  `mapstructure:"account"`
	Strategy    StrategyConfig `mapstructure:"strategy"`
	Session     SessionConfig  `mapstructure:"session"`
	Data        DataConfig     `mapstructure:"data"`
	Storage     StorageConfig  `mapstructure:"storage"`
	Archive     ArchiveConfig  `mapstructure:"archive"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Log         LogConfig      `mapstructure:"log"`
	Credentials Credentials    `mapstructure:"-" json:"-"` // Loaded from the environment
}

// AccountConfig holds account sizing and costs.
type AccountConfig struct {
	AUM               float64 `mapstructure:"aum"`
	MaxRisk           float64 `mapstructure:"max_risk"`           // fraction of AUM
	CommissionDollars float64 `mapstructure:"commission_dollars"` // per contract, per leg, per side
}

// StrategyConfig holds strike selection, the stoploss trigger and the
// default signal model.
type StrategyConfig struct {
	Leg1DollarFromATM      float64 `mapstructure:"opt_leg1_dollar_from_atm"`
	Leg2DollarFromLeg1     float64 `mapstructure:"opt_leg2_dollar_from_leg1"`
	StoplossPctOfMaxProfit float64 `mapstructure:"stoploss_pct_of_maxprofit"`
	Model                  int     `mapstructure:"model"`
}

// SessionConfig holds the simulated session clock.
type SessionConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	EntryCutoff string        `mapstructure:"entry_cutoff"` // HH:MM
	Timezone    string        `mapstructure:"timezone"`
}

// DataConfig holds data locations and download settings.
type DataConfig struct {
	Dir               string  `mapstructure:"dir"`
	Ticker            string  `mapstructure:"ticker"`
	StockSymbol       string  `mapstructure:"stock_symbol"`
	DTE               int     `mapstructure:"dte"`
	Concurrency       int     `mapstructure:"concurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	ORATSBaseURL      string  `mapstructure:"orats_base_url"`
	EODHDBaseURL      string  `mapstructure:"eodhd_base_url"`
}

// StorageConfig holds database locations.
type StorageConfig struct {
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ArchiveConfig holds the S3-compatible ledger archive settings.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key" json:"-"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PathStyle bool   `mapstructure:"path_style"`
}

// CacheConfig holds the vendor response cache settings.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" json:"-"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// Credentials holds data vendor tokens.
type Credentials struct {
	ORATSToken string
	EODHDToken string
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/spreadbt"
	}
	return filepath.Join(home, ".config", "spreadbt")
}

// ConfigPath returns the config file inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config file is replaced by the commented template and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	if err := loadDotEnv(configDir); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("account.aum", 100000.0)
	v.SetDefault("account.max_risk", 0.025)
	v.SetDefault("account.commission_dollars", 0.15)

	v.SetDefault("strategy.opt_leg1_dollar_from_atm", 5.0)
	v.SetDefault("strategy.opt_leg2_dollar_from_leg1", 5.0)
	v.SetDefault("strategy.stoploss_pct_of_maxprofit", 0.5)
	v.SetDefault("strategy.model", 0)

	v.SetDefault("session.interval", "5m")
	v.SetDefault("session.entry_cutoff", "14:30")
	v.SetDefault("session.timezone", "America/New_York")

	v.SetDefault("data.dir", filepath.Join(configDir, "data"))
	v.SetDefault("data.ticker", "SPY")
	v.SetDefault("data.stock_symbol", "SPY.US")
	v.SetDefault("data.dte", 1)
	v.SetDefault("data.concurrency", 4)
	v.SetDefault("data.requests_per_second", 5.0)
	v.SetDefault("data.orats_base_url", "https://api.orats.io")
	v.SetDefault("data.eodhd_base_url", "https://eodhd.com/api")

	v.SetDefault("storage.sqlite_path", filepath.Join(configDir, "spreadbt.db"))
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "ledgers")
	v.SetDefault("archive.access_key", "")
	v.SetDefault("archive.secret_key", "")
	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("archive.path_style", false)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", "0s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", true)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "spreadbt.log"))
}

// loadDotEnv reads .env from the working directory and the config
// directory. Variables already set in the environment win.
func loadDotEnv(configDir string) error {
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Credentials.ORATSToken = os.Getenv("TOKEN_ORATS")
	cfg.Credentials.EODHDToken = os.Getenv("TOKEN_EODHD")

	// Conventional AWS variables fill in missing archive keys
	if cfg.Archive.AccessKey == "" {
		cfg.Archive.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if cfg.Archive.SecretKey == "" {
		cfg.Archive.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Account.AUM <= 0 {
		return apperrors.NewValidationError("account.aum", c.Account.AUM, "must be positive")
	}
	if c.Account.MaxRisk <= 0 || c.Account.MaxRisk > 1 {
		return apperrors.NewValidationError("account.max_risk", c.Account.MaxRisk, "must be in (0, 1]")
	}
	if c.Account.CommissionDollars < 0 {
		return apperrors.NewValidationError("account.commission_dollars", c.Account.CommissionDollars, "must be non-negative")
	}

	if c.Strategy.Leg1DollarFromATM < 0 {
		return apperrors.NewValidationError("strategy.opt_leg1_dollar_from_atm", c.Strategy.Leg1DollarFromATM, "must be non-negative")
	}
	if c.Strategy.Leg2DollarFromLeg1 <= 0 {
		return apperrors.NewValidationError("strategy.opt_leg2_dollar_from_leg1", c.Strategy.Leg2DollarFromLeg1, "must be positive")
	}
	if c.Strategy.StoplossPctOfMaxProfit < 0 {
		return apperrors.NewValidationError("strategy.stoploss_pct_of_maxprofit", c.Strategy.StoplossPctOfMaxProfit, "must be non-negative")
	}
	if c.Strategy.Model < 0 {
		return apperrors.NewValidationError("strategy.model", c.Strategy.Model, "must be non-negative")
	}

	if c.Session.Interval <= 0 {
		return apperrors.NewValidationError("session.interval", c.Session.Interval, "must be positive")
	}
	if _, err := utils.ParseClock(c.Session.EntryCutoff); err != nil {
		return apperrors.NewValidationError("session.entry_cutoff", c.Session.EntryCutoff, err.Error())
	}
	if _, err := utils.LoadLocation(c.Session.Timezone); err != nil {
		return apperrors.NewValidationError("session.timezone", c.Session.Timezone, err.Error())
	}

	if c.Data.Ticker == "" {
		return apperrors.NewValidationError("data.ticker", c.Data.Ticker, "is required")
	}
	if c.Data.DTE < 0 {
		return apperrors.NewValidationError("data.dte", c.Data.DTE, "must be non-negative")
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return apperrors.NewValidationError("archive.bucket", c.Archive.Bucket, "is required when the archive is enabled")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return apperrors.NewValidationError("log.level", c.Log.Level, "must be debug, info, warn or error")
	}

	return nil
}

// Location returns the session timezone.
func (c *Config) Location() *time.Location {
	loc, err := utils.LoadLocation(c.Session.Timezone)
	if err != nil {
		return utils.NewYorkLocation
	}
	return loc
}

// StrategyParameters returns the strike selection parameters.
func (c *Config) StrategyParameters() models.StrategyParameters {
	return models.StrategyParameters{
		Leg1DollarFromATM:      c.Strategy.Leg1DollarFromATM,
		Leg2DollarFromLeg1:     c.Strategy.Leg2DollarFromLeg1,
		StoplossPctOfMaxProfit: c.Strategy.StoplossPctOfMaxProfit,
	}
}

// AccountParameters returns the account settings for a simulated day.
func (c *Config) AccountParameters() models.AccountParameters {
	cutoff, err := utils.ParseClock(c.Session.EntryCutoff)
	if err != nil {
		cutoff = 14*time.Hour + 30*time.Minute
	}
	return models.AccountParameters{
		AUM:               c.Account.AUM,
		MaxRisk:           c.Account.MaxRisk,
		CommissionDollars: c.Account.CommissionDollars,
		Interval:          c.Session.Interval,
		EntryCutoff:       cutoff,
	}
}
