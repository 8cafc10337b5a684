package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "spread-backtester/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"TOKEN_ORATS", "TOKEN_EODHD", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_CreatesTemplateWithDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.toml"))

	assert.Equal(t, 100000.0, cfg.Account.AUM)
	assert.Equal(t, 0.025, cfg.Account.MaxRisk)
	assert.Equal(t, 0.15, cfg.Account.CommissionDollars)
	assert.Equal(t, 5*time.Minute, cfg.Session.Interval)
	assert.Equal(t, "SPY", cfg.Data.Ticker)
	assert.Equal(t, 1, cfg.Data.DTE)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Data.Dir)
	assert.Equal(t, filepath.Join(dir, "spreadbt.db"), cfg.Storage.SQLitePath)

	acct := cfg.AccountParameters()
	assert.Equal(t, 14*time.Hour+30*time.Minute, acct.EntryCutoff)
	assert.Equal(t, 2500.0, acct.MaxRiskDollars())

	// Second load reads the template it wrote.
	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.Account, again.Account)
	assert.Equal(t, cfg.Strategy, again.Strategy)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[account]
aum = 50000.0

[strategy]
opt_leg1_dollar_from_atm = 2.0
model = 7

[session]
interval = "1m"
entry_cutoff = "13:45"
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TOKEN_ORATS=orats-token\nTOKEN_EODHD=eodhd-token\n"), 0600))
	t.Setenv("SPREADBT_ACCOUNT_COMMISSION_DOLLARS", "0.5")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 50000.0, cfg.Account.AUM)
	assert.Equal(t, 0.5, cfg.Account.CommissionDollars)
	assert.Equal(t, 2.0, cfg.Strategy.Leg1DollarFromATM)
	assert.Equal(t, 5.0, cfg.Strategy.Leg2DollarFromLeg1, "unset keys keep defaults")
	assert.Equal(t, 7, cfg.Strategy.Model)
	assert.Equal(t, time.Minute, cfg.Session.Interval)
	assert.Equal(t, 13*time.Hour+45*time.Minute, cfg.AccountParameters().EntryCutoff)
	assert.Equal(t, "orats-token", cfg.Credentials.ORATSToken)
	assert.Equal(t, "eodhd-token", cfg.Credentials.EODHDToken)

	os.Unsetenv("TOKEN_ORATS")
	os.Unsetenv("TOKEN_EODHD")
}

func TestLoad_InvalidFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[account]\naum = -1.0\n"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Account:  AccountConfig{AUM: 100000, MaxRisk: 0.025, CommissionDollars: 0.15},
			Strategy: StrategyConfig{Leg1DollarFromATM: 5, Leg2DollarFromLeg1: 5, StoplossPctOfMaxProfit: 0.5},
			Session:  SessionConfig{Interval: 5 * time.Minute, EntryCutoff: "14:30", Timezone: "America/New_York"},
			Data:     DataConfig{Ticker: "SPY", DTE: 1},
			Log:      LogConfig{Level: "info"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero aum", func(c *Config) { c.Account.AUM = 0 }, "account.aum"},
		{"max risk above one", func(c *Config) { c.Account.MaxRisk = 1.5 }, "account.max_risk"},
		{"negative commission", func(c *Config) { c.Account.CommissionDollars = -1 }, "account.commission_dollars"},
		{"zero width", func(c *Config) { c.Strategy.Leg2DollarFromLeg1 = 0 }, "strategy.opt_leg2_dollar_from_leg1"},
		{"bad cutoff", func(c *Config) { c.Session.EntryCutoff = "2:30pm" }, "session.entry_cutoff"},
		{"bad timezone", func(c *Config) { c.Session.Timezone = "Mars/Olympus" }, "session.timezone"},
		{"zero interval", func(c *Config) { c.Session.Interval = 0 }, "session.interval"},
		{"archive without bucket", func(c *Config) { c.Archive.Enabled = true }, "archive.bucket"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
