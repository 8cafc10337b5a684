package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Spread Backtester Configuration

[account]
# Account size in dollars
aum = 100000.0
# Fraction of AUM at risk per day; half of it sizes each spread
max_risk = 0.025
# Commission per contract, per leg, per side
commission_dollars = 0.15

[strategy]
# Distance of the sold strike from the at-the-money strike
opt_leg1_dollar_from_atm = 5.0
# Width of the spread
opt_leg2_dollar_from_leg1 = 5.0
# Stop when the cost to close exceeds the credit by this fraction
stoploss_pct_of_maxprofit = 0.5
# Signal model number (see "spreadbt backtest models")
model = 0

[session]
# Spacing of option chain snapshots
interval = "5m"
# No new entries at or after this time
entry_cutoff = "14:30"
timezone = "America/New_York"

[data]
# Directory of per-day CSV files (defaults to <config dir>/data)
# dir = ""
ticker = "SPY"
stock_symbol = "SPY.US"
# Days to expiry of the traded options
dte = 1
concurrency = 4
requests_per_second = 5.0
# Vendor tokens are read from TOKEN_ORATS and TOKEN_EODHD (or a .env file)

[storage]
# sqlite_path = ""
# Optional PostgreSQL ledger sink
postgres_dsn = ""

[archive]
# Upload ledgers to an S3-compatible bucket
enabled = false
endpoint = ""
region = "us-east-1"
bucket = ""
prefix = "ledgers"
path_style = false

[cache]
# Optional Redis cache of vendor responses, e.g. "localhost:6379"
redis_addr = ""

[log]
# debug, info, warn, error
level = "info"
file = true
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
