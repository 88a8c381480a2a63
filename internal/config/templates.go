package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# orb-trader configuration
# SPX 0DTE opening-range breakout credit spreads

[trading]
# "live" talks to Schwab, "paper" uses the built-in simulated broker
mode = "live"
index_symbol = "$SPX"
option_root = "SPXW"
# Vertical spread width in index points
spread_width = 10.0
# Minimum acceptable net credit per spread, after slippage buffer
min_net_credit = 4.60
slippage_buffer = 0.10
quote_poll_interval = "10s"
# When dry_run is true, orders are logged and journaled but never sent
dry_run = true
# Must also be true (and dry_run false) before any real order is placed
live_trading_enabled = false

[risk]
# Fraction of account liquidation value risked per day
daily_risk_fraction = 0.05
min_contracts = 1
max_contracts = 50

[session]
timezone = "America/New_York"
market_open = "09:30"
range_close = "10:00"
entry_deadline = "12:00"
market_close = "16:00"

[storage]
# Defaults to the config directory when left empty
database_path = ""
journal_path = ""

[notifications]
enabled = false
# all, trades_only, errors_only
level = "all"

[notifications.webhook]
enabled = false
url = ""

[notifications.email]
enabled = false
smtp_host = "smtp.gmail.com"
smtp_port = 587
username = ""
password = ""
from = ""
to = ""

[metrics]
enabled = false
listen_addr = ":9105"

[schedule]
# Cron expressions with a seconds field, evaluated in the session timezone
run_at = "0 28 9 * * MON-FRI"
settle_at = "0 15 16 * * MON-FRI"

[archive]
enabled = false
bucket = ""
region = "us-east-1"
prefix = "journal"
`

const credentialsTemplate = `# orb-trader credentials
# Keep this file private (chmod 600)

[schwab]
app_key = "YOUR_APP_KEY"
app_secret = "YOUR_APP_SECRET"
redirect_uri = "https://127.0.0.1:8182"
# Where the OAuth token pair is persisted. Defaults to the config
# directory when left empty.
token_path = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found, created template at %s. Please review it and run again", path)
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return fmt.Errorf("credentials file not found, created template at %s. Please add your Schwab API credentials", path)
}
