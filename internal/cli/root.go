// Package cli provides the command-line interface for the trading application.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"spx-orb-trader/internal/auth"
	"spx-orb-trader/internal/broker"
	"spx-orb-trader/internal/config"
	"spx-orb-trader/internal/journal"
	"spx-orb-trader/internal/logging"
	"spx-orb-trader/internal/notify"
	"spx-orb-trader/internal/store"
	"spx-orb-trader/internal/trading"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-08-01"
)

// Paper accounts start with a fixed bankroll; sizing still runs off it.
const paperEquity = 100_000

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Broker   broker.Broker
	Store    store.DataStore
	Session  *trading.Session
	Auth     *auth.Manager
	Journal  *journal.CSVJournal
	Archiver *journal.Archiver
	Notifier notify.Notifier
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Exchange session calendar
	session, err := trading.NewSession(cfg.Session)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid session config, trading commands unavailable")
	} else {
		app.Session = session
	}

	// Token manager whenever Schwab credentials are present, so auth
	// commands work even while trading in paper mode.
	if cfg.Credentials.Schwab.AppKey != "" {
		app.Auth = auth.NewManager(auth.Config{
			AppKey:      cfg.Credentials.Schwab.AppKey,
			AppSecret:   cfg.Credentials.Schwab.AppSecret,
			RedirectURI: cfg.Credentials.Schwab.RedirectURI,
			TokenPath:   cfg.Credentials.Schwab.TokenPath,
			Passphrase:  os.Getenv("SCHWAB_TOKEN_PASSPHRASE"),
		})
	}

	// Broker selection: paper mode or missing credentials falls back to
	// the simulated broker. Live orders additionally require the dry-run
	// and live-trading switches to agree.
	if cfg.IsPaperMode() || app.Auth == nil {
		app.Broker = broker.NewPaperBroker(paperEquity)
		logger.Debug().Msg("paper broker initialized")
	} else {
		app.Broker = broker.NewSchwabBroker(app.Auth, broker.SchwabConfig{
			DryRun: !cfg.OrdersAreLive(),
		}, logger)
		logger.Debug().Bool("dry_run", !cfg.OrdersAreLive()).Msg("Schwab broker initialized")
	}

	// Initialize SQLite store
	dataStore, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.Storage.DatabasePath).Msg("SQLite store initialized")
	}

	app.Journal = journal.NewCSVJournal(cfg.Storage.JournalPath)
	if cfg.Archive.Enabled && cfg.Archive.Bucket != "" {
		app.Archiver = journal.NewArchiver(cfg.Archive.Bucket, cfg.Archive.Prefix, cfg.Archive.Region)
	}
	app.Notifier = notify.NewMultiNotifier(&cfg.Notifications)

	rootCmd := &cobra.Command{
		Use:   "orb-trader",
		Short: "SPX 0DTE opening-range breakout trading CLI",
		Long: `orb-trader trades same-day-expiry SPX credit spreads off the 09:30-10:00 ET
opening range. A close above the range open sells a put spread at 10:00; on
flat or down ranges, the first 30-minute close below the range low before
noon sells a call spread. At most one trade per day, cash settled at the
close.

Use 'orb-trader run' for a single trading day, 'orb-trader daemon' to run
on the exchange schedule, and 'orb-trader report' for results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/orb-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	// Add all command groups
	addCoreCommands(rootCmd, app)
	addAuthCommands(rootCmd, app)
	addTradingCommands(rootCmd, app)
	addStatusCommands(rootCmd, app)
	addReportCommands(rootCmd, app)
	addHelpCommands(rootCmd, app)

	return rootCmd
}

// engine assembles the trading engine from the app dependencies.
func (a *App) engine() (*trading.Engine, error) {
	if a.Session == nil {
		return nil, fmt.Errorf("session not configured, check [session] in config.toml")
	}
	if a.Store == nil {
		return nil, fmt.Errorf("store unavailable, check storage.database_path")
	}
	return trading.NewEngine(a.Config, a.Broker, a.Store, a.Session, a.Logger, trading.EngineOptions{
		Journal:  a.Journal,
		Archiver: a.Archiver,
		Notifier: a.Notifier,
	}), nil
}

// brokerSource tags output lines with where the data came from.
func (a *App) brokerSource() string {
	if _, ok := a.Broker.(*broker.PaperBroker); ok {
		return SourcePaper
	}
	return SourceSchwab
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("orb-trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Trading Configuration")
	output.Printf("  Mode:             %s\n", cfg.Trading.Mode)
	output.Printf("  Index Symbol:     %s\n", cfg.Trading.IndexSymbol)
	output.Printf("  Option Root:      %s\n", cfg.Trading.OptionRoot)
	output.Printf("  Spread Width:     %.0f points\n", cfg.Trading.SpreadWidth)
	output.Printf("  Min Net Credit:   %.2f\n", cfg.Trading.MinNetCredit)
	output.Printf("  Slippage Buffer:  %.2f\n", cfg.Trading.SlippageBuffer)
	output.Printf("  Quote Poll:       %s\n", cfg.Trading.QuotePollInterval)
	output.Printf("  Dry Run:          %v\n", cfg.Trading.DryRun)
	output.Printf("  Live Trading:     %v\n", cfg.Trading.LiveTradingEnabled)
	output.Println()

	output.Bold("Risk Configuration")
	output.Printf("  Daily Risk:       %.1f%% of equity\n", cfg.Risk.DailyRiskFraction*100)
	output.Printf("  Contracts:        %d to %d\n", cfg.Risk.MinContracts, cfg.Risk.MaxContracts)
	output.Println()

	output.Bold("Session")
	output.Printf("  Timezone:         %s\n", cfg.Session.Timezone)
	output.Printf("  Market Open:      %s\n", cfg.Session.MarketOpen)
	output.Printf("  Range Close:      %s\n", cfg.Session.RangeClose)
	output.Printf("  Entry Deadline:   %s\n", cfg.Session.EntryDeadline)
	output.Printf("  Market Close:     %s\n", cfg.Session.MarketClose)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:         %s\n", cfg.Storage.DatabasePath)
	output.Printf("  Journal:          %s\n", cfg.Storage.JournalPath)
	output.Println()

	output.Bold("Schedule")
	output.Printf("  Entry Run:        %s\n", cfg.Schedule.RunAt)
	output.Printf("  Settlement:       %s\n", cfg.Schedule.SettleAt)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:          %v\n", cfg.Notifications.Enabled)
	output.Printf("  Level:            %s\n", cfg.Notifications.Level)
	output.Printf("  Webhook:          %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Email:            %v\n", cfg.Notifications.Email.Enabled)
	output.Println()

	output.Bold("Metrics")
	output.Printf("  Enabled:          %v\n", cfg.Metrics.Enabled)
	if cfg.Metrics.Enabled {
		output.Printf("  Listen:           %s\n", cfg.Metrics.ListenAddr)
	}
	output.Println()

	output.Bold("Archive")
	output.Printf("  Enabled:          %v\n", cfg.Archive.Enabled)
	if cfg.Archive.Enabled {
		output.Printf("  Bucket:           s3://%s/%s\n", cfg.Archive.Bucket, cfg.Archive.Prefix)
	}

	return nil
}
