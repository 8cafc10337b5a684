// Package cli provides the command-line interface for the backtester.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"spread-backtester/internal/config"
	"spread-backtester/internal/logging"
	"spread-backtester/internal/security"
	"spread-backtester/internal/store"
	"spread-backtester/internal/store/csvfiles"
	"spread-backtester/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies. Config and Logger are set before
// any command runs; the store is opened on first use.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Store     store.DataStore
}

// OpenStore returns the SQLite store, opening it if needed.
func (a *App) OpenStore() (store.DataStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Storage.SQLitePath, store.WithLocation(a.Config.Location()))
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Storage.SQLitePath).Msg("SQLite store initialized")
	a.Store = s
	return s, nil
}

// DataDir returns the per-day CSV directory.
func (a *App) DataDir() *csvfiles.Dir {
	return csvfiles.New(a.Config.Data.Dir, a.Config.Location())
}

// Close releases the store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "spreadbt",
		Short: "Single-day options credit spread backtester",
		Long: `spreadbt replays one trading day of one-minute option chains and sells
vertical credit spreads whenever the signal model says so.

Download a day with 'spreadbt data update --date YYYY-MM-DD', then run
'spreadbt backtest run --date YYYY-MM-DD'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			if configDir == "" {
				configDir = config.DefaultConfigDir()
			}
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.ConfigDir = configDir

			logCfg := logging.DefaultLogConfig()
			logCfg.Level = cfg.Log.Level
			logCfg.File = cfg.Log.File
			logCfg.FilePath = cfg.Log.FilePath
			app.Logger = logging.NewLoggerWithConfig(logCfg)

			// Handle debug flag
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/spreadbt)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newDataCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newLedgerCmd(app))

	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("spreadbt v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.ConfigDir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Account")
	output.Printf("  AUM:              %s\n", utils.FormatDollars(cfg.Account.AUM))
	output.Printf("  Max Risk:         %.2f%% (%s)\n", cfg.Account.MaxRisk*100, utils.FormatDollars(cfg.AccountParameters().MaxRiskDollars()))
	output.Printf("  Commission:       %s per contract per leg\n", utils.FormatDollars(cfg.Account.CommissionDollars))
	output.Println()

	output.Bold("Strategy")
	output.Printf("  Leg 1 from ATM:   %.2f\n", cfg.Strategy.Leg1DollarFromATM)
	output.Printf("  Leg 2 from Leg 1: %.2f\n", cfg.Strategy.Leg2DollarFromLeg1)
	output.Printf("  Stoploss:         %.0f%% of max profit\n", cfg.Strategy.StoplossPctOfMaxProfit*100)
	output.Printf("  Model:            %d\n", cfg.Strategy.Model)
	output.Println()

	output.Bold("Session")
	output.Printf("  Interval:         %s\n", cfg.Session.Interval)
	output.Printf("  Entry Cutoff:     %s\n", cfg.Session.EntryCutoff)
	output.Printf("  Timezone:         %s\n", cfg.Session.Timezone)
	output.Println()

	output.Bold("Data")
	output.Printf("  Ticker:           %s (DTE %d)\n", cfg.Data.Ticker, cfg.Data.DTE)
	output.Printf("  Directory:        %s\n", cfg.Data.Dir)
	output.Printf("  SQLite:           %s\n", cfg.Storage.SQLitePath)
	output.Printf("  Postgres Sink:    %v\n", cfg.Storage.PostgresDSN != "")
	output.Printf("  S3 Archive:       %v\n", cfg.Archive.Enabled)
	output.Printf("  Redis Cache:      %v\n", cfg.Cache.RedisAddr != "")
	output.Printf("  ORATS Token:      %s\n", displayToken(cfg.Credentials.ORATSToken))
	output.Printf("  EODHD Token:      %s\n", displayToken(cfg.Credentials.EODHDToken))
}

func displayToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	return security.MaskCredential(token)
}
