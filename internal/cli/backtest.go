package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spread-backtester/internal/signals"
	"spread-backtester/internal/store/archive"
	"spread-backtester/internal/store/postgres"
	"spread-backtester/internal/trading"
	"spread-backtester/pkg/utils"
)

func newBacktestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run single-day credit spread backtests",
	}
	cmd.AddCommand(newBacktestRunCmd(app))
	cmd.AddCommand(newBacktestModelsCmd())
	return cmd
}

func newBacktestRunCmd(app *App) *cobra.Command {
	var (
		dateStr  string
		model    int
		all      bool
		writeCSV bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate one trading day",
		Long: `Simulate one trading day from the stored option chains and stock bars.

The ledger of every run is saved to the SQLite store and, when configured,
to PostgreSQL and the S3 archive. --csv also writes it next to the data files.`,
		Example: `  spreadbt backtest run --date 2023-03-01
  spreadbt backtest run --date 2023-03-01 --model 5 --csv
  spreadbt backtest run --date 2023-03-01 --all --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			date, err := utils.ParseDate(dateStr, app.Config.Location())
			if err != nil {
				return err
			}

			grid := signals.Models()
			if !all {
				if !cmd.Flags().Changed("model") {
					model = app.Config.Strategy.Model
				}
				m, err := signals.ModelByNumber(model)
				if err != nil {
					return err
				}
				grid = []signals.Model{m}
			}

			bt, cleanup, err := buildBacktester(ctx, app, writeCSV)
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := bt.RunModels(ctx, date, grid)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				if len(results) == 1 {
					return output.JSON(results[0])
				}
				return output.JSON(results)
			}

			renderResults(output, date, results)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "trading date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&model, "model", 0, "signal model number (default from config)")
	cmd.Flags().BoolVar(&all, "all", false, "run every model of the grid")
	cmd.Flags().BoolVar(&writeCSV, "csv", false, "also write ledgers as CSV files")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

// buildBacktester wires the store and every configured ledger sink.
func buildBacktester(ctx context.Context, app *App, writeCSV bool) (*trading.Backtester, func(), error) {
	st, err := app.OpenStore()
	if err != nil {
		return nil, nil, err
	}

	sinks := []trading.LedgerSink{st}
	var closers []func()

	if writeCSV {
		sinks = append(sinks, app.DataDir())
	}

	if dsn := app.Config.Storage.PostgresDSN; dsn != "" {
		pg, err := postgres.New(ctx, dsn, 4)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pg.Close)
		sinks = append(sinks, pg)
		app.Logger.Debug().Msg("PostgreSQL ledger sink enabled")
	}

	if a := app.Config.Archive; a.Enabled {
		arc, err := archive.New(ctx, archive.Config{
			Endpoint:       a.Endpoint,
			Region:         a.Region,
			Bucket:         a.Bucket,
			Prefix:         a.Prefix,
			AccessKey:      a.AccessKey,
			SecretKey:      a.SecretKey,
			UseSSL:         a.UseSSL,
			ForcePathStyle: a.PathStyle,
		})
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, err
		}
		sinks = append(sinks, arc)
		app.Logger.Debug().Str("bucket", a.Bucket).Msg("S3 ledger archive enabled")
	}

	bt := trading.NewBacktester(trading.BacktesterConfig{
		Ticker:   app.Config.Data.Ticker,
		Strategy: app.Config.StrategyParameters(),
		Account:  app.Config.AccountParameters(),
	}, st, app.Logger, sinks...)

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return bt, cleanup, nil
}

func renderResults(output *Output, date time.Time, results []*trading.DayResult) {
	output.Bold("Backtest %s", date.Format("2006-01-02"))
	output.Println()

	table := NewTable(output, "Model", "Fast", "Slow", "RSI", "Trades", "Win %", "Net P&L", "Max DD")
	var total float64
	for _, r := range results {
		s := r.Summary
		total += s.NetPnL
		table.AddRow(
			fmt.Sprintf("%d", r.Model.Number),
			fmt.Sprintf("%d", r.Model.Fast),
			fmt.Sprintf("%d", r.Model.Slow()),
			fmt.Sprintf("%.0f", r.Model.RSIThreshold),
			fmt.Sprintf("%d", s.Trades),
			fmt.Sprintf("%.0f%%", s.WinRate),
			output.FormatPnL(s.NetPnL),
			utils.FormatDollars(s.MaxDrawdown),
		)
	}
	table.Render()

	if len(results) == 1 {
		output.Println()
		renderLedger(output, results[0].Ledger)
		output.Println()
		output.Dim("Run ID: %s", results[0].RunID)
		return
	}

	output.Println()
	output.Printf("Total across %d models: %s\n", len(results), output.FormatPnL(total))
}

func newBacktestModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the signal model grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			grid := signals.Models()
			if output.IsJSON() {
				return output.JSON(grid)
			}

			table := NewTable(output, "Model", "Fast", "Slow", "RSI Threshold")
			for _, m := range grid {
				table.AddRow(
					fmt.Sprintf("%d", m.Number),
					fmt.Sprintf("%d", m.Fast),
					fmt.Sprintf("%d", m.Slow()),
					fmt.Sprintf("%.0f", m.RSIThreshold),
				)
			}
			table.Render()
			return nil
		},
	}
}
