package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spread-backtester/internal/datafeed"
	"spread-backtester/pkg/utils"
)

func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Download and import market data",
	}
	cmd.AddCommand(newDataUpdateCmd(app))
	cmd.AddCommand(newDataImportCmd(app))
	cmd.AddCommand(newDataStatusCmd(app))
	return cmd
}

func newDataUpdateCmd(app *App) *cobra.Command {
	var (
		dateStr     string
		toStr       string
		skipStock   bool
		skipOptions bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download stock bars and option chains",
		Long: `Download one-minute stock bars (EODHD) and option chains (ORATS) for a
trading day. Files are written to the data directory and loaded into the
SQLite store. Tokens are read from TOKEN_EODHD and TOKEN_ORATS.`,
		Example: `  spreadbt data update --date 2023-03-01
  spreadbt data update --date 2023-03-01 --to 2023-03-10 --skip-stock`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			loc := app.Config.Location()

			from, err := utils.ParseDate(dateStr, loc)
			if err != nil {
				return err
			}
			to := from
			if toStr != "" {
				if to, err = utils.ParseDate(toStr, loc); err != nil {
					return err
				}
			}
			if to.Before(from) {
				return fmt.Errorf("--to %s is before --date %s", toStr, dateStr)
			}

			updater, closeCache, err := buildUpdater(ctx, app)
			if err != nil {
				return err
			}
			defer closeCache()

			opts := datafeed.UpdateOptions{Stock: !skipStock, Options: !skipOptions}
			var results []datafeed.UpdateResult
			for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
				if !utils.IsTradingDay(day) {
					continue
				}
				res, err := updater.UpdateDay(ctx, day, opts)
				if err != nil {
					return fmt.Errorf("update %s: %w", day.Format("2006-01-02"), err)
				}
				results = append(results, res)
				if !output.IsJSON() {
					output.Success("%s: %d bars, %d snapshots (%d rows), %d minutes without data",
						day.Format("2006-01-02"), res.Candles, res.Snapshots, res.Rows, res.MissingMinutes)
				}
			}

			if output.IsJSON() {
				return output.JSON(results)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "trading date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "last date of a range (inclusive)")
	cmd.Flags().BoolVar(&skipStock, "skip-stock", false, "do not download stock bars")
	cmd.Flags().BoolVar(&skipOptions, "skip-options", false, "do not download option chains")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

// buildUpdater wires the vendor clients, the optional Redis cache, the
// data directory and the store.
func buildUpdater(ctx context.Context, app *App) (*datafeed.Updater, func(), error) {
	cfg := app.Config
	noop := func() {}

	var cache datafeed.Cache
	closeCache := noop
	if cfg.Cache.RedisAddr != "" {
		rc, err := datafeed.NewRedisCache(ctx, datafeed.RedisCacheConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		cache = rc
		closeCache = func() { _ = rc.Close() }
	}

	loc := cfg.Location()
	eodhd, err := datafeed.NewEODHDClient(datafeed.EODHDConfig{
		BaseURL:  cfg.Data.EODHDBaseURL,
		Token:    cfg.Credentials.EODHDToken,
		Symbol:   cfg.Data.StockSymbol,
		Location: loc,
	}, cache, app.Logger)
	if err != nil {
		closeCache()
		return nil, nil, err
	}
	orats, err := datafeed.NewORATSClient(datafeed.ORATSConfig{
		BaseURL:  cfg.Data.ORATSBaseURL,
		Token:    cfg.Credentials.ORATSToken,
		Ticker:   cfg.Data.Ticker,
		DTE:      cfg.Data.DTE,
		Location: loc,
	}, cache, app.Logger)
	if err != nil {
		closeCache()
		return nil, nil, err
	}

	st, err := app.OpenStore()
	if err != nil {
		closeCache()
		return nil, nil, err
	}

	ucfg := datafeed.DefaultUpdaterConfig()
	ucfg.Ticker = cfg.Data.Ticker
	ucfg.Interval = cfg.Session.Interval
	ucfg.Concurrency = cfg.Data.Concurrency
	ucfg.RequestsPerSecond = cfg.Data.RequestsPerSecond

	return datafeed.NewUpdater(ucfg, eodhd, orats, app.DataDir(), st, app.Logger), closeCache, nil
}

func newDataImportCmd(app *App) *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a day's CSV files into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			date, err := utils.ParseDate(dateStr, app.Config.Location())
			if err != nil {
				return err
			}
			st, err := app.OpenStore()
			if err != nil {
				return err
			}

			candles, rows, err := app.DataDir().ImportDay(cmd.Context(), st, app.Config.Data.Ticker, date)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"date":    date.Format("2006-01-02"),
					"candles": candles,
					"rows":    rows,
				})
			}
			output.Success("Imported %d bars and %d chain rows for %s", candles, rows, date.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "trading date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newDataStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored days and last download times",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			dates, err := st.GetChainDates(cmd.Context(), app.Config.Data.Ticker)
			if err != nil {
				return err
			}
			stockSync := st.GetLastSync(datafeed.SyncStock)
			optionsSync := st.GetLastSync(datafeed.SyncOptions)

			if output.IsJSON() {
				days := make([]string, len(dates))
				for i, d := range dates {
					days[i] = d.Format("2006-01-02")
				}
				return output.JSON(map[string]interface{}{
					"ticker":            app.Config.Data.Ticker,
					"days":              days,
					"last_stock_sync":   stockSync,
					"last_options_sync": optionsSync,
				})
			}

			output.Bold("%s: %d days with option chains", app.Config.Data.Ticker, len(dates))
			for _, d := range dates {
				output.Printf("  %s\n", d.Format("2006-01-02 Mon"))
			}
			output.Println()
			output.Printf("Last stock download:   %s\n", formatSync(stockSync))
			output.Printf("Last options download: %s\n", formatSync(optionsSync))
			return nil
		},
	}
}

func formatSync(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}
