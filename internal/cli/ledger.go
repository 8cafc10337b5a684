package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
	"spread-backtester/internal/store"
	"spread-backtester/pkg/utils"
)

func newLedgerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect stored backtest ledgers",
	}
	cmd.AddCommand(newLedgerShowCmd(app))
	cmd.AddCommand(newLedgerRunsCmd(app))
	return cmd
}

func newLedgerShowCmd(app *App) *cobra.Command {
	var (
		dateStr string
		runID   string
		model   int
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the trades of a run",
		Long:  "Show the trades of a run, by run ID or as the latest run of a date and model.",
		Example: `  spreadbt ledger show --date 2023-03-01
  spreadbt ledger show --date 2023-03-01 --model 4
  spreadbt ledger show --run 3f2c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			st, err := app.OpenStore()
			if err != nil {
				return err
			}

			if runID == "" {
				if dateStr == "" {
					return fmt.Errorf("either --run or --date is required")
				}
				date, err := utils.ParseDate(dateStr, app.Config.Location())
				if err != nil {
					return err
				}
				filter := store.RunFilter{Ticker: app.Config.Data.Ticker, Date: date, Limit: 1}
				if cmd.Flags().Changed("model") {
					filter.Model = &model
				}
				runs, err := st.GetRuns(ctx, filter)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return fmt.Errorf("no runs for %s: %w", date.Format("2006-01-02"), apperrors.ErrDataNotFound)
				}
				runID = runs[0].ID
			}

			ledger, err := st.GetLedger(ctx, runID)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"run_id": runID,
					"trades": ledger,
				})
			}

			output.Bold("Run %s", runID)
			renderLedger(output, ledger)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "trading date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&runID, "run", "", "run ID")
	cmd.Flags().IntVar(&model, "model", 0, "signal model number")

	return cmd
}

func newLedgerRunsCmd(app *App) *cobra.Command {
	var (
		dateStr string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored backtest runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st, err := app.OpenStore()
			if err != nil {
				return err
			}

			filter := store.RunFilter{Ticker: app.Config.Data.Ticker, Limit: limit}
			if dateStr != "" {
				if filter.Date, err = utils.ParseDate(dateStr, app.Config.Location()); err != nil {
					return err
				}
			}

			runs, err := st.GetRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Warning("No runs found")
				return nil
			}

			table := NewTable(output, "Run ID", "Date", "Model", "Trades", "Net P&L", "Started")
			for _, r := range runs {
				table.AddRow(
					r.ID,
					r.Date.Format("2006-01-02"),
					fmt.Sprintf("%d", r.Model),
					fmt.Sprintf("%d", r.Trades),
					output.FormatPnL(r.NetPnL),
					r.StartedAt.Format("2006-01-02 15:04:05"),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "only runs of this trading date")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	return cmd
}

// renderLedger prints one row per trade.
func renderLedger(output *Output, ledger models.Ledger) {
	if len(ledger) == 0 {
		output.Dim("No trades")
		return
	}

	table := NewTable(output, "Entry", "Exit", "Side", "Strikes", "Qty", "Credit", "Close", "Reason", "P&L")
	for _, t := range ledger {
		table.AddRow(
			t.EntryTime.Format("15:04"),
			t.ExitTime.Format("15:04"),
			t.Direction.String(),
			utils.FormatStrike(t.Leg1Strike)+"/"+utils.FormatStrike(t.Leg2Strike),
			fmt.Sprintf("%d", t.Contracts),
			fmt.Sprintf("%.2f", t.EntryUnitSpread),
			fmt.Sprintf("%.2f", t.ExitUnitSpread),
			string(t.ExitReason),
			output.FormatPnL(t.PnL),
		)
	}
	table.Render()
	output.Printf("Net P&L: %s\n", output.FormatPnL(ledger.TotalPnL()))
}
