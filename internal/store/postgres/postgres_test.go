package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
	"spread-backtester/internal/store"
	"spread-backtester/pkg/utils"
)

// setupTestStore starts a PostgreSQL container and connects a LedgerStore
// to it. Cleanup is registered on t.
func setupTestStore(t *testing.T) *LedgerStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func testLedger() models.Ledger {
	at := func(hh, mm int) time.Time {
		return time.Date(2023, 3, 1, hh, mm, 0, 0, utils.NewYorkLocation)
	}
	open := models.OpenTrade{
		EntryTime: at(9, 30), Direction: models.DirectionLong, EntrySpot: 400,
		EntryATMStrike: 400, Leg1Strike: 395, Leg2Strike: 390,
		EntryLeg1Price: 1.2, EntryLeg2Price: 0.5, EntryUnitSpread: 0.7, EntryUnitMaxLoss: 4.3,
		Contracts: 5, Stoploss: 1.05,
	}
	return models.Ledger{
		open.Close(models.ExitFacts{
			ExitTime: at(10, 15), ExitSpot: 401, ExitLeg1Price: 0.8, ExitLeg2Price: 0.3,
			ExitUnitSpread: 0.5, ExitReason: models.ExitReasonCriteria, UnitPnLGross: 0.2, PnL: 97.4,
		}),
		open.Close(models.ExitFacts{
			ExitTime: at(15, 0), ExitSpot: 398, ExitLeg1Price: 1.6, ExitLeg2Price: 0.7,
			ExitUnitSpread: 0.9, ExitReason: models.ExitReasonEndOfTime, UnitPnLGross: -0.2, PnL: -102.6,
		}),
	}
}

func TestLedgerStore_SaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	date := time.Date(2023, 3, 1, 0, 0, 0, 0, utils.NewYorkLocation)
	ledger := testLedger()
	ledger[1].EntryTime = ledger[0].ExitTime
	run := models.BacktestRun{
		ID: "run-1", Date: date, Ticker: "SPY", Model: 4,
		Strategy:  models.StrategyParameters{Leg1DollarFromATM: 5, Leg2DollarFromLeg1: 5, StoplossPctOfMaxProfit: 0.5},
		StartedAt: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
		Trades:    2, NetPnL: ledger.TotalPnL(),
	}
	require.NoError(t, s.SaveLedger(ctx, run, ledger))

	got, err := s.GetLedger(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].EntryTime.Equal(ledger[0].EntryTime))
	assert.Equal(t, models.DirectionLong, got[0].Direction)
	assert.Equal(t, models.ExitReasonEndOfTime, got[1].ExitReason)
	assert.InDelta(t, -102.6, got[1].PnL, 1e-9)

	runs, err := s.GetRuns(ctx, store.RunFilter{Date: date})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "SPY", runs[0].Ticker)
	assert.Equal(t, 4, runs[0].Model)
	assert.Equal(t, run.Strategy, runs[0].Strategy)
	assert.Equal(t, 1, runs[0].Date.Day())

	err = s.SaveLedger(ctx, run, ledger)
	assert.ErrorIs(t, err, ErrDuplicateRun)
}

func TestLedgerStore_EmptyLedgerAndMissingRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := models.BacktestRun{ID: "empty", Date: time.Date(2023, 3, 2, 0, 0, 0, 0, utils.NewYorkLocation), Ticker: "SPY"}
	require.NoError(t, s.SaveLedger(ctx, run, models.Ledger{}))

	got, err := s.GetLedger(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.GetLedger(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)

	model := 7
	runs, err := s.GetRuns(ctx, store.RunFilter{Model: &model})
	require.NoError(t, err)
	assert.Empty(t, runs)
}
