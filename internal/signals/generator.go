package signals

import (
	"context"
	"fmt"
	"time"

	"spread-backtester/internal/analysis/indicators"
	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
)

// MACDSignalPeriod is the signal-line EMA period used by every model.
const MACDSignalPeriod = 9

var (
	fastPeriods   = []int{5, 10, 20}
	slowMultiples = []int{2, 3, 5}
	rsiThresholds = []float64{60, 70}
)

// Model is one point of the strategy parameter grid.
type Model struct {
	Number       int     `json:"model"`
	Fast         int     `json:"fast"`
	SlowMult     int     `json:"slow_mult"`
	RSIThreshold float64 `json:"rsi_threshold"`
}

// Slow is the slow window shared by the slow SMA, RSI, MACD and ATR.
func (m Model) Slow() int {
	return m.Fast * m.SlowMult
}

func (m Model) String() string {
	return fmt.Sprintf("model %d (fast=%d slow=%d rsi=%.0f)", m.Number, m.Fast, m.Slow(), m.RSIThreshold)
}

// Models returns the full grid. The fast period varies slowest and the RSI
// threshold fastest; a model's number is its index.
func Models() []Model {
	out := make([]Model, 0, len(fastPeriods)*len(slowMultiples)*len(rsiThresholds))
	for _, fast := range fastPeriods {
		for _, mult := range slowMultiples {
			for _, thr := range rsiThresholds {
				out = append(out, Model{
					Number:       len(out),
					Fast:         fast,
					SlowMult:     mult,
					RSIThreshold: thr,
				})
			}
		}
	}
	return out
}

// ModelByNumber looks up a model by its grid index.
func ModelByNumber(n int) (Model, error) {
	grid := Models()
	if n < 0 || n >= len(grid) {
		return Model{}, fmt.Errorf("%w: %d (have 0..%d)", apperrors.ErrUnknownModel, n, len(grid)-1)
	}
	return grid[n], nil
}

func smaName(period int) string      { return indicators.NewSMA(period).Name() }
func rsiName(period int) string      { return indicators.NewRSI(period).Name() }
func atrName(period int) string      { return indicators.NewATR(period).Name() }
func macdName(fast, slow int) string { return indicators.NewMACD(fast, slow, MACDSignalPeriod).Name() }

// Table is the indicator matrix for one day, restricted to the minutes at
// which every indicator of the grid is defined.
type Table struct {
	Times   []time.Time
	Columns map[string][]float64
}

// Generator computes indicator tables and per-model signal sets.
type Generator struct {
	workers int
	models  []Model
}

// NewGenerator creates a generator over the full model grid.
func NewGenerator(workers int) *Generator {
	return &Generator{workers: workers, models: Models()}
}

// Compute evaluates every indicator the grid needs over the candles, in
// parallel, and drops the minutes where any of them is still warming up.
func (g *Generator) Compute(ctx context.Context, candles []models.Candle) (*Table, error) {
	for i := 1; i < len(candles); i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			return nil, fmt.Errorf("candle %d at %s is not after %s", i, candles[i].Timestamp, candles[i-1].Timestamp)
		}
	}

	engine := indicators.NewEngine(g.workers)
	for _, m := range g.models {
		engine.RegisterIndicator(indicators.NewSMA(m.Fast))
		engine.RegisterIndicator(indicators.NewSMA(m.Slow()))
		engine.RegisterIndicator(indicators.NewRSI(m.Slow()))
		engine.RegisterIndicator(indicators.NewATR(m.Slow()))
		engine.RegisterMultiIndicator(indicators.NewMACD(m.Fast, m.Slow(), MACDSignalPeriod))
	}

	results, err := engine.CalculateAll(ctx, candles)
	if err != nil {
		return nil, fmt.Errorf("compute indicators over %d candles: %w", len(candles), err)
	}

	columns := make(map[string][]float64, len(results.Single)+len(results.Multi))
	for name, values := range results.Single {
		columns[name] = values
	}
	for name, lines := range results.Multi {
		columns[name] = lines["histogram"]
	}

	table := &Table{Columns: make(map[string][]float64, len(columns))}
	keep := make([]int, 0, len(candles))
rows:
	for i := range candles {
		for _, values := range columns {
			if !indicators.Defined(values[i]) {
				continue rows
			}
		}
		keep = append(keep, i)
	}

	table.Times = make([]time.Time, len(keep))
	for j, i := range keep {
		table.Times[j] = candles[i].Timestamp
	}
	for name, values := range columns {
		col := make([]float64, len(keep))
		for j, i := range keep {
			col[j] = values[i]
		}
		table.Columns[name] = col
	}
	return table, nil
}

// Signals derives the entry and exit series of one model from the table.
func (t *Table) Signals(m Model) (Set, error) {
	smaFast, ok1 := t.Columns[smaName(m.Fast)]
	smaSlow, ok2 := t.Columns[smaName(m.Slow())]
	rsi, ok3 := t.Columns[rsiName(m.Slow())]
	macdDiff, ok4 := t.Columns[macdName(m.Fast, m.Slow())]
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Set{}, fmt.Errorf("%w: indicators for %s were not computed", apperrors.ErrUnknownModel, m)
	}

	n := len(t.Times)
	enterLong := make([]Point, n)
	exitLong := make([]Point, n)
	enterShort := make([]Point, n)
	exitShort := make([]Point, n)
	lower := 100 - m.RSIThreshold

	for i, ts := range t.Times {
		enterLong[i] = Point{ts, smaFast[i] > smaSlow[i] && macdDiff[i] > 0 && rsi[i] <= m.RSIThreshold}
		exitLong[i] = Point{ts, rsi[i] > m.RSIThreshold}
		enterShort[i] = Point{ts, smaFast[i] < smaSlow[i] && macdDiff[i] < 0 && rsi[i] >= lower}
		exitShort[i] = Point{ts, rsi[i] < lower}
	}

	var set Set
	var err error
	if set.EnterLong, err = NewSeries(enterLong); err != nil {
		return Set{}, err
	}
	if set.ExitLong, err = NewSeries(exitLong); err != nil {
		return Set{}, err
	}
	if set.EnterShort, err = NewSeries(enterShort); err != nil {
		return Set{}, err
	}
	if set.ExitShort, err = NewSeries(exitShort); err != nil {
		return Set{}, err
	}
	return set, nil
}

// Generate is Compute followed by Signals for a single model.
func (g *Generator) Generate(ctx context.Context, candles []models.Candle, m Model) (Set, error) {
	table, err := g.Compute(ctx, candles)
	if err != nil {
		return Set{}, err
	}
	return table.Signals(m)
}

// Columns lists the indicator column names a model reads, in rule order.
func (m Model) Columns() []string {
	return []string{smaName(m.Fast), smaName(m.Slow()), macdName(m.Fast, m.Slow()), rsiName(m.Slow()), atrName(m.Slow())}
}
