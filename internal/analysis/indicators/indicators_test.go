package indicators

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"spread-backtester/internal/models"
)

func closesToCandles(closes ...float64) []models.Candle {
	start := time.Date(2023, 3, 1, 9, 30, 0, 0, time.UTC)
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
		}
	}
	return candles
}

func TestSMA_Values(t *testing.T) {
	values, err := NewSMA(3).Calculate(closesToCandles(1, 2, 3, 4, 5))
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if Defined(values[0]) || Defined(values[1]) {
		t.Errorf("expected warmup to be undefined, got %v", values[:2])
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if values[i+2] != w {
			t.Errorf("values[%d] = %v, want %v", i+2, values[i+2], w)
		}
	}
}

func assertSeries(t *testing.T, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len = %d, want %d", name, len(got), len(want))
	}
	for i, w := range want {
		if math.IsNaN(w) {
			if Defined(got[i]) {
				t.Errorf("%s[%d] = %v, want undefined", name, i, got[i])
			}
			continue
		}
		if math.Abs(got[i]-w) > 1e-9 {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], w)
		}
	}
}

// Reference values match pandas ewm(span=n, adjust=False, min_periods=n).
func TestEMA_StartsFromFirstValue(t *testing.T) {
	nan := math.NaN()
	assertSeries(t, "ema", CalculateEMA([]float64{1, 2, 3, 4}, 3), []float64{nan, nan, 2.25, 3.125})
}

func TestEMA_SkipsLeadingUndefined(t *testing.T) {
	nan := math.NaN()
	got := CalculateEMA([]float64{nan, nan, 1, 2, 3, 4}, 3)
	assertSeries(t, "ema", got, []float64{nan, nan, nan, nan, 2.25, 3.125})
}

func TestRSI_MonotonicRiseIs100(t *testing.T) {
	values, err := NewRSI(3).Calculate(closesToCandles(1, 2, 3, 4, 5, 6))
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if Defined(values[1]) {
		t.Errorf("expected values[1] undefined, got %v", values[1])
	}
	for i := 2; i < len(values); i++ {
		if values[i] != 100 {
			t.Errorf("values[%d] = %v, want 100", i, values[i])
		}
	}
}

// Reference values match ta.momentum.RSIIndicator(window=2).
func TestRSI_MatchesReference(t *testing.T) {
	values, err := NewRSI(2).Calculate(closesToCandles(1, 2, 1, 2, 3))
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	assertSeries(t, "rsi", values, []float64{math.NaN(), 100, 100.0 / 3, 500.0 / 7, 1300.0 / 15})
}

// Reference values match ta.trend.MACD(window_fast=2, window_slow=3, window_sign=2).
func TestMACD_MatchesReference(t *testing.T) {
	lines, err := NewMACD(2, 3, 2).Calculate(closesToCandles(1, 2, 1, 2, 3, 4))
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	nan := math.NaN()
	assertSeries(t, "macd", lines["macd"], []float64{
		nan, nan, -0.02777777777777768, 0.1157407407407407, 0.2677469135802468, 0.37049897119341546,
	})
	assertSeries(t, "signal", lines["signal"], []float64{
		nan, nan, nan, 0.06790123456790123, 0.20113168724279828, 0.31404320987654305,
	})
	assertSeries(t, "histogram", lines["histogram"], []float64{
		nan, nan, nan, 0.04783950617283947, 0.06661522633744854, 0.05645576131687241,
	})
}

func TestIndicators_InsufficientData(t *testing.T) {
	candles := closesToCandles(1, 2)
	if _, err := NewSMA(5).Calculate(candles); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("SMA: expected ErrInsufficientData, got %v", err)
	}
	if _, err := NewRSI(5).Calculate(candles); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("RSI: expected ErrInsufficientData, got %v", err)
	}
	if _, err := NewSMA(0).Calculate(candles); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("SMA(0): expected ErrInvalidPeriod, got %v", err)
	}
}

func TestEngine_CalculateAll(t *testing.T) {
	engine := NewEngine(2)
	engine.RegisterIndicator(NewSMA(2))
	engine.RegisterIndicator(NewRSI(2))
	engine.RegisterMultiIndicator(NewMACD(2, 3, 2))

	results, err := engine.CalculateAll(context.Background(), closesToCandles(1, 2, 3, 4, 5, 6))
	if err != nil {
		t.Fatalf("CalculateAll failed: %v", err)
	}
	if _, ok := results.Single["SMA_2"]; !ok {
		t.Error("missing SMA_2")
	}
	if _, ok := results.Single["RSI_2"]; !ok {
		t.Error("missing RSI_2")
	}
	if _, ok := results.Multi["MACD_2_3_2"]; !ok {
		t.Error("missing MACD_2_3_2")
	}

	names := engine.ListIndicators()
	if len(names) != 3 || names[0] != "MACD_2_3_2" {
		t.Errorf("unexpected indicator list %v", names)
	}
}

func TestEngine_CalculateAllReportsFailure(t *testing.T) {
	engine := NewEngine(2)
	engine.RegisterIndicator(NewSMA(2))
	engine.RegisterIndicator(NewSMA(50))

	_, err := engine.CalculateAll(context.Background(), closesToCandles(1, 2, 3))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	engine := NewEngine(1)
	engine.RegisterIndicator(NewSMA(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.CalculateAll(ctx, closesToCandles(1, 2, 3)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
