package indicators

import (
	"fmt"

	"spread-backtester/internal/models"
)

// SMA calculates Simple Moving Average.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

func (s *SMA) Calculate(candles []models.Candle) ([]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < s.period {
		return nil, ErrInsufficientData
	}

	result := undefined(len(candles))
	closes := closePrices(candles)

	for i := s.period - 1; i < len(candles); i++ {
		result[i] = mean(closes[i-s.period+1 : i+1])
	}

	return result, nil
}

// EMA calculates Exponential Moving Average.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA_%d", e.period)
}

func (e *EMA) Period() int {
	return e.period
}

func (e *EMA) Calculate(candles []models.Candle) ([]float64, error) {
	if e.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < e.period {
		return nil, ErrInsufficientData
	}
	return CalculateEMA(closePrices(candles), e.period), nil
}

// CalculateEMA calculates EMA on raw values with smoothing 2/(period+1),
// seeded with the first defined value and undefined for the first period
// points. Leading NaNs in values are skipped, so the helper can smooth
// another indicator's output.
func CalculateEMA(values []float64, period int) []float64 {
	if period <= 0 {
		return undefined(len(values))
	}
	return ewm(values, 2.0/float64(period+1), period)
}

// MACD calculates Moving Average Convergence Divergence.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

func (m *MACD) Period() int {
	return m.slowPeriod + m.signalPeriod - 1
}

// Calculate returns the "macd", "signal" and "histogram" lines. The
// histogram is the MACD diff used by the entry rules.
func (m *MACD) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if m.fastPeriod <= 0 || m.slowPeriod <= 0 || m.signalPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < m.Period() {
		return nil, ErrInsufficientData
	}

	closes := closePrices(candles)
	fastEMA := CalculateEMA(closes, m.fastPeriod)
	slowEMA := CalculateEMA(closes, m.slowPeriod)

	macdLine := undefined(len(candles))
	for i := range candles {
		if Defined(fastEMA[i]) && Defined(slowEMA[i]) {
			macdLine[i] = fastEMA[i] - slowEMA[i]
		}
	}

	signalLine := CalculateEMA(macdLine, m.signalPeriod)

	histogram := undefined(len(candles))
	for i := range candles {
		if Defined(signalLine[i]) {
			histogram[i] = macdLine[i] - signalLine[i]
		}
	}

	return map[string][]float64{
		"macd":      macdLine,
		"signal":    signalLine,
		"histogram": histogram,
	}, nil
}
