package indicators

import (
	"fmt"

	"spread-backtester/internal/models"
)

// RSI calculates the Relative Strength Index.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) Period() int {
	return r.period
}

func (r *RSI) Calculate(candles []models.Candle) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < r.period {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	result := undefined(n)
	closes := closePrices(candles)

	// The first bar has no change and counts as a zero gain and loss.
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	alpha := 1.0 / float64(r.period)
	avgGain := ewm(gains, alpha, r.period)
	avgLoss := ewm(losses, alpha, r.period)
	for i := r.period - 1; i < n; i++ {
		result[i] = rsiValue(avgGain[i], avgLoss[i])
	}

	return result, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
