package indicators

import (
	"errors"
	"math"

	"spread-backtester/internal/models"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
)

// undefined returns a slice of n NaNs. Positions inside an indicator's
// warmup window stay NaN so callers can tell them apart from real zeros.
func undefined(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Defined reports whether v is a computed indicator value.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// sum calculates the sum of a slice of float64.
func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// trueRange calculates the true range for a candle.
func trueRange(current, previous models.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

// closePrices extracts close prices from candles.
func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

// firstDefined returns the index of the first non-NaN value, or len(values).
func firstDefined(values []float64) int {
	for i, v := range values {
		if Defined(v) {
			return i
		}
	}
	return len(values)
}

// ewm applies an exponentially weighted mean with adjust=False: the first
// defined value seeds the average and each later value x moves it by
// alpha*(x-prev). Output stays NaN until minPeriods defined values have
// been seen. Leading NaNs are skipped.
func ewm(values []float64, alpha float64, minPeriods int) []float64 {
	result := undefined(len(values))
	start := firstDefined(values)
	if start == len(values) {
		return result
	}

	avg := values[start]
	seen := 0
	for i := start; i < len(values); i++ {
		if i > start {
			avg = (1-alpha)*avg + alpha*values[i]
		}
		seen++
		if seen >= minPeriods {
			result[i] = avg
		}
	}
	return result
}
