// Package signals holds the boolean entry/exit series the day trader
// consumes and the model grid that derives them from minute candles.
package signals

import (
	"fmt"
	"sort"
	"time"
)

// Point is one observation of a boolean series.
type Point struct {
	Time  time.Time
	Value bool
}

// Series is an immutable boolean time series with strictly increasing
// timestamps. Lookups are binary searches over the index.
type Series struct {
	times  []time.Time
	values []bool
	trues  []int // trues[i] = number of true values in values[:i]
}

// NewSeries builds a series from points already in chronological order.
func NewSeries(points []Point) (*Series, error) {
	s := &Series{
		times:  make([]time.Time, len(points)),
		values: make([]bool, len(points)),
		trues:  make([]int, len(points)+1),
	}
	for i, p := range points {
		if i > 0 && !p.Time.After(points[i-1].Time) {
			return nil, fmt.Errorf("series point %d at %s is not after %s", i, p.Time, points[i-1].Time)
		}
		s.times[i] = p.Time
		s.values[i] = p.Value
		s.trues[i+1] = s.trues[i]
		if p.Value {
			s.trues[i+1]++
		}
	}
	return s, nil
}

// MustSeries is NewSeries for literals in tests and fixtures.
func MustSeries(points ...Point) *Series {
	s, err := NewSeries(points)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of observations.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.times)
}

// At returns the i-th observation.
func (s *Series) At(i int) Point {
	return Point{Time: s.times[i], Value: s.values[i]}
}

// search returns the index of the first observation at or after t.
func (s *Series) search(t time.Time) int {
	return sort.Search(len(s.times), func(i int) bool {
		return !s.times[i].Before(t)
	})
}

// LatestBefore returns the most recent value observed strictly before t.
// With no earlier observation the result is false.
func (s *Series) LatestBefore(t time.Time) bool {
	if s.Len() == 0 {
		return false
	}
	i := s.search(t)
	if i == 0 {
		return false
	}
	return s.values[i-1]
}

// AnyWithin reports whether any value in the half-open window [from, to)
// is true.
func (s *Series) AnyWithin(from, to time.Time) bool {
	if s.Len() == 0 || !from.Before(to) {
		return false
	}
	lo, hi := s.search(from), s.search(to)
	return s.trues[hi]-s.trues[lo] > 0
}

// Set is the four series a strategy model produces for one day.
type Set struct {
	EnterLong  *Series
	ExitLong   *Series
	EnterShort *Series
	ExitShort  *Series
}
