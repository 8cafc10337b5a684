package models

import (
	"sort"
	"time"
)

// OptionSide identifies the call or put half of a strike row.
type OptionSide string

const (
	Call OptionSide = "call"
	Put  OptionSide = "put"
)

// SideQuote holds the market for one side (call or put) of a strike.
type SideQuote struct {
	MidIV        float64
	OpenInterest int64
	Volume       int64
	BidSize      int64
	AskSize      int64
	BidPrice     float64
	AskPrice     float64
	Delta        float64
}

// StrikeRow is a single strike of a one-minute option chain.
type StrikeRow struct {
	Time       time.Time
	Strike     float64
	StockPrice float64
	Call       SideQuote
	Put        SideQuote
}

// Quote returns the quote for the requested side.
func (r StrikeRow) Quote(side OptionSide) SideQuote {
	if side == Call {
		return r.Call
	}
	return r.Put
}

// OptionChainSnapshot is the immutable chain for one tradeable minute.
// Rows keep the feed's native strike ordering.
type OptionChainSnapshot struct {
	Time       time.Time
	StockPrice float64
	Rows       []StrikeRow
}

// Len returns the number of strikes in the snapshot.
func (s OptionChainSnapshot) Len() int {
	return len(s.Rows)
}

// GroupSnapshots groups flat chain rows into one snapshot per distinct
// minute, ordered chronologically. The underlying price of a snapshot is
// taken from its first row.
func GroupSnapshots(rows []StrikeRow) []OptionChainSnapshot {
	index := make(map[int64]int)
	var snapshots []OptionChainSnapshot

	for _, row := range rows {
		key := row.Time.Unix()
		i, ok := index[key]
		if !ok {
			i = len(snapshots)
			index[key] = i
			snapshots = append(snapshots, OptionChainSnapshot{
				Time:       row.Time,
				StockPrice: row.StockPrice,
			})
		}
		snapshots[i].Rows = append(snapshots[i].Rows, row)
	}

	sort.SliceStable(snapshots, func(a, b int) bool {
		return snapshots[a].Time.Before(snapshots[b].Time)
	})
	return snapshots
}

// FlattenSnapshots is the inverse of GroupSnapshots.
func FlattenSnapshots(snapshots []OptionChainSnapshot) []StrikeRow {
	var rows []StrikeRow
	for _, s := range snapshots {
		rows = append(rows, s.Rows...)
	}
	return rows
}
