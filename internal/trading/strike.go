package trading

import (
	"fmt"
	"math"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
)

// NearestStrike returns the row whose strike is closest to target. Ties go
// to the row that comes first in the snapshot.
func NearestStrike(snap models.OptionChainSnapshot, target float64) (models.StrikeRow, error) {
	if snap.Len() == 0 {
		return models.StrikeRow{}, fmt.Errorf("%w at %s", apperrors.ErrEmptySnapshot, snap.Time.Format("15:04"))
	}

	best := 0
	bestDist := math.Abs(snap.Rows[0].Strike - target)
	for i := 1; i < len(snap.Rows); i++ {
		if d := math.Abs(snap.Rows[i].Strike - target); d < bestDist {
			best, bestDist = i, d
		}
	}
	return snap.Rows[best], nil
}

// RowAtStrike returns the row listing exactly the given strike.
func RowAtStrike(snap models.OptionChainSnapshot, strike float64) (models.StrikeRow, error) {
	for _, row := range snap.Rows {
		if row.Strike == strike {
			return row, nil
		}
	}
	return models.StrikeRow{}, fmt.Errorf("%w: %.2f at %s", apperrors.ErrStrikeNotFound, strike, snap.Time.Format("15:04"))
}
