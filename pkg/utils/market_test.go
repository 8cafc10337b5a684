package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2023-03-01", "20230301", " 2023-03-01 "} {
		d, err := ParseDate(s, NewYorkLocation)
		require.NoError(t, err, s)
		assert.Equal(t, time.Date(2023, 3, 1, 0, 0, 0, 0, NewYorkLocation), d)
	}

	_, err := ParseDate("03/01/2023", NewYorkLocation)
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("14:30")
	require.NoError(t, err)
	assert.Equal(t, 14*time.Hour+30*time.Minute, d)

	_, err = ParseClock("2:30pm")
	assert.Error(t, err)
}

func TestTradeMinutes(t *testing.T) {
	date := time.Date(2023, 3, 1, 0, 0, 0, 0, NewYorkLocation)

	minutes := TradeMinutes(date, 9*time.Hour+30*time.Minute, 15*time.Hour+time.Minute, 5*time.Minute)
	require.Len(t, minutes, 67)
	assert.Equal(t, "09:30", minutes[0].Format("15:04"))
	assert.Equal(t, "15:00", minutes[len(minutes)-1].Format("15:04"))

	// A non-positive interval falls back to every minute.
	assert.Len(t, TradeMinutes(date, 9*time.Hour+30*time.Minute, 9*time.Hour+34*time.Minute, 0), 5)
}

func TestIsTradingDay(t *testing.T) {
	assert.True(t, IsTradingDay(time.Date(2023, 3, 3, 0, 0, 0, 0, time.UTC)))  // Friday
	assert.False(t, IsTradingDay(time.Date(2023, 3, 4, 0, 0, 0, 0, time.UTC))) // Saturday
	assert.False(t, IsTradingDay(time.Date(2023, 3, 5, 0, 0, 0, 0, time.UTC))) // Sunday
}

func TestDayStartAndAt(t *testing.T) {
	ts := time.Date(2023, 3, 1, 13, 47, 12, 0, NewYorkLocation)
	assert.Equal(t, time.Date(2023, 3, 1, 0, 0, 0, 0, NewYorkLocation), DayStart(ts))
	assert.Equal(t, time.Date(2023, 3, 1, 9, 30, 0, 0, NewYorkLocation), At(ts, 9*time.Hour+30*time.Minute))
	assert.Equal(t, "20230301", DateKey(ts))
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, NewYorkLocation, loc)

	_, err = LoadLocation("Mars/Olympus_Mons")
	assert.Error(t, err)
}
