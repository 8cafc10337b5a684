package utils

import (
	"fmt"
	"strings"
	"time"
)

// NewYorkLocation is the timezone US equity options trade in.
var NewYorkLocation *time.Location

func init() {
	var err error
	NewYorkLocation, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback to EST; daylight saving is lost
		NewYorkLocation = time.FixedZone("EST", -5*60*60)
	}
}

// LoadLocation resolves a timezone name, falling back to New York for "".
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return NewYorkLocation, nil
	}
	return time.LoadLocation(name)
}

// ParseDate parses a trading date given as 2006-01-02 or 20060102.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or YYYYMMDD", s)
}

// ParseClock parses a wall-clock time such as "14:30" into an offset from
// midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// DayStart returns midnight of t's calendar day in t's location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// At returns the wall-clock time clock on date's calendar day.
func At(date time.Time, clock time.Duration) time.Time {
	h := int(clock / time.Hour)
	m := int(clock%time.Hour) / int(time.Minute)
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, date.Location())
}

// TradeMinutes lists the minutes from..to inclusive, every interval, on
// date's calendar day.
func TradeMinutes(date time.Time, from, to, interval time.Duration) []time.Time {
	if interval <= 0 {
		interval = time.Minute
	}
	var minutes []time.Time
	for clock := from; clock <= to; clock += interval {
		minutes = append(minutes, At(date, clock))
	}
	return minutes
}

// IsTradingDay reports whether date falls on a weekday. Exchange holidays
// are not known here; the feeds simply return no data for them.
func IsTradingDay(date time.Time) bool {
	return date.Weekday() != time.Saturday && date.Weekday() != time.Sunday
}

// DateKey formats a date the way per-day files are named.
func DateKey(date time.Time) string {
	return date.Format("20060102")
}
