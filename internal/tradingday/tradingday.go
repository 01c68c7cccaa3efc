// Package tradingday provides exchange-calendar helpers. Calendar-date
// keys are always derived in the exchange time zone so that a run started
// late at night UTC still lands on the correct local trading day.
package tradingday

import "time"

// TST is the exchange time zone (UTC+8).
var TST = time.FixedZone("TST", 8*3600)

// DayFormat is the calendar-date key format used by the report cache and
// the audit queries.
const DayFormat = "2006-01-02"

// DayKey returns the calendar date of t in the exchange time zone.
func DayKey(t time.Time) string {
	return t.In(TST).Format(DayFormat)
}

// ParseDay parses a "YYYY-MM-DD" key into midnight exchange time.
func ParseDay(day string) (time.Time, error) {
	return time.ParseInLocation(DayFormat, day, TST)
}

// IsWeekday reports whether t is Mon-Fri in exchange time.
func IsWeekday(t time.Time) bool {
	wd := t.In(TST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay reports whether t is a weekday and not one of the given
// exchange holidays ("YYYY-MM-DD" keys in exchange time).
func IsTradingDay(holidays []string, t time.Time) bool {
	if !IsWeekday(t) {
		return false
	}
	key := DayKey(t)
	for _, h := range holidays {
		if h == key {
			return false
		}
	}
	return true
}

// DayBounds returns the [start, end) instants of the calendar day containing
// t, in exchange time. Used for audit range queries over order timestamps.
func DayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(TST)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, TST)
	return start, start.Add(24 * time.Hour)
}
