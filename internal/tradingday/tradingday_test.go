package tradingday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayKeyUsesExchangeZone(t *testing.T) {
	// 2025-01-09 23:30 UTC is already 2025-01-10 in UTC+8.
	ts := time.Date(2025, 1, 9, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-10", DayKey(ts))
}

func TestParseDayRoundTrip(t *testing.T) {
	ts, err := ParseDay("2025-01-10")
	assert.NoError(t, err)
	assert.Equal(t, "2025-01-10", DayKey(ts))
}

func TestDayBounds(t *testing.T) {
	ts := time.Date(2025, 1, 10, 13, 45, 0, 0, TST)
	start, end := DayBounds(ts)
	assert.Equal(t, "2025-01-10", start.Format(DayFormat))
	assert.Equal(t, 24*time.Hour, end.Sub(start))
	assert.True(t, !ts.Before(start) && ts.Before(end))
}

func TestIsWeekday(t *testing.T) {
	assert.True(t, IsWeekday(time.Date(2025, 1, 10, 9, 0, 0, 0, TST)))  // Friday
	assert.False(t, IsWeekday(time.Date(2025, 1, 11, 9, 0, 0, 0, TST))) // Saturday
}

func TestIsTradingDay(t *testing.T) {
	holidays := []string{"2025-01-01", "2025-01-28"}

	assert.True(t, IsTradingDay(holidays, time.Date(2025, 1, 10, 9, 0, 0, 0, TST)))   // Friday
	assert.False(t, IsTradingDay(holidays, time.Date(2025, 1, 11, 9, 0, 0, 0, TST)))  // Saturday
	assert.False(t, IsTradingDay(holidays, time.Date(2025, 1, 1, 9, 0, 0, 0, TST)))   // holiday
	assert.False(t, IsTradingDay(holidays, time.Date(2025, 1, 28, 9, 0, 0, 0, TST)))  // holiday
	assert.True(t, IsTradingDay(nil, time.Date(2025, 1, 28, 9, 0, 0, 0, TST)))        // no calendar
	assert.False(t, IsTradingDay(holidays, time.Date(2024, 12, 31, 16, 30, 0, 0, time.UTC))) // already Jan 1 in TST
}
