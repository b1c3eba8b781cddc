package calendar

import (
	"time"
	_ "time/tzdata" // embed zone data for hosts without it
)

const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	easternZone = "America/New_York"
)

var eastern = loadEastern()

func loadEastern() *time.Location {
	if loc, err := time.LoadLocation(easternZone); err == nil {
		return loc
	}
	return time.FixedZone("EST", -5*60*60)
}

// Eastern returns the exchange time zone.
func Eastern() *time.Location { return eastern }

// IsTradingDay reports whether the exchange is open on t's calendar day.
func IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !IsHoliday(t)
}

// OptionExpiration returns the monthly expiration on or after t: the third
// Friday of the month, moved back to the prior trading day when the exchange
// is closed that Friday.
func OptionExpiration(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	for !(day.Weekday() == time.Friday && day.Day() > 14 && day.Day() < 22) {
		day = day.AddDate(0, 0, 1)
	}
	for !IsTradingDay(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// PreviousTradingDay returns the closest trading day strictly before t.
func PreviousTradingDay(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, -1)
	for !IsTradingDay(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// LastClose returns the most recent session close as of now. During the
// session it returns now itself, truncated to the second.
func LastClose(now time.Time) time.Time {
	et := now.In(eastern)
	closeAt := time.Date(et.Year(), et.Month(), et.Day(), closeHour, 0, 0, 0, eastern)
	openAt := time.Date(et.Year(), et.Month(), et.Day(), openHour, openMinute, 0, 0, eastern)

	if !IsTradingDay(et) || et.Before(openAt) {
		prev := PreviousTradingDay(et)
		return time.Date(prev.Year(), prev.Month(), prev.Day(), closeHour, 0, 0, 0, eastern)
	}
	if et.Before(closeAt) {
		return et.Truncate(time.Second)
	}
	return closeAt
}

// CreatedMinute stamps a fetch: now in exchange time truncated to the minute.
func CreatedMinute(now time.Time) time.Time {
	return now.In(eastern).Truncate(time.Minute)
}

// FromEpochMillis converts a provider epoch-ms timestamp to exchange time. A
// zero value means "never" and yields ok=false.
func FromEpochMillis(ms int64) (time.Time, bool) {
	if ms == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).In(eastern), true
}
