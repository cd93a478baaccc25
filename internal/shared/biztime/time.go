// Package biztime owns every date computation in the system.
//
// All timestamps are stored and compared in UTC. Day counts are inclusive:
// an interval that starts and ends on the same calendar day lasts one day.
// Callers never subtract or add dates themselves; they go through
// DaysBetween, EndForDays and Horizon.
package biztime

import "time"

const day = 24 * time.Hour

// NowUTC returns the current instant in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Normalize converts t to UTC. Go timestamps always carry a zone, so this is
// a change of representation only; the instant is preserved. Normalize is
// idempotent.
func Normalize(t time.Time) time.Time {
	return t.UTC()
}

// StartOfDay truncates t to UTC midnight.
func StartOfDay(t time.Time) time.Time {
	t = Normalize(t)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts the calendar days from start to end inclusive.
// DaysBetween(d, d) is 1. The result is zero or negative when end falls on
// an earlier day than start.
func DaysBetween(start, end time.Time) int {
	return int(StartOfDay(end).Sub(StartOfDay(start))/day) + 1
}

// EndForDays returns the end of an interval of n days beginning at start,
// so that DaysBetween(start, EndForDays(start, n)) == n for n >= 1.
func EndForDays(start time.Time, n int) time.Time {
	return Normalize(start).AddDate(0, 0, n-1)
}

// Horizon returns the instant d after now, used for look-ahead windows.
func Horizon(now time.Time, d time.Duration) time.Time {
	return Normalize(now).Add(d)
}

// Expired reports whether an interval ending at end has lapsed at now.
func Expired(end, now time.Time) bool {
	return !Normalize(end).After(Normalize(now))
}
