package util

import "time"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// CalendarDate formats t as YYYY-MM-DD in UTC.
func CalendarDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// ParseCalendarDate parses a YYYY-MM-DD date.
func ParseCalendarDate(value string) (time.Time, error) {
	return time.Parse(time.DateOnly, value)
}
