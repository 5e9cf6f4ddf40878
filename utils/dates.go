package utils

import "time"

const DateLayout = "2006-01-02"

// CalendarDate derives the date-only component of a meal timestamp: midnight
// UTC of the instant's UTC day. All aggregation and streak logic keys on this
// value, never on wall-clock log time.
func CalendarDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight instant.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// SameDay reports whether two instants fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return CalendarDate(a).Equal(CalendarDate(b))
}
