package journal

import (
	"time"
)

// DateLayout is the on-disk post date format (DD.MM.YYYY). Single-digit days and months are accepted on input.
const DateLayout = "02.01.2006"

const parseLayout = "2.1.2006"

// maxDate sorts undated posts after every dated one.
var maxDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// ParseDate parses a DD.MM.YYYY string into a UTC calendar date.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(parseLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders a date in DD.MM.YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// calendarDay drops any time-of-day so bound checks compare whole days.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// daysBetween returns the gap in whole days from a to b.
// Day numbers come from Unix seconds because Time.Sub saturates after about 292 years.
func daysBetween(a, b time.Time) int {
	return int(dayNumber(b) - dayNumber(a))
}

func dayNumber(t time.Time) int64 {
	return calendarDay(t).Unix() / secondsPerDay
}

// sortDate is the ordering key for a post: its date, or maxDate when undated.
func sortDate(p Post) time.Time {
	if t, ok := ParseDate(p.Date); ok {
		return t
	}
	return maxDate
}
