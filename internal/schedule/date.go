package schedule

import "time"

const DateLayout = "2006-01-02"

// DateOf returns the civil date of t (in t's location) as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// MinuteOfDay returns minutes since midnight of t in its own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// DateBefore compares civil dates, ignoring time of day.
func DateBefore(a, b time.Time) bool {
	return DateOf(a).Before(DateOf(b))
}
