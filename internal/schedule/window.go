package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMalformedAvailability = errors.New("malformed availability entry")

// Window is the bookable range of one day in minutes since midnight, end exclusive.
type Window struct {
	Start int
	End   int
}

func (w Window) Contains(i Interval) bool {
	return i.Start >= w.Start && i.End() <= w.End
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseAvailability reads an entry of the form "Monday 09:00-17:00".
func ParseAvailability(entry string) (time.Weekday, Window, error) {
	fields := strings.Fields(entry)
	if len(fields) < 2 {
		return 0, Window{}, fmt.Errorf("%w: %q", ErrMalformedAvailability, entry)
	}

	day, ok := weekdays[strings.ToLower(fields[0])]
	if !ok {
		return 0, Window{}, fmt.Errorf("%w: unknown weekday in %q", ErrMalformedAvailability, entry)
	}

	from, to, ok := strings.Cut(strings.Join(fields[1:], ""), "-")
	if !ok {
		return 0, Window{}, fmt.Errorf("%w: %q", ErrMalformedAvailability, entry)
	}
	start, err := ToMinutes(from)
	if err != nil {
		return 0, Window{}, fmt.Errorf("%w: %v", ErrMalformedAvailability, err)
	}
	end, err := ToMinutes(to)
	if err != nil {
		return 0, Window{}, fmt.Errorf("%w: %v", ErrMalformedAvailability, err)
	}
	if end <= start {
		return 0, Window{}, fmt.Errorf("%w: end must be after start in %q", ErrMalformedAvailability, entry)
	}

	return day, Window{Start: start, End: end}, nil
}

// ResolveWindow finds the window for the weekday of date.
// The first well-formed entry for that weekday wins; malformed entries are skipped.
func ResolveWindow(availability []string, date time.Time) (Window, bool) {
	want := date.Weekday()
	for _, entry := range availability {
		day, w, err := ParseAvailability(entry)
		if err != nil || day != want {
			continue
		}
		return w, true
	}
	return Window{}, false
}

// FormatAvailability is the inverse of ParseAvailability.
func FormatAvailability(day time.Weekday, w Window) string {
	return fmt.Sprintf("%s %02d:%02d-%02d:%02d", day, w.Start/60, w.Start%60, w.End/60, w.End%60)
}
