package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const MinutesPerDay = 24 * 60

var ErrInvalidTime = errors.New("invalid time of day")

// To12h renders minutes since midnight as "H:MM AM/PM".
// Values outside [0, 1439] wrap around the day.
func To12h(minutes int) string {
	minutes %= MinutesPerDay
	if minutes < 0 {
		minutes += MinutesPerDay
	}

	h, m := minutes/60, minutes%60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, m, suffix)
}

// ToMinutes parses "2:30 PM" or "14:30" into minutes since midnight.
// A trailing AM/PM selects the 12-hour form; otherwise the value is read as 24-hour.
func ToMinutes(s string) (int, error) {
	raw := strings.TrimSpace(s)
	upper := strings.ToUpper(raw)

	twelve := false
	pm := false
	switch {
	case strings.HasSuffix(upper, "AM"):
		twelve = true
		upper = strings.TrimSpace(strings.TrimSuffix(upper, "AM"))
	case strings.HasSuffix(upper, "PM"):
		twelve, pm = true, true
		upper = strings.TrimSpace(strings.TrimSuffix(upper, "PM"))
	}

	hh, mm, ok := strings.Cut(upper, ":")
	if !ok || len(mm) != 2 || hh == "" || len(hh) > 2 || !allDigits(hh) || !allDigits(mm) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	if twelve {
		if h < 1 || h > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		h %= 12
		if pm {
			h += 12
		}
	} else if h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	return h*60 + m, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsDisplayTime reports whether s matches the stored appointment time format "h:mm AM/PM".
func IsDisplayTime(s string) bool {
	m, err := ToMinutes(s)
	if err != nil {
		return false
	}
	return To12h(m) == s
}
