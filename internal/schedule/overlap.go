package schedule

// Interval is a half-open range [Start, Start+Duration) in minutes.
// Start may exceed MinutesPerDay when an interval belongs to the following date, and is
// negative for one carried over from the previous date.
type Interval struct {
	Start    int
	Duration int
}

func (i Interval) End() int {
	return i.Start + i.Duration
}

func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i.Start, i.Duration, o.Start, o.Duration)
}

// Overlaps reports whether [aStart, aStart+aDur) and [bStart, bStart+bDur) intersect.
// Touching intervals do not overlap.
func Overlaps(aStart, aDur, bStart, bDur int) bool {
	return aStart < bStart+bDur && aStart+aDur > bStart
}

// FirstOverlap returns the first busy interval that overlaps candidate.
func FirstOverlap(candidate Interval, busy []Interval) (Interval, bool) {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return b, true
		}
	}
	return Interval{}, false
}
