package schedule

// DefaultStep is the spacing between candidate start times.
const DefaultStep = 30

// GenerateSlots returns the ordered display times at which a booking of duration minutes fits
// inside w without overlapping any busy interval. An empty result means the day is full.
func GenerateSlots(w Window, duration int, busy []Interval, step int) []string {
	starts := CandidateStarts(w, duration, busy, step)
	slots := make([]string, 0, len(starts))
	for _, m := range starts {
		slots = append(slots, To12h(m))
	}
	return slots
}

// CandidateStarts is GenerateSlots in minutes.
func CandidateStarts(w Window, duration int, busy []Interval, step int) []int {
	if duration <= 0 {
		return nil
	}
	if step <= 0 {
		step = DefaultStep
	}

	var starts []int
	for t := w.Start; t+duration <= w.End; t += step {
		if _, clash := FirstOverlap(Interval{Start: t, Duration: duration}, busy); clash {
			continue
		}
		starts = append(starts, t)
	}
	return starts
}
