package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name       string
		aStart     int
		aDur       int
		bStart     int
		bDur       int
		wantResult bool
	}{
		{name: "touching does not overlap", aStart: 600, aDur: 30, bStart: 630, bDur: 30, wantResult: false},
		{name: "partial overlap", aStart: 600, aDur: 30, bStart: 615, bDur: 30, wantResult: true},
		{name: "identical", aStart: 600, aDur: 30, bStart: 600, bDur: 30, wantResult: true},
		{name: "contained", aStart: 540, aDur: 240, bStart: 600, bDur: 15, wantResult: true},
		{name: "disjoint", aStart: 540, aDur: 30, bStart: 700, bDur: 30, wantResult: false},
		{name: "b ends where a starts", aStart: 630, aDur: 30, bStart: 600, bDur: 30, wantResult: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantResult, Overlaps(tt.aStart, tt.aDur, tt.bStart, tt.bDur))
		})
	}
}

func TestOverlapsSymmetric(t *testing.T) {
	durations := []int{1, 15, 30, 45, 120}
	for aStart := 540; aStart <= 720; aStart += 5 {
		for bStart := 540; bStart <= 720; bStart += 5 {
			for _, aDur := range durations {
				for _, bDur := range durations {
					ab := Overlaps(aStart, aDur, bStart, bDur)
					ba := Overlaps(bStart, bDur, aStart, aDur)
					if ab != ba {
						t.Fatalf("asymmetric: a=[%d,+%d) b=[%d,+%d) ab=%v ba=%v", aStart, aDur, bStart, bDur, ab, ba)
					}
				}
			}
		}
	}
}

func TestFirstOverlap(t *testing.T) {
	busy := []Interval{{Start: 540, Duration: 30}, {Start: 600, Duration: 60}}

	got, ok := FirstOverlap(Interval{Start: 620, Duration: 30}, busy)
	assert.True(t, ok)
	assert.Equal(t, Interval{Start: 600, Duration: 60}, got)

	_, ok = FirstOverlap(Interval{Start: 570, Duration: 30}, busy)
	assert.False(t, ok)
}
