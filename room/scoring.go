package room

import "time"

const (
	MaxPoints      = 1000
	MinPoints      = 100
	DecayPerSecond = 30
)

// Points returns the award for a first correct answer given elapsed time
// since the round started: max(100, 1000 - 30*floor(seconds)).
func Points(elapsed time.Duration) int {
	secs := int(elapsed / time.Second)
	if secs < 0 {
		secs = 0
	}
	p := MaxPoints - DecayPerSecond*secs
	if p < MinPoints {
		return MinPoints
	}
	return p
}
