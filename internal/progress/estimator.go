// Package progress estimates how long a generation request will take and
// simulates forward motion for the UI while the real request is in flight.
// The estimate is a pacing heuristic, not a correctness guarantee.
package progress

import "time"

// Bounds of the duration heuristic.
const (
	MinEstimate = 10 * time.Second
	MaxEstimate = 300 * time.Second
)

// EstimateDuration returns clamp(itemCount * dayCount / 1000, 10s, 300s).
func EstimateDuration(itemCount, dayCount int) time.Duration {
	secs := float64(itemCount) * float64(dayCount) / 1000
	d := time.Duration(secs * float64(time.Second))
	if d < MinEstimate {
		return MinEstimate
	}
	if d > MaxEstimate {
		return MaxEstimate
	}
	return d
}

// stages are the human-readable labels shown as simulated progress
// advances, one per 20% band. The last label repeats for any overflow.
var stages = [...]string{
	"Validating building data",
	"Preparing consumption profiles",
	"Generating time series",
	"Aggregating results",
	"Finalizing dataset",
}

// StageFor selects the stage label for a progress percentage.
func StageFor(progress float64) string {
	idx := int(progress / 20)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(stages) {
		idx = len(stages) - 1
	}
	return stages[idx]
}
