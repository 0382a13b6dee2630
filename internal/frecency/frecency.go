// Package frecency implements the frequency-with-decay scoring
// function used to rank tags (spec.md §4.2).
package frecency

import (
	"math"
	"time"
)

const (
	// halfLifeDays controls how quickly the score decays with disuse.
	halfLifeDays = 7.0
	// weight scales frequency into a human-legible score range.
	weight = 10.0
	msPerDay = 24 * 60 * 60 * 1000
)

// Score computes the frecency score for a tag used `frequency` times,
// last used at lastUsedAt, evaluated at now. It is never negative,
// non-decreasing in frequency (strictly increasing at zero decay;
// after rounding, heavily decayed scores of nearby frequencies can be
// equal), and non-increasing as the gap between lastUsedAt and now
// grows.
func Score(frequency int, lastUsedAt, now time.Time) float64 {
	if frequency < 0 {
		frequency = 0
	}
	daysSinceUse := float64(now.Sub(lastUsedAt).Milliseconds()) / msPerDay
	if daysSinceUse < 0 {
		daysSinceUse = 0
	}
	decay := 1.0 / (1.0 + daysSinceUse/halfLifeDays)
	score := math.Round(float64(frequency) * weight * decay)
	if score < 0 {
		return 0
	}
	return score
}
