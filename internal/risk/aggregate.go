package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Level is the discrete risk tier of a footage run.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Tier boundaries: each is the exclusive upper bound of the tier below it.
const (
	mediumThreshold   = 20
	highThreshold     = 50
	criticalThreshold = 75
)

// Levels returns the tiers in ascending order.
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh, LevelCritical}
}

// ParseLevel parses a stored tier name.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels() {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// LevelForScore partitions the 0-100 score range into tiers:
// [0,20) LOW, [20,50) MEDIUM, [50,75) HIGH, [75,100] CRITICAL.
func LevelForScore(score int) Level {
	switch {
	case score >= criticalThreshold:
		return LevelCritical
	case score >= highThreshold:
		return LevelHigh
	case score >= mediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// AggregateVideoRisk reduces the ordered frame scores of a run to a single
// score, the rounded arithmetic mean, and its tier. An empty run is LOW/0.
func AggregateVideoRisk(scores []float64) (Level, int) {
	if len(scores) == 0 {
		return LevelLow, 0
	}
	score := int(math.Round(stat.Mean(scores, nil)))
	return LevelForScore(score), score
}
