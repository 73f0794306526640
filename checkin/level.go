package checkin

import (
	"github.com/shopspring/decimal"
)

// Level is the position of a points total on the level table.
type Level struct {
	Level    int     `json:"level"`
	Points   int     `json:"points"`
	Floor    int     `json:"floor"`    // threshold of the current level
	Next     int     `json:"next"`     // threshold of the next level (virtual at max)
	Progress float64 `json:"progress"` // in [0,1]
	ToNext   int     `json:"to_next"`
}

// CalcLevel derives the level band for points. Negative totals count as 0.
//
// Above the last threshold a virtual band of MaxLevelStep points keeps
// Progress and ToNext defined.
func CalcLevel(points int, rules Rules) Level {
	if points < 0 {
		points = 0
	}
	thresholds := rules.LevelThresholds
	if len(thresholds) == 0 {
		thresholds = []int{0}
	}

	idx := 0
	for i := 1; i < len(thresholds); i++ {
		if points >= thresholds[i] {
			idx = i
		}
	}

	floor := thresholds[idx]
	next := floor + maxStep(rules)
	if idx+1 < len(thresholds) {
		next = thresholds[idx+1]
	}

	return Level{
		Level:    idx + 1,
		Points:   points,
		Floor:    floor,
		Next:     next,
		Progress: progress(points, floor, next),
		ToNext:   max(0, next-points),
	}
}

func maxStep(rules Rules) int {
	if rules.MaxLevelStep > 0 {
		return rules.MaxLevelStep
	}
	return 1000
}

// progress is clamp((points-floor)/(next-floor), 0, 1).
func progress(points, floor, next int) float64 {
	span := next - floor
	if span <= 0 {
		return 1
	}
	r := decimal.NewFromInt(int64(points - floor)).Div(decimal.NewFromInt(int64(span)))
	r = decimal.Max(decimal.Zero, decimal.Min(decimal.NewFromInt(1), r))
	f, _ := r.Float64()
	return f
}
