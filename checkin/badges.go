package checkin

import (
	"github.com/warp/checkin-engine/generic"
)

// DeriveBadges returns the labels of every badge rule s satisfies, in the
// order the rules are declared. Badges read the check-in record directly
// with no look-back fallback.
func DeriveBadges(s State, today generic.Day, rules Rules) []string {
	badges := []string{}
	for _, b := range rules.Badges {
		if badgeValue(b.Metric, s, today) >= b.Threshold {
			badges = append(badges, b.Label)
		}
	}
	return badges
}

func badgeValue(m Metric, s State, today generic.Day) int {
	switch m {
	case MetricTotalDays:
		return s.Checkin.TotalDays
	case MetricStreak:
		return EffectiveStreak(s.Checkin, today)
	case MetricPoints:
		return s.Points
	case MetricFavorites:
		return len(s.FavDates)
	default:
		return 0
	}
}
