package checkin

import (
	"github.com/warp/checkin-engine/generic"
)

// RecordCheckin folds a shop check-in on day into rec and returns the new
// record. The first check-in of a day counts toward TotalDays and the
// streak; every check-in adds a log entry, newest first.
//
// Streak: continues if the previous check-in day was yesterday, restarts at
// 1 after a gap, and is unchanged for further check-ins on the same day.
func RecordCheckin(rec CheckinRecord, day generic.Day, note string) CheckinRecord {
	if rec.LastDate != day {
		if !rec.LastDate.IsZero() && rec.LastDate.AddDays(1) == day && rec.Streak > 0 {
			rec.Streak++
		} else {
			rec.Streak = 1
		}
		rec.TotalDays++
		rec.LastDate = day
	}

	log := make([]LogEntry, 0, len(rec.Log)+1)
	log = append(log, LogEntry{Date: day, Note: note})
	rec.Log = append(log, rec.Log...)
	return rec
}

// EffectiveStreak is rec.Streak as of today: a streak whose last check-in
// is older than yesterday is broken and reads as 0.
func EffectiveStreak(rec CheckinRecord, today generic.Day) int {
	if rec.LastDate.IsZero() {
		return 0
	}
	if generic.DaysBetween(rec.LastDate, today) > 1 {
		return 0
	}
	return rec.Streak
}

// DaysWithCheckin counts days among the n days ending today that have at
// least one shop check-in.
func DaysWithCheckin(sc ShopCheckins, today generic.Day, n int) int {
	count := 0
	for _, d := range generic.LastNDays(today, n) {
		if sc.CountOn(d) > 0 {
			count++
		}
	}
	return count
}

// MetricValue returns the current value of m for state on today.
//
// Streak and total days fall back to the look-back count of days with a
// shop check-in when the record holds 0, which covers state written before
// the check-in record existed.
func MetricValue(m Metric, s State, today generic.Day, rules Rules) int {
	lookback := rules.LookbackDays
	if lookback <= 0 {
		lookback = 7
	}
	switch m {
	case MetricStreak:
		if v := EffectiveStreak(s.Checkin, today); v > 0 {
			return v
		}
		return DaysWithCheckin(s.ShopCheckins, today, lookback)
	case MetricTotalDays:
		if s.Checkin.TotalDays > 0 {
			return s.Checkin.TotalDays
		}
		return DaysWithCheckin(s.ShopCheckins, today, lookback)
	case MetricFavorites:
		return len(s.FavDates)
	case MetricPoints:
		return s.Points
	default:
		return 0
	}
}
