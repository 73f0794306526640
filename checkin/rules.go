package checkin

import "fmt"

// Metric names the state value a task or badge is measured against.
type Metric string

const (
	MetricStreak    Metric = "streak"
	MetricTotalDays Metric = "total_days"
	MetricFavorites Metric = "favorites"
	MetricPoints    Metric = "points"
)

// LongTermTask is a cumulative or streak goal rewarded once.
type LongTermTask struct {
	Key    string `json:"key" yaml:"key"`
	Title  string `json:"title" yaml:"title"`
	Metric Metric `json:"metric" yaml:"metric"`
	Goal   int    `json:"goal" yaml:"goal"`
	Prize  int    `json:"prize" yaml:"prize"`
}

// Reward renders the prize as display text.
func (t LongTermTask) Reward() string { return fmt.Sprintf("+%d pts", t.Prize) }

// BadgeRule awards Label when Metric reaches Threshold.
type BadgeRule struct {
	Label     string `json:"label" yaml:"label"`
	Metric    Metric `json:"metric" yaml:"metric"`
	Threshold int    `json:"threshold" yaml:"threshold"`
}

// DailyRules are the goals of today's tasks.
type DailyRules struct {
	ViewGoal     int `json:"view_goal" yaml:"view_goal"`
	FavoriteGoal int `json:"favorite_goal" yaml:"favorite_goal"`
	ViewPoints   int `json:"view_points" yaml:"view_points"` // descriptive only
}

// Rules is the complete progression rule set.
type Rules struct {
	// LevelThresholds[i] is the point floor of level i+1. Ascending, starts at 0.
	LevelThresholds []int `json:"level_thresholds" yaml:"level_thresholds"`
	// MaxLevelStep sizes the virtual band above the last threshold.
	MaxLevelStep  int            `json:"max_level_step" yaml:"max_level_step"`
	CheckinPoints int            `json:"checkin_points" yaml:"checkin_points"`
	Daily         DailyRules     `json:"daily" yaml:"daily"`
	LongTerm      []LongTermTask `json:"long_term" yaml:"long_term"`
	Badges        []BadgeRule    `json:"badges" yaml:"badges"`
	LookbackDays  int            `json:"lookback_days" yaml:"lookback_days"`
	LogLimit      int            `json:"log_limit" yaml:"log_limit"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		LevelThresholds: []int{0, 100, 250, 500, 900, 1400, 2000, 2800, 3800, 5000},
		MaxLevelStep:    1000,
		CheckinPoints:   5,
		Daily: DailyRules{
			ViewGoal:     10,
			FavoriteGoal: 5,
			ViewPoints:   1,
		},
		LongTerm: []LongTermTask{
			{Key: "streak7", Title: "Check in 7 days in a row", Metric: MetricStreak, Goal: 7, Prize: 50},
			{Key: "days20", Title: "Check in on 20 days", Metric: MetricTotalDays, Goal: 20, Prize: 10},
			{Key: "days50", Title: "Check in on 50 days", Metric: MetricTotalDays, Goal: 50, Prize: 30},
			{Key: "fav10", Title: "Favorite 10 shops", Metric: MetricFavorites, Goal: 10, Prize: 5},
			{Key: "fav50", Title: "Favorite 50 shops", Metric: MetricFavorites, Goal: 50, Prize: 30},
		},
		Badges: []BadgeRule{
			{Label: "🥉 5 days of growth", Metric: MetricTotalDays, Threshold: 5},
			{Label: "🥈 20 days strong", Metric: MetricTotalDays, Threshold: 20},
			{Label: "🥇 30 days strong", Metric: MetricTotalDays, Threshold: 30},
			{Label: "🏆 7-day streak", Metric: MetricStreak, Threshold: 7},
			{Label: "💰 200+ points", Metric: MetricPoints, Threshold: 200},
			{Label: "💎 500+ points", Metric: MetricPoints, Threshold: 500},
		},
		LookbackDays: 7,
		LogLimit:     15,
	}
}
