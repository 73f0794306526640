package checkin

import "fmt"

// Daily task keys.
const (
	DailyCheckin  = "d_checkin"
	DailyView     = "d_view10"
	DailyFavorite = "d_fav5"
)

// DailyTask is the presentation of one of today's tasks.
type DailyTask struct {
	Key     string  `json:"key"`
	Title   string  `json:"title"`
	Reward  string  `json:"reward"`
	Current int     `json:"current"`
	Goal    int     `json:"goal"`
	Ratio   float64 `json:"ratio"`
	Done    bool    `json:"done"`
}

// DailyResult is the outcome of evaluating today's tasks.
type DailyResult struct {
	Record    DailyRecord `json:"-"`
	Tasks     []DailyTask `json:"tasks"`
	DoneCount int         `json:"done_count"`
}

// EvaluateDaily evaluates today's record.
//
// CheckinDone is recomputed from checkinsToday on every pass. ViewedDone and
// FavDone are sticky: once true they stay true.
func EvaluateDaily(rec DailyRecord, checkinsToday int, rules Rules) DailyResult {
	rec.CheckinDone = checkinsToday > 0
	if len(rec.Viewed) >= rules.Daily.ViewGoal {
		rec.ViewedDone = true
	}
	if rec.FavCount >= rules.Daily.FavoriteGoal {
		rec.FavDone = true
	}

	tasks := []DailyTask{
		{
			Key:     DailyCheckin,
			Title:   "Check in at any shop today",
			Reward:  fmt.Sprintf("+%d pts (on the map page)", rules.CheckinPoints),
			Current: min(checkinsToday, 1),
			Goal:    1,
			Done:    rec.CheckinDone,
		},
		{
			Key:     DailyView,
			Title:   fmt.Sprintf("View %d different shops", rules.Daily.ViewGoal),
			Reward:  fmt.Sprintf("%d/%d · +%d pts", min(len(rec.Viewed), rules.Daily.ViewGoal), rules.Daily.ViewGoal, rules.Daily.ViewPoints),
			Current: len(rec.Viewed),
			Goal:    rules.Daily.ViewGoal,
			Done:    rec.ViewedDone,
		},
		{
			Key:     DailyFavorite,
			Title:   fmt.Sprintf("Favorite %d shops", rules.Daily.FavoriteGoal),
			Reward:  fmt.Sprintf("%d/%d", min(rec.FavCount, rules.Daily.FavoriteGoal), rules.Daily.FavoriteGoal),
			Current: rec.FavCount,
			Goal:    rules.Daily.FavoriteGoal,
			Done:    rec.FavDone,
		},
	}

	done := 0
	for i := range tasks {
		tasks[i].Ratio = ratio(tasks[i].Current, tasks[i].Goal)
		if tasks[i].Done {
			tasks[i].Ratio = 1
			done++
		}
	}

	return DailyResult{Record: rec, Tasks: tasks, DoneCount: done}
}

func ratio(cur, goal int) float64 {
	if goal <= 0 {
		return 1
	}
	if cur >= goal {
		return 1
	}
	if cur <= 0 {
		return 0
	}
	return float64(cur) / float64(goal)
}
