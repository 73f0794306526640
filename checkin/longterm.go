package checkin

import (
	"github.com/warp/checkin-engine/generic"
)

// LongTermStatus is the presentation of one long-term task.
type LongTermStatus struct {
	Key     string  `json:"key"`
	Title   string  `json:"title"`
	Reward  string  `json:"reward"`
	Current int     `json:"current"` // clamped to Goal
	Goal    int     `json:"goal"`
	Ratio   float64 `json:"ratio"`
	Done    bool    `json:"done"`
}

// Grant is a long-term reward observed done for the first time.
type Grant struct {
	Task LongTermTask
}

// IdempotencyKey is the ledger key of the grant.
func (g Grant) IdempotencyKey() string { return "longterm:" + g.Task.Key }

// LongTermResult is the outcome of evaluating long-term tasks.
type LongTermResult struct {
	Tasks  []LongTermStatus
	Grants []Grant
}

// EvaluateLongTerm grades every long-term task against s. A task that is
// done and absent from s.LongTerm produces a Grant. The function does not
// modify s; the caller applies grants with ApplyGrants.
func EvaluateLongTerm(s State, today generic.Day, rules Rules) LongTermResult {
	var res LongTermResult
	for _, t := range rules.LongTerm {
		cur := MetricValue(t.Metric, s, today, rules)
		done := cur >= t.Goal
		res.Tasks = append(res.Tasks, LongTermStatus{
			Key:     t.Key,
			Title:   t.Title,
			Reward:  t.Reward(),
			Current: min(cur, t.Goal),
			Goal:    t.Goal,
			Ratio:   ratio(cur, t.Goal),
			Done:    done,
		})
		if done && !s.LongTerm[t.Key] {
			res.Grants = append(res.Grants, Grant{Task: t})
		}
	}
	return res
}

// ApplyGrants marks each grant in the reward memory and adds its prize to
// the points total. Grants already present in memory are skipped, so
// applying the same grants twice pays once. It returns the grants that
// were applied.
func ApplyGrants(s *State, grants []Grant) []Grant {
	if s.LongTerm == nil {
		s.LongTerm = RewardMemory{}
	}
	var applied []Grant
	for _, g := range grants {
		if s.LongTerm[g.Task.Key] {
			continue
		}
		s.LongTerm[g.Task.Key] = true
		s.Points += g.Task.Prize
		applied = append(applied, g)
	}
	return applied
}
