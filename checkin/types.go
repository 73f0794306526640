/*
Package checkin implements the progression rules of the check-in program.

PURPOSE:
  Turns raw user actions (viewing a shop, favoriting a shop, checking in at
  a shop) into points, levels, daily task completion, one-time long-term
  rewards and achievement badges.

STATE:
  Everything lives in the shared key-value namespace under the keys below.
  A State value is a full in-memory copy of those slices. The engine never
  keeps a State between renders: each render reloads every slice, so a
  change written by another surface is always picked up (last writer wins).

EVALUATION PIPELINE:
  1. Load State (missing/corrupt slices fall back to defaults)
  2. Ensure today's daily record exists
  3. EvaluateDaily    - check-in / view / favorite tasks for today
  4. EvaluateLongTerm - cumulative and streak tasks, first-time grants
  5. CalcLevel        - level and progress from the points total
  6. DeriveBadges     - achievement labels

  Steps 3-6 are pure functions over State and Rules; the engine applies and
  persists their results.

SEE ALSO:
  - engine.go: The pipeline
  - repo.go: Loading and saving State slices
  - interaction/: The surface that mutates State from user actions
*/
package checkin

import (
	"github.com/warp/checkin-engine/generic"
)

// =============================================================================
// STORAGE KEYS
// =============================================================================

const (
	KeyPoints       = "km_points_v1"
	KeyCheckin      = "km_checkin_v1"
	KeyDaily        = "km_daily_v1"
	KeyFavDates     = "km_fav_dates_v1"
	KeyShopCheckins = "km_shop_checkins_v1"
	KeyLongTerm     = "km_longterm_v2"
	KeyFavorites    = "km_favs_v1"
)

// =============================================================================
// PERSISTED SLICES
// =============================================================================

// LogEntry is one line of check-in history.
type LogEntry struct {
	Date generic.Day `json:"date"`
	Note string      `json:"note"`
}

// CheckinRecord summarizes check-in history.
type CheckinRecord struct {
	TotalDays int         `json:"totalDays"`
	LastDate  generic.Day `json:"lastDate"`
	Streak    int         `json:"streak"`
	Log       []LogEntry  `json:"log"`
}

// DailyRecord holds one calendar day's task counters.
type DailyRecord struct {
	Viewed      []string `json:"viewed"`
	FavCount    int      `json:"favCount"`
	ViewedDone  bool     `json:"viewedDone"`
	FavDone     bool     `json:"favDone"`
	CheckinDone bool     `json:"checkinDone"`
}

// HasViewed reports whether shopID is in today's viewed set.
func (r DailyRecord) HasViewed(shopID string) bool {
	for _, v := range r.Viewed {
		if v == shopID {
			return true
		}
	}
	return false
}

// DailyState maps a day to its record.
type DailyState map[generic.Day]DailyRecord

// FavoriteDates maps a shop to the day it was first favorited.
type FavoriteDates map[string]generic.Day

// ShopCheckins maps a day to the set of shops checked into that day.
type ShopCheckins map[generic.Day]map[string]bool

// CountOn returns the number of distinct shops checked into on day.
func (s ShopCheckins) CountOn(day generic.Day) int {
	return len(s[day])
}

// Has reports whether shopID was checked into on day.
func (s ShopCheckins) Has(day generic.Day, shopID string) bool {
	return s[day][shopID]
}

// RewardMemory records which long-term rewards were already paid.
type RewardMemory map[string]bool

// State is the full in-memory copy of the persisted slices.
type State struct {
	Points       int
	Checkin      CheckinRecord
	Daily        DailyState
	FavDates     FavoriteDates
	ShopCheckins ShopCheckins
	LongTerm     RewardMemory
	Favorites    []string
}

// NewState returns the documented empty state.
func NewState() State {
	return State{
		Checkin:      defaultCheckin(),
		Daily:        DailyState{},
		FavDates:     FavoriteDates{},
		ShopCheckins: ShopCheckins{},
		LongTerm:     RewardMemory{},
		Favorites:    []string{},
	}
}

func defaultPoints() int                { return 0 }
func defaultCheckin() CheckinRecord     { return CheckinRecord{Log: []LogEntry{}} }
func defaultDaily() DailyState          { return DailyState{} }
func defaultFavDates() FavoriteDates    { return FavoriteDates{} }
func defaultShopCheckins() ShopCheckins { return ShopCheckins{} }
func defaultLongTerm() RewardMemory     { return RewardMemory{} }
func defaultFavorites() []string        { return []string{} }
func newDailyRecord() DailyRecord       { return DailyRecord{Viewed: []string{}} }

// Today returns today's daily record, creating it in s if absent.
func (s *State) Today(today generic.Day) DailyRecord {
	if s.Daily == nil {
		s.Daily = DailyState{}
	}
	rec, ok := s.Daily[today]
	if !ok {
		rec = newDailyRecord()
		s.Daily[today] = rec
	}
	return rec
}

// IsFavorite reports whether shopID is currently favorited.
func (s State) IsFavorite(shopID string) bool {
	for _, f := range s.Favorites {
		if f == shopID {
			return true
		}
	}
	return false
}
