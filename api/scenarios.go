/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Replaces the progression state with a prepared situation so the reward
  paths can be shown without waiting days: a streak one day short of a
  reward, a user one check-in away from 20 days, and so on.

  Scenarios are built relative to today, so "yesterday" in a scenario is
  always the real yesterday and the next check-in continues the streak.

LEDGER:
  Loading a scenario first resets the store when it supports Reset, which
  also empties a ledger kept in the same store. The scenario's points are
  then recorded as one scenario entry, so the history total matches the
  points total and rewards earned afterwards are recorded again.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/checkin-engine/checkin"
	"github.com/warp/checkin-engine/events"
	"github.com/warp/checkin-engine/generic"
)

// Scenario is a named state builder.
type Scenario struct {
	ID          string
	Name        string
	Description string
	Build       func(today generic.Day, shops []string) checkin.State
}

// Scenarios lists every demo scenario.
func Scenarios() []Scenario {
	return []Scenario{
		{
			ID:          "fresh",
			Name:        "Fresh start",
			Description: "No points, no history",
			Build: func(generic.Day, []string) checkin.State {
				return checkin.NewState()
			},
		},
		{
			ID:          "streak6",
			Name:        "Six-day streak",
			Description: "Checked in on each of the last six days; today's check-in completes the 7-day streak",
			Build: func(today generic.Day, shops []string) checkin.State {
				return historyState(today, shops, 6, 6)
			},
		},
		{
			ID:          "days19",
			Name:        "Nineteen days",
			Description: "Nineteen check-in days with a broken streak; the next check-in reaches 20 days",
			Build: func(today generic.Day, shops []string) checkin.State {
				return historyState(today, shops, 19, 2)
			},
		},
		{
			ID:          "favorites9",
			Name:        "Nine favorites",
			Description: "Nine shops favorited; one more earns the favorites reward",
			Build: func(today generic.Day, shops []string) checkin.State {
				s := checkin.NewState()
				for i, id := range shops {
					if i == 9 {
						break
					}
					s.Favorites = append(s.Favorites, id)
					s.FavDates[id] = today.AddDays(-i)
				}
				return s
			},
		},
	}
}

// historyState builds a state with totalDays check-in days. The last
// streak of them are consecutive and end yesterday.
func historyState(today generic.Day, shops []string, totalDays, streak int) checkin.State {
	s := checkin.NewState()
	if len(shops) == 0 {
		shops = []string{"demo"}
	}

	// streak days end yesterday; earlier days are spaced two apart so they
	// do not extend the streak
	var days []generic.Day
	for i := streak; i >= 1; i-- {
		days = append(days, today.AddDays(-i))
	}
	for i := 0; len(days) < totalDays; i++ {
		days = append([]generic.Day{today.AddDays(-streak - 2 - 2*i)}, days...)
	}

	for i, d := range days {
		shop := shops[i%len(shops)]
		if s.ShopCheckins[d] == nil {
			s.ShopCheckins[d] = map[string]bool{}
		}
		s.ShopCheckins[d][shop] = true
		s.Checkin = checkin.RecordCheckin(s.Checkin, d, fmt.Sprintf("Checked in at %s", shop))
		s.Points += checkin.DefaultRules().CheckinPoints
	}
	return s
}

// ListScenarios handles GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	var out []ScenarioDTO
	for _, sc := range Scenarios() {
		out = append(out, ScenarioDTO{ID: sc.ID, Name: sc.Name, Description: sc.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

// LoadScenario handles POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var sc *Scenario
	for _, candidate := range Scenarios() {
		if candidate.ID == req.ScenarioID {
			sc = &candidate
			break
		}
	}
	if sc == nil {
		writeError(w, http.StatusNotFound, "Scenario not found", fmt.Errorf("unknown scenario %q", req.ScenarioID))
		return
	}

	var shops []string
	for _, shop := range h.Catalog.All() {
		shops = append(shops, shop.ID)
	}
	ctx := r.Context()
	today := generic.Today(h.Clock)
	state := sc.Build(today, shops)

	reset := true
	if err := h.Repo.Reset(ctx); err != nil {
		if !generic.IsUnsupported(err) {
			h.internalError(w, "Failed to reset store", err)
			return
		}
		reset = false
	}
	if err := h.Repo.Save(ctx, state); err != nil {
		h.internalError(w, "Failed to load scenario", err)
		return
	}
	if err := h.seedLedger(ctx, sc, today, state.Points); err != nil {
		h.internalError(w, "Failed to record scenario points", err)
		return
	}

	h.Logger.Info("scenario loaded", zap.String("scenario", sc.ID), zap.Bool("reset", reset))
	if h.Bus != nil {
		h.Bus.Publish(events.Update{Kind: events.KindExternal})
	}

	view, err := h.Engine.Render(r.Context())
	if err != nil {
		h.internalError(w, "Failed to render progress", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// seedLedger records the points a scenario starts with.
func (h *Handler) seedLedger(ctx context.Context, sc *Scenario, today generic.Day, points int) error {
	if h.Ledger == nil || points == 0 {
		return nil
	}
	err := h.Ledger.Append(ctx, generic.Transaction{
		EffectiveAt:    today,
		Delta:          generic.Points(points),
		Type:           generic.TxScenario,
		ReferenceID:    sc.ID,
		Reason:         "Loaded scenario: " + sc.Name,
		IdempotencyKey: fmt.Sprintf("scenario:%s:%s", sc.ID, today),
	})
	if generic.IsDuplicate(err) {
		return nil
	}
	return err
}
