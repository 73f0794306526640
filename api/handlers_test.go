/*
handlers_test.go - Tests for the HTTP API

Tests for:
- Progress rendering and reward notices
- Shop actions (view, favorite, check-in) and their status codes
- Search and nearby ranking with and without a location
- Points history against ledger and KV-only stores
- Scenario loading
- Server-sent events
- Day rollover scheduling
*/
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/checkin-engine/catalog"
	"github.com/warp/checkin-engine/checkin"
	"github.com/warp/checkin-engine/events"
	"github.com/warp/checkin-engine/generic"
	"github.com/warp/checkin-engine/generic/store"
	"github.com/warp/checkin-engine/interaction"
	"github.com/warp/checkin-engine/store/sqlite"
)

// kvOnly hides the ledger capability of the wrapped store.
type kvOnly struct{ generic.KV }

type testServer struct {
	handler *Handler
	router  http.Handler
	clock   *generic.FakeClock
	bus     *events.Bus
}

func newTestServer(t *testing.T, kv generic.KV) *testServer {
	t.Helper()
	cat, err := catalog.New([]catalog.Shop{
		{ID: "wanaka", Name: "Takoyaki Wanaka", Coords: catalog.Coord{Lat: 34.6662, Lng: 135.5013}, Tags: []string{"takoyaki"}},
		{ID: "chibo", Name: "Chibo Okonomiyaki", Coords: catalog.Coord{Lat: 34.6687, Lng: 135.5023}, Tags: []string{"okonomiyaki"}},
		{ID: "kyoto", Name: "Kyoto Matcha House", Coords: catalog.Coord{Lat: 35.0116, Lng: 135.7681}, Tags: []string{"sweets"}},
	})
	require.NoError(t, err)

	clock := generic.NewFakeClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	bus := events.NewBus(nil)
	t.Cleanup(bus.Close)

	// nil when kv has no ledger
	ledger, _ := generic.LedgerFor(kv)

	rules := checkin.DefaultRules()
	repo := checkin.NewRepository(kv, nil)
	engine := checkin.NewEngine(repo, rules, checkin.WithClock(clock), checkin.WithLedger(ledger))
	layer := interaction.New(repo, cat, rules,
		interaction.WithClock(clock),
		interaction.WithLedger(ledger),
		interaction.WithPublisher(bus),
	)

	h := NewHandler(repo, engine, layer, cat, bus, ledger)
	h.Clock = clock
	return &testServer{handler: h, router: NewRouter(h, nil), clock: clock, bus: bus}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) progress(t *testing.T) checkin.View {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[checkin.View](t, rec)
}

// =============================================================================
// PROGRESS
// =============================================================================

func TestGetProgress_Empty(t *testing.T) {
	// GIVEN: A fresh store
	s := newTestServer(t, store.NewMemory())

	// WHEN
	view := s.progress(t)

	// THEN: Level 1, nothing done
	assert.Equal(t, generic.Day("2025-03-10"), view.Today)
	assert.Equal(t, 1, view.Level.Level)
	assert.Equal(t, 0, view.Level.Points)
	assert.Equal(t, 100, view.Level.ToNext)
	assert.Len(t, view.Daily.Tasks, 3)
	assert.Zero(t, view.Daily.DoneCount)
	assert.Len(t, view.LongTerm, 5)
	assert.Empty(t, view.Badges)
	assert.Empty(t, view.Notices)
}

// =============================================================================
// SHOP ACTIONS
// =============================================================================

func TestCheckIn_OncePerShopPerDay(t *testing.T) {
	s := newTestServer(t, store.NewMemory())

	// WHEN: Checking in twice at the same shop
	first := decode[ActionResponse](t, s.do(t, http.MethodPost, "/api/shops/wanaka/checkin", ""))
	second := decode[ActionResponse](t, s.do(t, http.MethodPost, "/api/shops/wanaka/checkin", ""))

	// THEN: Only the first counts
	require.NotNil(t, first.CheckedIn)
	assert.True(t, *first.CheckedIn)
	require.NotNil(t, second.CheckedIn)
	assert.False(t, *second.CheckedIn)
	assert.Equal(t, "Already checked in at this shop today", second.Message)

	view := s.progress(t)
	assert.Equal(t, 5, view.Level.Points)
	assert.True(t, view.Daily.Tasks[0].Done)
	require.NotEmpty(t, view.Log)
	assert.Equal(t, "Checked in at Takoyaki Wanaka", view.Log[0].Note)
}

func TestCheckIn_UnknownShop(t *testing.T) {
	s := newTestServer(t, store.NewMemory())

	for _, action := range []string{"view", "favorite", "checkin"} {
		rec := s.do(t, http.MethodPost, "/api/shops/nowhere/"+action, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, action)
		assert.Equal(t, "Shop not found", decode[ErrorResponse](t, rec).Error)
	}
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/shops/nowhere", "").Code)
}

func TestToggleFavorite(t *testing.T) {
	s := newTestServer(t, store.NewMemory())

	// WHEN: Favoriting
	on := decode[ActionResponse](t, s.do(t, http.MethodPost, "/api/shops/chibo/favorite", ""))
	require.NotNil(t, on.Favorited)
	assert.True(t, *on.Favorited)

	// THEN: Listed, and the shop reports it
	favs := decode[FavoritesResponse](t, s.do(t, http.MethodGet, "/api/favorites", ""))
	require.Len(t, favs.Shops, 1)
	assert.Equal(t, "chibo", favs.Shops[0].ID)

	shop := decode[ShopDTO](t, s.do(t, http.MethodGet, "/api/shops/chibo", ""))
	assert.True(t, shop.Favorite)
	assert.False(t, shop.CheckedInToday)

	// WHEN: Toggling again
	off := decode[ActionResponse](t, s.do(t, http.MethodPost, "/api/shops/chibo/favorite", ""))
	require.NotNil(t, off.Favorited)
	assert.False(t, *off.Favorited)

	favs = decode[FavoritesResponse](t, s.do(t, http.MethodGet, "/api/favorites", ""))
	assert.Empty(t, favs.Shops)
}

func TestViewShop_CountsTowardDailyTask(t *testing.T) {
	s := newTestServer(t, store.NewMemory())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/shops/wanaka/view", "").Code)
	}
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/shops/chibo/view", "").Code)

	view := s.progress(t)
	assert.Equal(t, 2, view.Daily.Tasks[1].Current)
}

// =============================================================================
// SEARCH / NEARBY
// =============================================================================

func TestSearchShops(t *testing.T) {
	s := newTestServer(t, store.NewMemory())

	res := decode[ShopListResponse](t, s.do(t, http.MethodGet, "/api/shops?q=OKONOMI", ""))
	require.Len(t, res.Shops, 1)
	assert.Equal(t, "chibo", res.Shops[0].ID)

	res = decode[ShopListResponse](t, s.do(t, http.MethodGet, "/api/shops?q=ramen", ""))
	assert.NotNil(t, res.Shops)
	assert.Empty(t, res.Shops)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/shops?limit=-1", "").Code)
}

func TestNearbyShops_WithoutLocation(t *testing.T) {
	// GIVEN: No locator and no coordinates
	s := newTestServer(t, store.NewMemory())

	// WHEN
	res := decode[NearbyResponse](t, s.do(t, http.MethodGet, "/api/shops/nearby?limit=2", ""))

	// THEN: Catalog order, no distances, a notice
	assert.NotEmpty(t, res.Notice)
	assert.Nil(t, res.From)
	require.Len(t, res.Shops, 2)
	assert.Equal(t, "wanaka", res.Shops[0].ID)
	assert.Nil(t, res.Shops[0].DistanceKm)
}

func TestNearbyShops_RankedByDistance(t *testing.T) {
	s := newTestServer(t, store.NewMemory())
	s.handler.Locator = catalog.StaticLocator{At: catalog.Coord{Lat: 35.0, Lng: 135.76}}

	// WHEN: Located near Kyoto
	res := decode[NearbyResponse](t, s.do(t, http.MethodGet, "/api/shops/nearby", ""))

	// THEN: Kyoto shop first
	assert.Empty(t, res.Notice)
	require.Len(t, res.Shops, 3)
	assert.Equal(t, "kyoto", res.Shops[0].ID)
	require.NotNil(t, res.Shops[0].DistanceKm)
	assert.Less(t, *res.Shops[0].DistanceKm, 5.0)

	// WHEN: Explicit coordinates override the locator
	res = decode[NearbyResponse](t, s.do(t, http.MethodGet, "/api/shops/nearby?lat=34.667&lng=135.502", ""))
	assert.NotEqual(t, "kyoto", res.Shops[0].ID)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/shops/nearby?lat=x&lng=1", "").Code)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestGetHistory(t *testing.T) {
	s := newTestServer(t, store.NewMemory())
	s.do(t, http.MethodPost, "/api/shops/wanaka/checkin", "")
	s.clock.AdvanceDays(1)
	s.do(t, http.MethodPost, "/api/shops/wanaka/checkin", "")

	// WHEN
	res := decode[HistoryResponse](t, s.do(t, http.MethodGet, "/api/history", ""))

	// THEN: Newest first with a total
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, "2025-03-11", res.Transactions[0].EffectiveAt)
	assert.Equal(t, "checkin:2025-03-11:wanaka", res.Transactions[0].IdempotencyKey)
	assert.Equal(t, 10, res.Total)

	// WHEN: Filtering by range
	res = decode[HistoryResponse](t, s.do(t, http.MethodGet, "/api/history?to=2025-03-10", ""))
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "2025-03-10", res.Transactions[0].EffectiveAt)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/history?from=yesterday", "").Code)
}

func TestGetHistory_KVOnlyStore(t *testing.T) {
	// GIVEN: A store without ledger support
	s := newTestServer(t, kvOnly{store.NewMemory()})

	// WHEN: Check-in still works
	ok := decode[ActionResponse](t, s.do(t, http.MethodPost, "/api/shops/wanaka/checkin", ""))
	require.NotNil(t, ok.CheckedIn)
	assert.True(t, *ok.CheckedIn)
	assert.Equal(t, 5, s.progress(t).Level.Points)

	// THEN: History is not implemented
	assert.Equal(t, http.StatusNotImplemented, s.do(t, http.MethodGet, "/api/history", "").Code)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestListScenarios(t *testing.T) {
	s := newTestServer(t, store.NewMemory())

	list := decode[[]ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios", ""))
	var ids []string
	for _, sc := range list {
		ids = append(ids, sc.ID)
	}
	assert.Equal(t, []string{"fresh", "streak6", "days19", "favorites9"}, ids)
}

func TestLoadScenario_StreakCompletesWithTodaysCheckin(t *testing.T) {
	// GIVEN: The six-day streak scenario
	s := newTestServer(t, store.NewMemory())
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"streak6"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[checkin.View](t, rec)
	assert.Equal(t, 30, loaded.Level.Points)
	assert.Empty(t, loaded.Notices)

	// WHEN: Checking in today
	s.do(t, http.MethodPost, "/api/shops/chibo/checkin", "")
	view := s.progress(t)

	// THEN: The streak reward is paid once
	require.Len(t, view.Notices, 1)
	assert.Equal(t, "🎉 Completed: Check in 7 days in a row, reward +50 pts", view.Notices[0].Text)
	assert.Equal(t, 30+5+50, view.Level.Points)
	assert.Contains(t, view.Badges, "🏆 7-day streak")

	assert.Empty(t, s.progress(t).Notices)
}

func TestLoadScenario_ReloadKeepsHistoryInStep(t *testing.T) {
	sq, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	for name, kv := range map[string]generic.KV{"memory": store.NewMemory(), "sqlite": sq} {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, kv)

			for round := 1; round <= 2; round++ {
				// WHEN: Loading the six-day streak and completing it today
				rec := s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"streak6"}`)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				s.do(t, http.MethodPost, "/api/shops/chibo/checkin", "")
				view := s.progress(t)

				// THEN: The reward is paid and recorded every round, and the
				// history adds up to the points total
				hist := decode[HistoryResponse](t, s.do(t, http.MethodGet, "/api/history", ""))
				assert.Equal(t, 85, view.Level.Points, "round %d", round)
				assert.Equal(t, view.Level.Points, hist.Total, "round %d", round)

				var types []string
				for _, tx := range hist.Transactions {
					types = append(types, tx.Type)
				}
				assert.ElementsMatch(t, []string{"scenario", "checkin", "long_term"}, types, "round %d", round)
			}
		})
	}
}

func TestLoadScenario_StoreWithoutReset(t *testing.T) {
	// GIVEN: A store that can neither reset nor keep a ledger
	s := newTestServer(t, kvOnly{store.NewMemory()})
	s.do(t, http.MethodPost, "/api/shops/wanaka/checkin", "")

	// WHEN
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"streak6"}`)

	// THEN: The scenario state replaces the old state
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 30, decode[checkin.View](t, rec).Level.Points)
}

func TestLoadScenario_Errors(t *testing.T) {
	s := newTestServer(t, store.NewMemory())

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/scenarios/load", `{`).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"nope"}`).Code)
}

func TestScenarios_Build(t *testing.T) {
	today := generic.Day("2025-03-10")
	shops := []string{"a", "b", "c"}

	for _, sc := range Scenarios() {
		state := sc.Build(today, shops)
		switch sc.ID {
		case "fresh":
			assert.Zero(t, state.Points)
		case "streak6":
			assert.Equal(t, 6, state.Checkin.TotalDays)
			assert.Equal(t, 6, state.Checkin.Streak)
			assert.Equal(t, today.AddDays(-1), state.Checkin.LastDate)
		case "days19":
			assert.Equal(t, 19, state.Checkin.TotalDays)
			assert.Equal(t, 2, state.Checkin.Streak)
			assert.Len(t, state.ShopCheckins, 19)
		case "favorites9":
			// only three shops to favorite
			assert.Len(t, state.Favorites, 3)
		}
	}
}

// =============================================================================
// EVENTS
// =============================================================================

func readEvent(t *testing.T, r *bufio.Reader) checkin.View {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			assert.Equal(t, "progress", name)
			var v checkin.View
			require.NoError(t, json.Unmarshal([]byte(data), &v))
			return v
		}
	}
}

func TestStreamEvents(t *testing.T) {
	s := newTestServer(t, store.NewMemory())
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	body := bufio.NewReader(resp.Body)

	// THEN: The current view on connect
	first := readEvent(t, body)
	assert.Zero(t, first.Level.Points)

	// WHEN: A check-in happens on another request
	s.do(t, http.MethodPost, "/api/shops/wanaka/checkin", "")

	// THEN: A re-rendered view follows
	next := readEvent(t, body)
	assert.Equal(t, 5, next.Level.Points)
}

// =============================================================================
// ROLLOVER
// =============================================================================

func TestRolloverScheduler_Check(t *testing.T) {
	clock := generic.NewFakeClock(time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC))
	bus := events.NewBus(nil)
	defer bus.Close()
	updates, unsub := bus.Subscribe(4)
	defer unsub()

	rs := NewRolloverScheduler(clock, bus, nil)

	// first check only records the day
	assert.False(t, rs.Check())
	assert.False(t, rs.Check())

	// WHEN: Midnight passes
	clock.Advance(2 * time.Minute)

	// THEN: One rollover
	assert.True(t, rs.Check())
	assert.False(t, rs.Check())

	select {
	case u := <-updates:
		assert.Equal(t, events.KindDayRollover, u.Kind)
	default:
		t.Fatal("no rollover published")
	}
}

func TestRolloverScheduler_Run(t *testing.T) {
	clock := generic.NewFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	bus := events.NewBus(nil)
	defer bus.Close()
	updates, unsub := bus.Subscribe(4)
	defer unsub()

	rs := NewRolloverScheduler(clock, bus, nil)
	rs.CheckInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rs.Run(ctx) }()

	// Start records the day before the clock moves
	require.Eventually(t, func() bool {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		return rs.running
	}, time.Second, time.Millisecond)
	clock.AdvanceDays(1)

	select {
	case u := <-updates:
		assert.Equal(t, events.KindDayRollover, u.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no rollover published")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}

	// stopping twice is fine
	rs.Stop()
}
