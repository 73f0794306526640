package interaction_test

import (
	"context"
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
)

var day = generic.Day("2025-03-10")

type fixture struct {
	mem   *store.Memory
	repo  *checkin.Repository
	clock *generic.FakeClock
	bus   *events.Bus
	layer *interaction.Layer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	shops, err := catalog.New([]catalog.Shop{
		{ID: "wanaka", Name: "Takoyaki Wanaka"},
		{ID: "chibo", Name: "Chibo Okonomiyaki"},
	})
	require.NoError(t, err)

	f := &fixture{
		mem:   store.NewMemory(),
		clock: generic.NewFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)),
		bus:   events.NewBus(nil),
	}
	t.Cleanup(f.bus.Close)
	f.repo = checkin.NewRepository(f.mem, nil)
	f.layer = interaction.New(f.repo, shops, checkin.DefaultRules(),
		interaction.WithClock(f.clock),
		interaction.WithLedger(generic.NewLedger(f.mem)),
		interaction.WithPublisher(f.bus),
	)
	return f
}

func (f *fixture) state(t *testing.T) checkin.State {
	t.Helper()
	s, err := f.repo.Load(context.Background())
	require.NoError(t, err)
	return s
}

func TestViewShop_NoDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.layer.ViewShop(ctx, "wanaka"))
	require.NoError(t, f.layer.ViewShop(ctx, "wanaka"))
	require.NoError(t, f.layer.ViewShop(ctx, "chibo"))

	assert.Equal(t, []string{"wanaka", "chibo"}, f.state(t).Daily[day].Viewed)
}

func TestToggleFavorite_TwiceKeepsOneDate(t *testing.T) {
	// GIVEN
	ctx := context.Background()
	f := newFixture(t)

	// WHEN: Favorite, unfavorite, favorite again the next day
	on, err := f.layer.ToggleFavorite(ctx, "wanaka")
	require.NoError(t, err)
	assert.True(t, on)

	on, err = f.layer.ToggleFavorite(ctx, "wanaka")
	require.NoError(t, err)
	assert.False(t, on)

	f.clock.AdvanceDays(1)
	on, err = f.layer.ToggleFavorite(ctx, "wanaka")
	require.NoError(t, err)
	assert.True(t, on)

	// THEN: One favorite date, the first one
	s := f.state(t)
	assert.Equal(t, checkin.FavoriteDates{"wanaka": day}, s.FavDates)
	assert.Equal(t, []string{"wanaka"}, s.Favorites)
	assert.Equal(t, 1, s.Daily[day].FavCount)
	assert.Equal(t, 1, s.Daily[day.AddDays(1)].FavCount)

	fav, err := f.layer.IsFavorite(ctx, "wanaka")
	require.NoError(t, err)
	assert.True(t, fav)
}

func TestCheckIn_OncePerShopPerDay(t *testing.T) {
	// GIVEN
	ctx := context.Background()
	f := newFixture(t)
	updates, cancel := f.bus.Subscribe(8)
	defer cancel()

	// WHEN: Two check-ins at the same shop
	first, err := f.layer.CheckIn(ctx, "wanaka")
	require.NoError(t, err)
	second, err := f.layer.CheckIn(ctx, "wanaka")
	require.NoError(t, err)

	// THEN: Only the first counts
	assert.True(t, first)
	assert.False(t, second)

	s := f.state(t)
	assert.Equal(t, 5, s.Points)
	assert.Equal(t, 1, s.Checkin.TotalDays)
	assert.Equal(t, 1, s.Checkin.Streak)
	require.Len(t, s.Checkin.Log, 1)
	assert.Equal(t, "Checked in at Takoyaki Wanaka", s.Checkin.Log[0].Note)

	txs, err := f.mem.Load(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "checkin:2025-03-10:wanaka", txs[0].IdempotencyKey)
	assert.Equal(t, generic.TxCheckin, txs[0].Type)
	assert.Equal(t, 5, txs[0].Delta.IntPart())

	// AND: Exactly one notification
	require.Len(t, updates, 1)
	u := <-updates
	assert.Equal(t, events.KindShopCheckin, u.Kind)
	assert.Equal(t, "wanaka", u.ShopID)

	done, err := f.layer.HasCheckedInToday(ctx, "wanaka")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestCheckIn_SecondShopSameDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.layer.CheckIn(ctx, "wanaka")
	require.NoError(t, err)
	ok, err := f.layer.CheckIn(ctx, "chibo")
	require.NoError(t, err)
	assert.True(t, ok)

	s := f.state(t)
	assert.Equal(t, 10, s.Points)
	assert.Equal(t, 1, s.Checkin.TotalDays, "same day counts once")
	assert.Len(t, s.Checkin.Log, 2)
	assert.Equal(t, 2, s.ShopCheckins.CountOn(day))
}

func TestCheckIn_ConsecutiveDays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		ok, err := f.layer.CheckIn(ctx, "wanaka")
		require.NoError(t, err)
		require.True(t, ok)
		f.clock.AdvanceDays(1)
	}

	s := f.state(t)
	assert.Equal(t, 3, s.Checkin.Streak)
	assert.Equal(t, 3, s.Checkin.TotalDays)
	assert.Equal(t, 15, s.Points)
}

func TestUnknownShop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.layer.ViewShop(ctx, "nope"), catalog.ErrShopNotFound)
	_, err := f.layer.ToggleFavorite(ctx, "nope")
	assert.ErrorIs(t, err, catalog.ErrShopNotFound)
	_, err = f.layer.CheckIn(ctx, "nope")
	assert.ErrorIs(t, err, catalog.ErrShopNotFound)

	assert.Zero(t, f.state(t).Points)
}

func TestCheckIn_FeedsEngine(t *testing.T) {
	// GIVEN: Check-ins on 20 distinct days
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 20; i++ {
		_, err := f.layer.CheckIn(ctx, "wanaka")
		require.NoError(t, err)
		f.clock.AdvanceDays(1)
	}
	engine := checkin.NewEngine(f.repo, checkin.DefaultRules(),
		checkin.WithClock(f.clock), checkin.WithLedger(generic.NewLedger(f.mem)))

	// WHEN
	v, err := engine.Render(ctx)
	require.NoError(t, err)

	// THEN: days20 and streak7 pay out once; 20*5 + 10 + 50 points
	require.Len(t, v.Notices, 2)
	assert.Equal(t, 160, v.Level.Points)
	assert.Equal(t, 2, v.Level.Level)

	total, err := generic.NewLedger(f.mem).Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, 160, total.IntPart())
}
