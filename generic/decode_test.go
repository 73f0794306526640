package generic_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/checkin-engine/generic"
	"github.com/warp/checkin-engine/generic/store"
)

func zeroInt() int                  { return 0 }
func emptyMap() map[string]bool     { return map[string]bool{} }

func TestDecode_MissingKey_UsesDefault(t *testing.T) {
	d := generic.Decode("k", nil, false, zeroInt)
	assert.Equal(t, 0, d.Value)
	assert.False(t, d.Found)
	assert.NoError(t, d.Err)
	assert.True(t, d.Defaulted())
}

func TestDecode_Null_UsesDefault(t *testing.T) {
	d := generic.Decode("k", []byte("null"), true, emptyMap)
	assert.NotNil(t, d.Value)
	assert.NoError(t, d.Err)
}

func TestDecode_Corrupt_ReportsErrorAndDefault(t *testing.T) {
	// GIVEN: A damaged document
	d := generic.Decode("km_longterm_v2", []byte("{not json"), true, emptyMap)

	// THEN: Default value with a DecodeError naming the key
	assert.Equal(t, map[string]bool{}, d.Value)
	require.Error(t, d.Err)
	assert.ErrorIs(t, d.Err, generic.ErrCorruptValue)
	assert.Contains(t, d.Err.Error(), "km_longterm_v2")
	assert.True(t, d.Defaulted())
}

func TestDecode_WrongShape_UsesDefault(t *testing.T) {
	d := generic.Decode("km_points_v1", []byte(`{"a":1}`), true, zeroInt)
	assert.Equal(t, 0, d.Value)
	assert.Error(t, d.Err)
}

func TestLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	raw, err := generic.Encode(map[string]bool{"days20": true})
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "km_longterm_v2", raw))

	d, err := generic.Load(ctx, kv, "km_longterm_v2", emptyMap)
	require.NoError(t, err)
	assert.True(t, d.Found)
	assert.Equal(t, map[string]bool{"days20": true}, d.Value)
}

func TestDay_Arithmetic(t *testing.T) {
	d := generic.DayOf(time.Date(2025, time.March, 1, 23, 30, 0, 0, time.UTC))
	assert.Equal(t, generic.Day("2025-03-01"), d)
	assert.Equal(t, generic.Day("2025-02-28"), d.AddDays(-1))
	assert.Equal(t, 1, generic.DaysBetween(d.AddDays(-1), d))
	assert.Equal(t,
		[]generic.Day{"2025-03-01", "2025-02-28", "2025-02-27"},
		generic.LastNDays(d, 3))

	_, err := generic.ParseDay("03/01/2025")
	assert.Error(t, err)
}

func TestFakeClock_Today(t *testing.T) {
	clock := generic.NewFakeClock(time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, generic.Day("2025-03-10"), generic.Today(clock))

	clock.AdvanceDays(2)
	assert.Equal(t, generic.Day("2025-03-12"), generic.Today(clock))
}
