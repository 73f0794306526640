package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/checkin-engine/checkin"
	"github.com/warp/checkin-engine/generic"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKV_GetSet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, found, err := s.Get(ctx, "km_points_v1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "km_points_v1", []byte("5")))
	require.NoError(t, s.Set(ctx, "km_points_v1", []byte("10")))

	v, found, err := s.Get(ctx, "km_points_v1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "10", string(v))
}

func TestKV_SetMany(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetMany(ctx, map[string][]byte{
		"a": []byte(`1`),
		"b": []byte(`{"x":true}`),
	}))

	a, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", string(a))
	b, found, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"x":true}`, string(b))
}

func TestTransactions_AppendAndDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tx := generic.Transaction{
		EffectiveAt:    "2025-03-10",
		Delta:          generic.Points(5),
		Type:           generic.TxCheckin,
		ReferenceID:    "wanaka",
		Reason:         "Checked in at Takoyaki Wanaka",
		IdempotencyKey: "checkin:2025-03-10:wanaka",
		Metadata:       map[string]string{"source": "test"},
	}
	require.NoError(t, s.Append(ctx, tx))

	err := s.Append(ctx, tx)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	exists, err := s.Exists(ctx, "checkin:2025-03-10:wanaka")
	require.NoError(t, err)
	assert.True(t, exists)

	txs, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.NotEmpty(t, txs[0].ID)
	assert.Equal(t, generic.Day("2025-03-10"), txs[0].EffectiveAt)
	assert.Equal(t, 5, txs[0].Delta.IntPart())
	assert.Equal(t, generic.UnitPoints, txs[0].Delta.Unit)
	assert.Equal(t, "test", txs[0].Metadata["source"])
}

func TestTransactions_Range(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, day := range []generic.Day{"2025-03-12", "2025-03-10", "2025-03-11"} {
		require.NoError(t, s.Append(ctx, generic.Transaction{
			EffectiveAt: day,
			Delta:       generic.Points(i + 1),
			Type:        generic.TxCheckin,
		}))
	}

	all, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, generic.Day("2025-03-10"), all[0].EffectiveAt)

	ranged, err := s.LoadRange(ctx, "2025-03-11", "2025-03-12")
	require.NoError(t, err)
	assert.Len(t, ranged, 2)
}

func TestFileBacked_Reopen(t *testing.T) {
	// GIVEN: State written through the repository
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkin.db")
	s, err := New(path)
	require.NoError(t, err)

	repo := checkin.NewRepository(s, nil)
	_, err = repo.Update(ctx, func(st *checkin.State) error {
		st.Points = 42
		st.Favorites = append(st.Favorites, "wanaka")
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// WHEN: Reopening the file
	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	// THEN
	got, err := checkin.NewRepository(s, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Points)
	assert.Equal(t, []string{"wanaka"}, got.Favorites)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	require.NoError(t, s.Append(ctx, generic.Transaction{EffectiveAt: "2025-03-10", Delta: generic.Points(1)}))

	require.NoError(t, s.Reset(ctx))

	_, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)
	txs, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
