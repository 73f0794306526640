package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/warp/checkin-engine/generic"
)

// Repository reads and writes State slices in the shared namespace.
//
// Update serializes read-modify-write cycles of every component sharing the
// Repository. Other processes writing the same namespace are not
// coordinated: the last writer wins.
type Repository struct {
	mu     sync.Mutex
	kv     generic.KV
	logger *zap.Logger
}

func NewRepository(kv generic.KV, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{kv: kv, logger: logger}
}

// Load reads every slice. A missing or corrupt slice is replaced by its
// default and logged; only storage failures are returned.
func (r *Repository) Load(ctx context.Context) (State, error) {
	var (
		s   State
		err error
	)
	if s.Points, err = r.loadPoints(ctx); err != nil {
		return State{}, err
	}
	if s.Checkin, err = load(ctx, r, KeyCheckin, defaultCheckin); err != nil {
		return State{}, err
	}
	if s.Daily, err = load(ctx, r, KeyDaily, defaultDaily); err != nil {
		return State{}, err
	}
	if s.FavDates, err = load(ctx, r, KeyFavDates, defaultFavDates); err != nil {
		return State{}, err
	}
	if s.ShopCheckins, err = load(ctx, r, KeyShopCheckins, defaultShopCheckins); err != nil {
		return State{}, err
	}
	if s.LongTerm, err = load(ctx, r, KeyLongTerm, defaultLongTerm); err != nil {
		return State{}, err
	}
	if s.Favorites, err = load(ctx, r, KeyFavorites, defaultFavorites); err != nil {
		return State{}, err
	}
	if s.Checkin.Log == nil {
		s.Checkin.Log = []LogEntry{}
	}
	return s, nil
}

func load[T any](ctx context.Context, r *Repository, key string, def func() T) (T, error) {
	d, err := generic.Load(ctx, r.kv, key, def)
	if err != nil {
		return d.Value, fmt.Errorf("load %s: %w", key, err)
	}
	if d.Err != nil {
		r.logger.Warn("persisted value unreadable, using default",
			zap.String("key", key), zap.Error(d.Err))
	}
	return d.Value, nil
}

// loadPoints reads the points total. A fractional number is truncated
// toward zero rather than discarded.
func (r *Repository) loadPoints(ctx context.Context) (int, error) {
	n, err := load(ctx, r, KeyPoints, func() json.Number { return "0" })
	if err != nil {
		return 0, err
	}
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		r.logger.Warn("persisted value unreadable, using default",
			zap.String("key", KeyPoints), zap.Error(err))
		return defaultPoints(), nil
	}
	r.logger.Warn("fractional points total truncated",
		zap.String("key", KeyPoints), zap.Float64("value", f))
	return int(math.Trunc(f)), nil
}

// Update loads State, applies fn and writes back the slices fn changed in
// one atomic multi-key write. If fn returns an error nothing is written.
func (r *Repository) Update(ctx context.Context, fn func(*State) error) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.Load(ctx)
	if err != nil {
		return State{}, err
	}
	before, err := encodeAll(s)
	if err != nil {
		return State{}, err
	}
	if err := fn(&s); err != nil {
		return State{}, err
	}
	after, err := encodeAll(s)
	if err != nil {
		return State{}, err
	}

	changed := make(map[string][]byte)
	for k, raw := range after {
		if !bytes.Equal(before[k], raw) {
			changed[k] = raw
		}
	}
	if len(changed) == 0 {
		return s, nil
	}
	if err := r.kv.SetMany(ctx, changed); err != nil {
		return State{}, fmt.Errorf("save state: %w", err)
	}
	return s, nil
}

var allKeys = []string{
	KeyPoints, KeyCheckin, KeyDaily, KeyFavDates, KeyShopCheckins, KeyLongTerm, KeyFavorites,
}

func encodeAll(s State) (map[string][]byte, error) {
	out := make(map[string][]byte, len(allKeys))
	for _, k := range allKeys {
		v, err := sliceOf(s, k)
		if err != nil {
			return nil, err
		}
		raw, err := generic.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}

// Reset wipes the namespace, and the ledger when the store keeps one there.
// It returns ErrStoreRequired when the store cannot reset.
func (r *Repository) Reset(ctx context.Context) error {
	rs, err := generic.ResetterFor(r.kv)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := rs.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	return nil
}

// Save writes every slice atomically.
func (r *Repository) Save(ctx context.Context, s State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveKeys(ctx, s, allKeys...)
}

func (r *Repository) saveKeys(ctx context.Context, s State, keys ...string) error {
	entries := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, err := sliceOf(s, k)
		if err != nil {
			return err
		}
		raw, err := generic.Encode(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		entries[k] = raw
	}
	if err := r.kv.SetMany(ctx, entries); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func sliceOf(s State, key string) (any, error) {
	switch key {
	case KeyPoints:
		return s.Points, nil
	case KeyCheckin:
		return s.Checkin, nil
	case KeyDaily:
		return s.Daily, nil
	case KeyFavDates:
		return s.FavDates, nil
	case KeyShopCheckins:
		return s.ShopCheckins, nil
	case KeyLongTerm:
		return s.LongTerm, nil
	case KeyFavorites:
		return s.Favorites, nil
	default:
		return nil, fmt.Errorf("unknown state key %q", key)
	}
}
