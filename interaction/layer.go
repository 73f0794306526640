/*
Package interaction applies user actions on shops to the shared state.

PURPOSE:
  The map page's actions (view a shop, toggle a favorite, check in) are the
  only writers of the raw counters the progression engine evaluates. Each
  action is one read-modify-write of the state slices it touches, followed
  by a task-update notification so that every listening surface re-renders.

ACTIONS:
  ViewShop        today's viewed set gains the shop (no duplicates)
  ToggleFavorite  favorites list flips; first-ever favorite is dated
  CheckIn         once per shop per day: points, history, ledger entry

DUPLICATES:
  A repeated check-in is not an error. CheckIn returns false and nothing
  is written or published.

SEE ALSO:
  - checkin/repo.go: The read-modify-write primitive
  - events/bus.go: Notifications
*/
package interaction

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/checkin-engine/catalog"
	"github.com/warp/checkin-engine/checkin"
	"github.com/warp/checkin-engine/events"
	"github.com/warp/checkin-engine/generic"
)

// Shops resolves shop identifiers.
type Shops interface {
	Get(id string) (catalog.Shop, error)
}

// Layer is the interaction surface over a Repository.
type Layer struct {
	repo   *checkin.Repository
	shops  Shops
	pub    events.Publisher
	rules  checkin.Rules
	clock  generic.Clock
	ledger generic.Ledger
	logger *zap.Logger
}

type Option func(*Layer)

func WithClock(c generic.Clock) Option        { return func(l *Layer) { l.clock = c } }
func WithLedger(lg generic.Ledger) Option     { return func(l *Layer) { l.ledger = lg } }
func WithLogger(lg *zap.Logger) Option        { return func(l *Layer) { l.logger = lg } }
func WithPublisher(p events.Publisher) Option { return func(l *Layer) { l.pub = p } }

func New(repo *checkin.Repository, shops Shops, rules checkin.Rules, opts ...Option) *Layer {
	l := &Layer{
		repo:   repo,
		shops:  shops,
		rules:  rules,
		clock:  generic.RealClock{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Layer) shop(id string) (catalog.Shop, error) {
	if l.shops == nil {
		return catalog.Shop{ID: id, Name: id}, nil
	}
	return l.shops.Get(id)
}

func (l *Layer) publish(kind events.Kind, shopID string) {
	if l.pub == nil {
		return
	}
	l.pub.Publish(events.Update{Kind: kind, ShopID: shopID, At: l.clock.Now()})
}

// ViewShop records that the shop was viewed today.
func (l *Layer) ViewShop(ctx context.Context, shopID string) error {
	if _, err := l.shop(shopID); err != nil {
		return err
	}
	today := generic.Today(l.clock)

	_, err := l.repo.Update(ctx, func(s *checkin.State) error {
		rec := s.Today(today)
		if !rec.HasViewed(shopID) {
			rec.Viewed = append(rec.Viewed, shopID)
			s.Daily[today] = rec
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("view %s: %w", shopID, err)
	}
	l.publish(events.KindView, shopID)
	return nil
}

// ToggleFavorite flips the favorite flag of a shop and reports the new
// value. Adding a favorite counts toward today's favorite task every time;
// the favorite date is only set the first time the shop is ever favorited.
func (l *Layer) ToggleFavorite(ctx context.Context, shopID string) (bool, error) {
	if _, err := l.shop(shopID); err != nil {
		return false, err
	}
	today := generic.Today(l.clock)

	var favorited bool
	_, err := l.repo.Update(ctx, func(s *checkin.State) error {
		if s.IsFavorite(shopID) {
			s.Favorites = remove(s.Favorites, shopID)
			return nil
		}
		favorited = true
		s.Favorites = append(s.Favorites, shopID)
		if s.FavDates == nil {
			s.FavDates = checkin.FavoriteDates{}
		}
		if _, ok := s.FavDates[shopID]; !ok {
			s.FavDates[shopID] = today
		}
		rec := s.Today(today)
		rec.FavCount++
		s.Daily[today] = rec
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("favorite %s: %w", shopID, err)
	}

	l.logger.Debug("favorite toggled", zap.String("shop", shopID), zap.Bool("favorited", favorited))
	l.publish(events.KindFavorite, shopID)
	return favorited, nil
}

// CheckIn records a check-in at a shop. It returns false without changing
// anything if the shop was already checked into today.
func (l *Layer) CheckIn(ctx context.Context, shopID string) (bool, error) {
	shop, err := l.shop(shopID)
	if err != nil {
		return false, err
	}
	today := generic.Today(l.clock)
	note := fmt.Sprintf("Checked in at %s", shop.Name)

	var fresh bool
	_, err = l.repo.Update(ctx, func(s *checkin.State) error {
		if s.ShopCheckins.Has(today, shopID) {
			return nil
		}
		fresh = true
		if s.ShopCheckins == nil {
			s.ShopCheckins = checkin.ShopCheckins{}
		}
		if s.ShopCheckins[today] == nil {
			s.ShopCheckins[today] = map[string]bool{}
		}
		s.ShopCheckins[today][shopID] = true
		s.Points += l.rules.CheckinPoints
		s.Checkin = checkin.RecordCheckin(s.Checkin, today, note)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("check in %s: %w", shopID, err)
	}
	if !fresh {
		l.logger.Debug("duplicate check-in ignored", zap.String("shop", shopID), zap.String("day", today.String()))
		return false, nil
	}

	l.appendLedger(ctx, generic.Transaction{
		EffectiveAt:    today,
		Delta:          generic.Points(l.rules.CheckinPoints),
		Type:           generic.TxCheckin,
		ReferenceID:    shopID,
		Reason:         note,
		IdempotencyKey: fmt.Sprintf("checkin:%s:%s", today, shopID),
	})
	l.logger.Info("checked in", zap.String("shop", shopID), zap.Int("points", l.rules.CheckinPoints))
	l.publish(events.KindShopCheckin, shopID)
	return true, nil
}

// The points total in state is authoritative; the ledger is an audit trail,
// so an append failure is logged and the action still succeeds.
func (l *Layer) appendLedger(ctx context.Context, tx generic.Transaction) {
	if l.ledger == nil {
		return
	}
	if err := l.ledger.Append(ctx, tx); err != nil && !generic.IsDuplicate(err) {
		l.logger.Warn("ledger append failed", zap.String("key", tx.IdempotencyKey), zap.Error(err))
	}
}

// =============================================================================
// QUERIES
// =============================================================================

func (l *Layer) IsFavorite(ctx context.Context, shopID string) (bool, error) {
	s, err := l.repo.Load(ctx)
	if err != nil {
		return false, err
	}
	return s.IsFavorite(shopID), nil
}

func (l *Layer) HasCheckedInToday(ctx context.Context, shopID string) (bool, error) {
	s, err := l.repo.Load(ctx)
	if err != nil {
		return false, err
	}
	return s.ShopCheckins.Has(generic.Today(l.clock), shopID), nil
}

// Favorites returns the favorited shop identifiers in the order they were
// added.
func (l *Layer) Favorites(ctx context.Context) ([]string, error) {
	s, err := l.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.Favorites, nil
}

func remove(list []string, id string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
