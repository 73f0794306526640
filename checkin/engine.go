package checkin

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/checkin-engine/events"
	"github.com/warp/checkin-engine/generic"
)

// Notice is a one-time message for the user, such as a reward celebration.
type Notice struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Points int    `json:"points,omitempty"`
}

const NoticeReward = "reward"

// View is everything a progression page shows.
type View struct {
	Today    generic.Day      `json:"today"`
	Level    Level            `json:"level"`
	Daily    DailyResult      `json:"daily"`
	LongTerm []LongTermStatus `json:"long_term"`
	Badges   []string         `json:"badges"`
	Log      []LogEntry       `json:"log"`
	Notices  []Notice         `json:"notices"`
}

// Engine runs the evaluation pipeline against the shared namespace.
type Engine struct {
	repo   *Repository
	rules  Rules
	clock  generic.Clock
	ledger generic.Ledger
	logger *zap.Logger
}

type Option func(*Engine)

func WithClock(c generic.Clock) Option   { return func(e *Engine) { e.clock = c } }
func WithLedger(l generic.Ledger) Option { return func(e *Engine) { e.ledger = l } }
func WithLogger(l *zap.Logger) Option    { return func(e *Engine) { e.logger = l } }

func NewEngine(repo *Repository, rules Rules, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		rules:  rules,
		clock:  generic.RealClock{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Rules() Rules { return e.rules }

// Render reloads every slice, evaluates today's tasks, applies first-time
// long-term grants and returns the resulting View.
func (e *Engine) Render(ctx context.Context) (View, error) {
	today := generic.Today(e.clock)

	var (
		daily   DailyResult
		applied []Grant
	)
	s, err := e.repo.Update(ctx, func(s *State) error {
		rec := s.Today(today)
		daily = EvaluateDaily(rec, s.ShopCheckins.CountOn(today), e.rules)
		s.Daily[today] = daily.Record

		// A grant can raise a metric another task reads (points), so grade
		// again until nothing new is granted.
		applied = nil
		for i := 0; i <= len(e.rules.LongTerm); i++ {
			lt := EvaluateLongTerm(*s, today, e.rules)
			if len(lt.Grants) == 0 {
				break
			}
			applied = append(applied, ApplyGrants(s, lt.Grants)...)
		}
		return nil
	})
	if err != nil {
		return View{}, fmt.Errorf("render: %w", err)
	}

	notices := e.recordGrants(ctx, today, applied)

	return View{
		Today:    today,
		Level:    CalcLevel(s.Points, e.rules),
		Daily:    daily,
		LongTerm: EvaluateLongTerm(s, today, e.rules).Tasks,
		Badges:   DeriveBadges(s, today, e.rules),
		Log:      recentLog(s.Checkin.Log, e.rules.LogLimit),
		Notices:  notices,
	}, nil
}

func (e *Engine) recordGrants(ctx context.Context, today generic.Day, grants []Grant) []Notice {
	notices := []Notice{}
	for _, g := range grants {
		e.logger.Info("long-term task reward granted",
			zap.String("task", g.Task.Key), zap.Int("prize", g.Task.Prize))
		notices = append(notices, Notice{
			Kind:   NoticeReward,
			Text:   fmt.Sprintf("🎉 Completed: %s, reward %s", g.Task.Title, g.Task.Reward()),
			Points: g.Task.Prize,
		})
		if e.ledger == nil {
			continue
		}
		err := e.ledger.Append(ctx, generic.Transaction{
			EffectiveAt:    today,
			Delta:          generic.Points(g.Task.Prize),
			Type:           generic.TxLongTerm,
			ReferenceID:    g.Task.Key,
			Reason:         g.Task.Title,
			IdempotencyKey: g.IdempotencyKey(),
		})
		if err != nil && !generic.IsDuplicate(err) {
			e.logger.Warn("ledger append failed", zap.String("task", g.Task.Key), zap.Error(err))
		}
	}
	return notices
}

func recentLog(log []LogEntry, limit int) []LogEntry {
	if limit <= 0 || len(log) <= limit {
		return append([]LogEntry{}, log...)
	}
	return append([]LogEntry{}, log[:limit]...)
}

// Watch renders once, then again for every update received until ctx is
// done or updates is closed. Each View is passed to fn. Render errors are
// logged and do not stop the loop.
func (e *Engine) Watch(ctx context.Context, updates <-chan events.Update, fn func(View)) error {
	render := func(reason string) {
		v, err := e.Render(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			e.logger.Error("render failed", zap.String("reason", reason), zap.Error(err))
			return
		}
		fn(v)
	}

	render("initial")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			e.logger.Debug("task update received",
				zap.String("kind", string(u.Kind)), zap.String("shop", u.ShopID))
			render(string(u.Kind))
		}
	}
}
