/*
scheduler.go - Day rollover scheduler

PURPOSE:
  Daily tasks reset at local midnight, but nothing in the store changes
  when the date does. The scheduler polls the clock and publishes a
  dayRollover update when the calendar day differs from the last check,
  so open progress streams re-render with fresh daily tasks and an
  expired streak.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Compares generic.Today(clock) with the day seen on the previous tick
  - Publishes at most one update per day change

USAGE:
  scheduler := NewRolloverScheduler(clock, bus, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

  Or under an errgroup:
  g.Go(func() error { return scheduler.Run(ctx) })
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/checkin-engine/events"
	"github.com/warp/checkin-engine/generic"
)

// RolloverScheduler announces calendar day changes.
type RolloverScheduler struct {
	Clock         generic.Clock
	Publisher     events.Publisher
	CheckInterval time.Duration
	Logger        *zap.Logger

	lastDay generic.Day
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewRolloverScheduler creates a new scheduler checking once a minute.
func NewRolloverScheduler(clock generic.Clock, pub events.Publisher, logger *zap.Logger) *RolloverScheduler {
	if clock == nil {
		clock = generic.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RolloverScheduler{
		Clock:         clock,
		Publisher:     pub,
		CheckInterval: time.Minute,
		Logger:        logger,
	}
}

// Start begins the scheduler. Calling Start on a running scheduler is a
// no-op.
func (rs *RolloverScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.running {
		return
	}
	if rs.CheckInterval <= 0 {
		rs.CheckInterval = time.Minute
	}
	rs.running = true
	rs.stop = make(chan struct{})
	rs.lastDay = generic.Today(rs.Clock)

	rs.wg.Add(1)
	go rs.run(rs.stop)

	rs.Logger.Info("rollover scheduler started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for it to exit.
func (rs *RolloverScheduler) Stop() {
	rs.mu.Lock()
	if !rs.running {
		rs.mu.Unlock()
		return
	}
	rs.running = false
	close(rs.stop)
	rs.mu.Unlock()

	rs.wg.Wait()
	rs.Logger.Info("rollover scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is done.
func (rs *RolloverScheduler) Run(ctx context.Context) error {
	rs.Start()
	<-ctx.Done()
	rs.Stop()
	return nil
}

func (rs *RolloverScheduler) run(stop <-chan struct{}) {
	defer rs.wg.Done()

	ticker := time.NewTicker(rs.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rs.Check()
		case <-stop:
			return
		}
	}
}

// Check publishes a dayRollover update if the day changed since the last
// check. It reports whether it did.
func (rs *RolloverScheduler) Check() bool {
	today := generic.Today(rs.Clock)

	rs.mu.Lock()
	changed := rs.lastDay != "" && today != rs.lastDay
	rs.lastDay = today
	rs.mu.Unlock()

	if !changed {
		return false
	}
	rs.Logger.Info("day rolled over", zap.Stringer("day", today))
	if rs.Publisher != nil {
		rs.Publisher.Publish(events.Update{Kind: events.KindDayRollover, At: rs.Clock.Now()})
	}
	return true
}
