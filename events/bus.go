/*
Package events carries task-update notifications between surfaces.

PURPOSE:
  A surface that mutates shared state (the interaction layer, a file
  watcher noticing another process's write, the day-rollover scheduler)
  publishes an Update. Listeners (the progression engine, SSE clients)
  reload state and re-render.

DELIVERY:
  Best effort. Publish never blocks: each subscriber has a buffered
  channel and an update that does not fit is dropped for that subscriber.
  Because listeners reload all state on any update, a dropped update is
  recovered by the next one.

USAGE:
  bus := events.NewBus(logger)
  updates, cancel := bus.Subscribe(16)
  defer cancel()
  bus.Publish(events.Update{Kind: events.KindFavorite, ShopID: "wanaka"})
*/
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind discriminates which action produced an Update.
type Kind string

const (
	KindShopCheckin Kind = "shopCheckin"
	KindFavorite    Kind = "favorite"
	KindView        Kind = "view"
	KindExternal    Kind = "external"    // another process changed the store
	KindDayRollover Kind = "dayRollover" // the calendar day changed
)

// Update is a task-update notification.
type Update struct {
	Kind   Kind      `json:"type"`
	ShopID string    `json:"shop_id,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher is the emitting side of a Bus.
type Publisher interface {
	Publish(u Update)
}

// Bus is an in-process fan-out of Updates.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Update
	nextID int
	closed bool
	logger *zap.Logger
}

var _ Publisher = (*Bus)(nil)

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{subs: make(map[int]chan Update), logger: logger}
}

// Subscribe registers a listener with the given buffer size. The returned
// cancel func unregisters it and closes the channel; it is safe to call
// more than once.
func (b *Bus) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Update, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers u to every subscriber without blocking.
func (b *Bus) Publish(u Update) {
	if u.At.IsZero() {
		u.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- u:
		default:
			b.logger.Debug("subscriber buffer full, dropping update",
				zap.Int("subscriber", id), zap.String("kind", string(u.Kind)))
		}
	}
}

// Subscribers returns the number of active listeners.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unregisters and closes every subscriber. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
