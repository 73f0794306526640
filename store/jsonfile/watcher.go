package jsonfile

import (
	"context"
	"crypto/sha256"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/warp/checkin-engine/events"
)

// Watcher publishes events.KindExternal when the state file is changed by
// anyone other than the Store it was built for.
//
// The parent directory is watched rather than the file, since an atomic
// rename replaces the inode a file watch would be bound to.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	store       *Store
	pub         events.Publisher
	logger      *zap.Logger
	debounceDur time.Duration
	pendingAt   time.Time // zero when nothing is pending
	lastSeen    [sha256.Size]byte
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a Watcher for store. debounce coalesces bursts of
// filesystem events into one notification.
func NewWatcher(store *Store, pub events.Publisher, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{
		watcher:     fw,
		store:       store,
		pub:         pub,
		logger:      logger,
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.lastSeen = w.fileDigest()
	w.mu.Unlock()

	dir := filepath.Dir(w.store.Path())
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.logger.Debug("watching state file", zap.String("path", w.store.Path()))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("closing watcher", zap.Error(err))
	}
}

// Run starts the watcher and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 2
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-debounceTicker.C:
			w.processDebounced()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.store.Path()) {
		return
	}
	switch {
	case event.Op&fsnotify.Create != 0, event.Op&fsnotify.Write != 0,
		event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
	default:
		return // chmod
	}

	w.mu.Lock()
	w.pendingAt = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced() {
	w.mu.Lock()
	if w.pendingAt.IsZero() || time.Since(w.pendingAt) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pendingAt = time.Time{}

	current := w.fileDigest()
	if current == w.lastSeen {
		w.mu.Unlock()
		return
	}
	w.lastSeen = current
	own := current == w.store.Digest()
	w.mu.Unlock()

	if own {
		return
	}
	w.logger.Info("state file changed externally", zap.String("path", w.store.Path()))
	w.pub.Publish(events.Update{Kind: events.KindExternal})
}

func (w *Watcher) fileDigest() [sha256.Size]byte {
	data, err := os.ReadFile(w.store.Path())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("reading state file", zap.Error(err))
		}
		return [sha256.Size]byte{}
	}
	return sha256.Sum256(data)
}
