/*
Package jsonfile keeps the shared state namespace in a single JSON file.

PURPOSE:
  The file is an object of key -> string, where each string is the raw JSON
  document of one state slice. It is the on-disk analog of a browser's
  local storage: any process (or a human with an editor) can read or
  rewrite it, and every reader sees the latest file on the next Get.

FORMAT:
  {
    "km_points_v1": "15",
    "km_favs_v1": "[\"wanaka\"]"
  }

WRITES:
  SetMany re-reads the file, merges the entries and replaces the file via
  write-to-temp + rename, so readers never observe a half-written file.
  There is no cross-process locking: last writer wins.

CHANGE DETECTION:
  Digest() returns the SHA-256 of the last content this Store wrote. The
  Watcher compares it to the file on disk to tell its own writes from
  another process's.

SEE ALSO:
  - watcher.go: fsnotify-based change notifications
  - generic/store.go: The KV interface
*/
package jsonfile

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/warp/checkin-engine/generic"
)

// Store implements generic.KV over one JSON file.
type Store struct {
	mu     sync.RWMutex
	path   string
	digest [sha256.Size]byte
	logger *zap.Logger
}

var (
	_ generic.KV       = (*Store)(nil)
	_ generic.Resetter = (*Store)(nil)
)

// New returns a Store for path. The file is created on first write.
func New(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{path: path, logger: logger}, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Digest returns the hash of the content last written by this Store.
func (s *Store) Digest() [sha256.Size]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.digest
}

// Get returns the raw value for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.read()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, map[string][]byte{key: value})
}

// SetMany merges entries into the file in one replace.
func (s *Store) SetMany(_ context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	for k, v := range entries {
		doc[k] = string(v)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	s.digest = sha256.Sum256(data)
	return nil
}

// Reset replaces the file with an empty document.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := []byte("{}")
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("reset state file: %w", err)
	}
	s.digest = sha256.Sum256(data)
	return nil
}

// read loads the file. A missing file is an empty namespace; an unparseable
// one is logged and treated as empty so that the next write repairs it.
func (s *Store) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}

	doc := map[string]string{}
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("state file unreadable, treating as empty",
			zap.String("path", s.path), zap.Error(err))
		return map[string]string{}, nil
	}
	return doc, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
