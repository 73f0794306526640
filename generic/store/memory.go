// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/checkin-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements generic.KV and generic.Store.
type Memory struct {
	mu           sync.RWMutex
	values       map[string][]byte
	transactions []generic.Transaction
	idempotency  map[string]bool
}

var (
	_ generic.KV       = (*Memory)(nil)
	_ generic.Store    = (*Memory)(nil)
	_ generic.Resetter = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		values:      make(map[string][]byte),
		idempotency: make(map[string]bool),
	}
}

// Get returns a copy of the stored value.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// SetMany writes all entries under one lock.
func (m *Memory) SetMany(_ context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.values[k] = append([]byte(nil), v...)
	}
	return nil
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}

	// Binary search for insertion point keeps transactions ordered by day
	i := sort.Search(len(m.transactions), func(i int) bool {
		return m.transactions[i].EffectiveAt.After(tx.EffectiveAt)
	})
	m.transactions = append(m.transactions, generic.Transaction{})
	copy(m.transactions[i+1:], m.transactions[i:])
	m.transactions[i] = tx

	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Load(_ context.Context) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Transaction, len(m.transactions))
	copy(result, m.transactions)
	return result, nil
}

func (m *Memory) LoadRange(_ context.Context, from, to generic.Day) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Transaction
	for _, tx := range m.transactions {
		if !tx.EffectiveAt.Before(from) && !tx.EffectiveAt.After(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// Reset drops every key and transaction.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string][]byte)
	m.transactions = nil
	m.idempotency = make(map[string]bool)
	return nil
}

// Corrupt overwrites key with raw bytes, bypassing any encoding. Tests use
// it to simulate damaged state.
func (m *Memory) Corrupt(key string, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = []byte(raw)
}
