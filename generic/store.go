/*
store.go - Persistence interfaces for state and the points ledger

PURPOSE:
  Defines the interface between the progression logic and storage.
  All progression state lives in one key-value namespace (KV), the same
  way a browser page keeps its state in local storage. Point grants are
  additionally recorded in an append-only ledger (Store) when the
  backing implementation supports it.

KEY INTERFACES:
  KV:    The shared namespace (Get, Set, SetMany)
  Store: Append-only point transactions (append, load, exists)
  Resetter: Optional wipe of the whole namespace and ledger

ATOMIC MULTI-KEY WRITES:
  SetMany() writes several keys all-or-nothing. Granting a long-term
  reward touches two keys (reward memory and points total); either both
  change or neither does.

NO CROSS-PROCESS TRANSACTIONS:
  Each implementation serializes writes within its own process only.
  Two processes doing read-modify-write on the same key can lose an
  update. Last writer wins.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory for tests
  - store/sqlite/sqlite.go: SQLite (KV + ledger)
  - store/jsonfile/jsonfile.go: Single JSON file (KV only)

SEE ALSO:
  - ledger.go: Higher-level interface using Store
  - decode.go: Typed reads over KV
*/
package generic

import "context"

// =============================================================================
// KV - Shared state namespace
// =============================================================================

// KV is the key-value namespace shared by every surface.
// Values are raw JSON documents.
type KV interface {
	// Get returns the raw value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte) error

	// SetMany stores all entries atomically.
	SetMany(ctx context.Context, entries map[string][]byte) error
}

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Store handles persistence of point transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete.
type Store interface {
	// Append persists a transaction. Returns ErrDuplicateIdempotencyKey if
	// the key exists.
	Append(ctx context.Context, tx Transaction) error

	// Load returns all transactions ordered by EffectiveAt, oldest first.
	Load(ctx context.Context) ([]Transaction, error)

	// LoadRange returns transactions in [from, to].
	LoadRange(ctx context.Context, from, to Day) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// LedgerFor returns a Ledger when kv also implements Store, or
// ErrStoreRequired.
func LedgerFor(kv KV) (Ledger, error) {
	s, ok := kv.(Store)
	if !ok {
		return nil, ErrStoreRequired
	}
	return NewLedger(s), nil
}

// Resetter is implemented by stores that can wipe their namespace, and
// their ledger if they carry one, in one step.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ResetterFor returns kv as a Resetter, or ErrStoreRequired.
func ResetterFor(kv KV) (Resetter, error) {
	r, ok := kv.(Resetter)
	if !ok {
		return nil, ErrStoreRequired
	}
	return r, nil
}
