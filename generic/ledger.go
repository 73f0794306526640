/*
ledger.go - Append-only point transaction log

PURPOSE:
  The Ledger records every point grant: shop check-in rewards and
  one-time long-term task rewards. The scalar points total persisted in
  the state namespace is what the level model reads; the ledger is the
  audit trail explaining how that total was reached.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

IDEMPOTENCY KEYS:
  checkin:<day>:<shop>   one per shop per day
  longterm:<task key>    one per long-term task, ever

SEE ALSO:
  - store.go: Low-level persistence interface
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the history of point grants.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// Transactions returns all transactions, chronologically.
	Transactions(ctx context.Context) ([]Transaction, error)

	// TransactionsInRange returns transactions in [from, to].
	TransactionsInRange(ctx context.Context, from, to Day) ([]Transaction, error)

	// Total sums every recorded delta.
	Total(ctx context.Context) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.ID == "" {
		tx.ID = NewTransactionID()
	}
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) Transactions(ctx context.Context) ([]Transaction, error) {
	return l.Store.Load(ctx)
}

func (l *DefaultLedger) TransactionsInRange(ctx context.Context, from, to Day) ([]Transaction, error) {
	return l.Store.LoadRange(ctx, from, to)
}

func (l *DefaultLedger) Total(ctx context.Context) (Amount, error) {
	txs, err := l.Store.Load(ctx)
	if err != nil {
		return Amount{}, err
	}
	total := Points(0)
	for _, tx := range txs {
		total = total.Add(tx.Delta)
	}
	return total, nil
}
