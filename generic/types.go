/*
Package generic provides the domain-agnostic building blocks of the check-in engine.

PURPOSE:
  The progression rules in package checkin sit on top of a small set of
  primitives that know nothing about shops, tasks or badges:
  - Amount: a decimal quantity with a unit (points)
  - Transaction: an append-only ledger entry recording a point grant
  - Day: a calendar day key ("YYYY-MM-DD") as used by the persisted state
  - KV: the shared key-value namespace every surface reads and writes

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount and Unit
  - Transaction and TransactionType
  - Identifier types

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified
  2. Precision: Uses decimal.Decimal to avoid floating-point drift
  3. Idempotency: Every grant carries a key; replays are rejected

USAGE:
  tx := generic.Transaction{
      ID:             generic.NewTransactionID(),
      Delta:          generic.NewAmountFromInt(5, generic.UnitPoints),
      Type:           generic.TxCheckin,
      IdempotencyKey: "checkin:2025-03-10:takoyaki-wanaka",
  }

SEE ALSO:
  - store.go: KV and ledger persistence interfaces
  - ledger.go: Ledger wrapper enforcing idempotency
  - decode.go: Decode-with-default for persisted values
*/
package generic

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitPoints Unit = "points"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// Points is shorthand for an integer amount of points.
func Points(n int) Amount { return NewAmountFromInt(n, UnitPoints) }

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) IntPart() int              { return int(a.Value.IntPart()) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TransactionID string

// NewTransactionID returns a random transaction identifier.
func NewTransactionID() TransactionID {
	return TransactionID(uuid.NewString())
}

// =============================================================================
// TRANSACTION - Recorded point grant
// =============================================================================

type TransactionType string

const (
	TxCheckin  TransactionType = "checkin"   // Points for checking in at a shop
	TxLongTerm TransactionType = "long_term" // One-time long-term task reward
	TxScenario TransactionType = "scenario"  // Points seeded by a demo scenario
)

type Transaction struct {
	ID             TransactionID
	EffectiveAt    Day
	Delta          Amount
	Type           TransactionType
	ReferenceID    string // shop id or task key
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}
