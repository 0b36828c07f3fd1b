// Package ledger defines the BucketLedger port the sweep engine consumes.
// The ledger owns all balance data; the engine only reads balances and
// yield rates and asks for transfers. The chain adapter talks to the
// deployed vault router, the memory adapter backs simulations and tests.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"palmbudget/internal/bucket"
)

var (
	// ErrInsufficientFunds signals a transfer larger than the source balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrBucketsNotWired signals that a user's bucket addresses are unset.
	ErrBucketsNotWired = errors.New("ledger: buckets not wired")
)

// Ledger is the external vault surface consumed by the sweep engine.
type Ledger interface {
	// BalanceOf returns a user's balance in one bucket, in token units.
	BalanceOf(ctx context.Context, user string, k bucket.Kind) (decimal.Decimal, error)
	// YieldRateOf returns a bucket's current yield in basis points.
	YieldRateOf(ctx context.Context, k bucket.Kind) (int64, error)
	// Transfer moves amount between two of a user's buckets atomically.
	Transfer(ctx context.Context, user string, from, to bucket.Kind, amount decimal.Decimal) error
	// BucketsWired reports whether all four bucket addresses are set for
	// the user. An unwired user cannot be swept.
	BucketsWired(ctx context.Context, user string) (bool, error)
}
