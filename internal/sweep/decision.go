// Package sweep implements the month-end sweep state machine: the
// eligibility probe, the atomic execution path, and the pause gate.
package sweep

import (
	"time"

	"github.com/shopspring/decimal"

	"palmbudget/internal/bucket"
)

// Reason classifies the outcome of a sweep evaluation. The distinctions
// matter to callers: some reasons clear on their own with time, some need
// the user to fix their setup, one means the whole system is offline.
type Reason string

const (
	ReasonEligible              Reason = "eligible"
	ReasonSystemPaused          Reason = "system_paused"
	ReasonNotAuthorized         Reason = "not_authorized"
	ReasonInvalidBucketAddress  Reason = "invalid_bucket_address"
	ReasonNotMonthEnd           Reason = "not_month_end"
	ReasonInsufficientSweepable Reason = "insufficient_sweepable"
)

// Retryable reports whether the condition clears without user action:
// the caller should simply try again later.
func (r Reason) Retryable() bool {
	return r == ReasonNotMonthEnd || r == ReasonInsufficientSweepable
}

// UserFixable reports whether the user (or an administrator wiring
// buckets) must change configuration before a sweep can succeed.
func (r Reason) UserFixable() bool {
	return r == ReasonNotAuthorized || r == ReasonInvalidBucketAddress
}

// Decision is the outcome of evaluating one user at one instant. It is
// never persisted; every call recomputes it from live state.
type Decision struct {
	CanExecute  bool
	Reason      Reason
	Source      bucket.Kind
	Destination bucket.Kind
	Amount      decimal.Decimal
}

func reject(reason Reason) Decision {
	return Decision{CanExecute: false, Reason: reason}
}

// Record is the audit entry emitted by every executed sweep.
type Record struct {
	User        string
	Source      bucket.Kind
	Destination bucket.Kind
	Amount      decimal.Decimal
	YieldBps    int64
	Timestamp   time.Time
}
