package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"palmbudget/internal/bucket"
	"palmbudget/internal/calendar"
	"palmbudget/internal/ledger"
	"palmbudget/internal/registry"
)

const (
	testAdmin = "0xadmin"
	testUser  = "0xuser"
)

func at(year, month, day int) time.Time {
	return time.Unix(calendar.Timestamp(calendar.Date{Year: year, Month: month, Day: day}, 12*3600), 0).UTC()
}

func newFixture(t *testing.T) (*Scheduler, *registry.Registry, *ledger.Memory) {
	t.Helper()
	reg := registry.New(registry.Defaults{MinimumBalance: decimal.NewFromInt(10)}, zerolog.Nop())
	mem := ledger.NewMemory()
	pause := NewPauseState(testAdmin, zerolog.Nop())
	return New(reg, mem, pause, zerolog.Nop()), reg, mem
}

type captureRecorder struct {
	records []Record
}

func (c *captureRecorder) RecordSweep(ctx context.Context, rec Record) error {
	c.records = append(c.records, rec)
	return nil
}

func TestEligibleSweepScenario(t *testing.T) {
	s, reg, mem := newFixture(t)
	ctx := context.Background()

	_ = reg.Authorize(ctx, testUser)
	mem.SetBalance(testUser, bucket.Spendable, decimal.NewFromInt(50))
	mem.SetYield(bucket.Savings, 420)
	mem.SetYield(bucket.Growth, 810)
	mem.SetYield(bucket.Bills, 0)

	rec := &captureRecorder{}
	s.SetRecorder(rec)

	now := at(2026, 1, 31) // last day of January

	decision, err := s.Checker(ctx, testUser, now)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.CanExecute || decision.Reason != ReasonEligible {
		t.Fatalf("expected eligible, got %+v", decision)
	}
	if !decision.Amount.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected amount 40, got %s", decision.Amount)
	}
	if decision.Destination != bucket.Growth {
		t.Fatalf("expected growth (highest yield), got %s", decision.Destination)
	}

	executed, err := s.ExecuteSweep(ctx, testUser, now)
	if err != nil {
		t.Fatal(err)
	}
	if !executed.CanExecute || executed.Reason != decision.Reason ||
		executed.Destination != decision.Destination || !executed.Amount.Equal(decision.Amount) {
		t.Fatalf("execute disagreed with checker: %+v vs %+v", executed, decision)
	}

	spendable, _ := mem.BalanceOf(ctx, testUser, bucket.Spendable)
	growth, _ := mem.BalanceOf(ctx, testUser, bucket.Growth)
	if !spendable.Equal(decimal.NewFromInt(10)) || !growth.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("post-sweep balances: spendable=%s growth=%s", spendable, growth)
	}

	if len(rec.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(rec.records))
	}
	r := rec.records[0]
	if r.User != testUser || r.Source != bucket.Spendable || r.Destination != bucket.Growth ||
		!r.Amount.Equal(decimal.NewFromInt(40)) || r.YieldBps != 810 {
		t.Fatalf("unexpected record %+v", r)
	}
}

func TestOutsideWindowScenario(t *testing.T) {
	s, reg, mem := newFixture(t)
	ctx := context.Background()

	_ = reg.Authorize(ctx, testUser)
	mem.SetBalance(testUser, bucket.Spendable, decimal.NewFromInt(50))

	decision, err := s.Checker(ctx, testUser, at(2026, 1, 15))
	if err != nil {
		t.Fatal(err)
	}
	if decision.CanExecute || decision.Reason != ReasonNotMonthEnd {
		t.Fatalf("expected NotMonthEnd, got %+v", decision)
	}
}

func TestRejectionLadderOrder(t *testing.T) {
	s, reg, mem := newFixture(t)
	ctx := context.Background()
	now := at(2026, 1, 15) // outside window, but earlier gates fire first

	// Unauthorized beats the window check.
	decision, err := s.Checker(ctx, testUser, now)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Reason != ReasonNotAuthorized {
		t.Fatalf("expected NotAuthorized, got %s", decision.Reason)
	}

	// Unwired buckets beat the window check too.
	_ = reg.Authorize(ctx, testUser)
	mem.MarkUnwired(testUser)
	decision, _ = s.Checker(ctx, testUser, now)
	if decision.Reason != ReasonInvalidBucketAddress {
		t.Fatalf("expected InvalidBucketAddress, got %s", decision.Reason)
	}
}

func TestInsufficientSweepable(t *testing.T) {
	s, reg, mem := newFixture(t)
	ctx := context.Background()

	_ = reg.Authorize(ctx, testUser)
	mem.SetBalance(testUser, bucket.Spendable, decimal.NewFromInt(10)) // equals the minimum

	decision, err := s.Checker(ctx, testUser, at(2026, 1, 31))
	if err != nil {
		t.Fatal(err)
	}
	if decision.CanExecute || decision.Reason != ReasonInsufficientSweepable {
		t.Fatalf("expected InsufficientSweepable, got %+v", decision)
	}
}

func TestPausePrecedence(t *testing.T) {
	s, reg, mem := newFixture(t)
	ctx := context.Background()

	_ = reg.Authorize(ctx, testUser)
	mem.SetBalance(testUser, bucket.Spendable, decimal.NewFromInt(50))

	if err := s.Pause().Pause(testAdmin); err != nil {
		t.Fatal(err)
	}

	// Paused wins over every other condition, eligible state included.
	decision, err := s.Checker(ctx, testUser, at(2026, 1, 31))
	if err != nil {
		t.Fatal(err)
	}
	if decision.CanExecute || decision.Reason != ReasonSystemPaused {
		t.Fatalf("expected SystemPaused, got %+v", decision)
	}

	// Configuration stays available while paused.
	if err := reg.SetMinimumBalance(ctx, testUser, decimal.NewFromInt(5)); err != nil {
		t.Fatalf("config mutation should work while paused: %v", err)
	}

	if err := s.Pause().Unpause(testAdmin); err != nil {
		t.Fatal(err)
	}
	decision, _ = s.Checker(ctx, testUser, at(2026, 1, 31))
	if !decision.CanExecute {
		t.Fatalf("expected eligible after unpause, got %+v", decision)
	}
}

func TestPauseAdminGate(t *testing.T) {
	s, _, _ := newFixture(t)
	if err := s.Pause().Pause("0xmallory"); err != ErrNotAdmin {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if s.Pause().IsPaused() {
		t.Fatal("failed pause attempt must not change state")
	}
}

func TestDestinationTieBreak(t *testing.T) {
	s, reg, mem := newFixture(t)
	ctx := context.Background()

	_ = reg.Authorize(ctx, testUser)
	mem.SetBalance(testUser, bucket.Spendable, decimal.NewFromInt(50))

	// All equal: Savings wins.
	for _, k := range bucket.DestinationPriority {
		mem.SetYield(k, 500)
	}
	decision, err := s.Checker(ctx, testUser, at(2026, 1, 31))
	if err != nil {
		t.Fatal(err)
	}
	if decision.Destination != bucket.Savings {
		t.Fatalf("equal yields should pick savings, got %s", decision.Destination)
	}

	// Growth and Bills tied above Savings: Growth wins.
	mem.SetYield(bucket.Savings, 100)
	mem.SetYield(bucket.Growth, 500)
	mem.SetYield(bucket.Bills, 500)
	decision, _ = s.Checker(ctx, testUser, at(2026, 1, 31))
	if decision.Destination != bucket.Growth {
		t.Fatalf("growth should beat bills on a tie, got %s", decision.Destination)
	}
}

func TestExecuteRevalidates(t *testing.T) {
	s, reg, mem := newFixture(t)
	ctx := context.Background()

	_ = reg.Authorize(ctx, testUser)
	mem.SetBalance(testUser, bucket.Spendable, decimal.NewFromInt(50))

	decision, err := s.Checker(ctx, testUser, at(2026, 1, 31))
	if err != nil || !decision.CanExecute {
		t.Fatalf("setup: %+v %v", decision, err)
	}

	// Balance drains between check and execute; execute must re-decide.
	mem.SetBalance(testUser, bucket.Spendable, decimal.NewFromInt(10))
	executed, err := s.ExecuteSweep(ctx, testUser, at(2026, 1, 31))
	if err != nil {
		t.Fatal(err)
	}
	if executed.CanExecute || executed.Reason != ReasonInsufficientSweepable {
		t.Fatalf("expected re-validation to reject, got %+v", executed)
	}
}

type brokenTransferLedger struct {
	*ledger.Memory
}

func (b brokenTransferLedger) Transfer(ctx context.Context, user string, from, to bucket.Kind, amount decimal.Decimal) error {
	return errors.New("rpc unavailable")
}

func TestTransferFailureCarriesNoReason(t *testing.T) {
	reg := registry.New(registry.Defaults{MinimumBalance: decimal.NewFromInt(10)}, zerolog.Nop())
	mem := ledger.NewMemory()
	s := New(reg, brokenTransferLedger{mem}, NewPauseState(testAdmin, zerolog.Nop()), zerolog.Nop())

	ctx := context.Background()
	_ = reg.Authorize(ctx, testUser)
	mem.SetBalance(testUser, bucket.Spendable, decimal.NewFromInt(50))

	executed, err := s.ExecuteSweep(ctx, testUser, at(2026, 1, 31))
	if err == nil {
		t.Fatal("expected the transfer error to surface")
	}
	// An execution failure is not an eligibility verdict; the decision
	// must not carry a rejection reason a caller could act on.
	if executed.Reason != "" || executed.CanExecute {
		t.Fatalf("failed transfer must return the zero decision, got %+v", executed)
	}
}

func TestReasonClassification(t *testing.T) {
	if !ReasonNotMonthEnd.Retryable() || !ReasonInsufficientSweepable.Retryable() {
		t.Fatal("time/balance reasons should be retryable")
	}
	if !ReasonNotAuthorized.UserFixable() || !ReasonInvalidBucketAddress.UserFixable() {
		t.Fatal("setup reasons should be user-fixable")
	}
	if ReasonSystemPaused.Retryable() || ReasonSystemPaused.UserFixable() {
		t.Fatal("paused is neither retryable nor user-fixable")
	}
}
