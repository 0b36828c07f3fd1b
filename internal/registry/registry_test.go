package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"palmbudget/internal/policy"
)

func newTestRegistry() *Registry {
	return New(Defaults{MinimumBalance: decimal.NewFromInt(10)}, zerolog.Nop())
}

func TestAuthorizeRevoke(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	on, err := r.IsAuthorized(ctx, "0xAbC")
	if err != nil || on {
		t.Fatalf("fresh user should not be authorized (on=%v err=%v)", on, err)
	}

	if err := r.Authorize(ctx, "0xAbC"); err != nil {
		t.Fatal(err)
	}
	if on, _ := r.IsAuthorized(ctx, "0xabc"); !on {
		t.Fatal("authorization should be case-insensitive on user identity")
	}

	if err := r.Revoke(ctx, "0xABC"); err != nil {
		t.Fatal(err)
	}
	if on, _ := r.IsAuthorized(ctx, "0xabc"); on {
		t.Fatal("user should be revoked")
	}
}

func TestIdempotentAuthorizeStillEmits(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	var events []Change
	r.Subscribe(func(c Change) { events = append(events, c) })

	_ = r.Authorize(ctx, "0x1")
	_ = r.Authorize(ctx, "0x1")

	if len(events) != 2 {
		t.Fatalf("expected 2 change events, got %d", len(events))
	}
	for _, e := range events {
		if e.Kind != ChangeAuthorization || e.Authorized == nil || !*e.Authorized {
			t.Fatalf("unexpected event %+v", e)
		}
	}
}

func TestMinimumBalanceFallback(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	min, err := r.MinimumBalance(ctx, "0x1")
	if err != nil {
		t.Fatal(err)
	}
	if !min.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected global default 10, got %s", min)
	}

	if err := r.SetMinimumBalance(ctx, "0x1", decimal.NewFromInt(25)); err != nil {
		t.Fatal(err)
	}
	min, _ = r.MinimumBalance(ctx, "0x1")
	if !min.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected override 25, got %s", min)
	}

	if err := r.SetMinimumBalance(ctx, "0x1", decimal.NewFromInt(-1)); !errors.Is(err, ErrNegativeMinimum) {
		t.Fatalf("expected ErrNegativeMinimum, got %v", err)
	}
}

func TestRatioFallbackAndValidation(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	ratio, err := r.Ratio(ctx, "0x1")
	if err != nil {
		t.Fatal(err)
	}
	if ratio != policy.DefaultRatio() {
		t.Fatalf("expected system preset, got %s", ratio)
	}

	if err := r.SetRatio(ctx, "0x1", policy.SplitRatio{Bills: 40, Savings: 30, Growth: 20, Spendable: 5}); !errors.Is(err, policy.ErrRatioSum) {
		t.Fatalf("invalid ratio should be rejected, got %v", err)
	}
	ratio, _ = r.Ratio(ctx, "0x1")
	if ratio != policy.DefaultRatio() {
		t.Fatal("rejected ratio must not be partially applied")
	}

	want := policy.SplitRatio{Bills: 40, Savings: 30, Growth: 20, Spendable: 10}
	if err := r.SetRatio(ctx, "0x1", want); err != nil {
		t.Fatal(err)
	}
	ratio, _ = r.Ratio(ctx, "0x1")
	if ratio != want {
		t.Fatalf("expected %s, got %s", want, ratio)
	}
}

func TestAuthorizedUsersSorted(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	_ = r.Authorize(ctx, "0xc")
	_ = r.Authorize(ctx, "0xa")
	_ = r.Authorize(ctx, "0xb")
	_ = r.Revoke(ctx, "0xb")

	users, err := r.AuthorizedUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0] != "0xa" || users[1] != "0xc" {
		t.Fatalf("unexpected user list %v", users)
	}
}
