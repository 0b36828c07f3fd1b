package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"palmbudget/internal/bucket"
)

func TestMemoryTransfer(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.SetBalance("0x1", bucket.Spendable, decimal.NewFromInt(50))

	if err := m.Transfer(ctx, "0x1", bucket.Spendable, bucket.Savings, decimal.NewFromInt(40)); err != nil {
		t.Fatal(err)
	}

	spendable, _ := m.BalanceOf(ctx, "0x1", bucket.Spendable)
	savings, _ := m.BalanceOf(ctx, "0x1", bucket.Savings)
	if !spendable.Equal(decimal.NewFromInt(10)) || !savings.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("balances after transfer: spendable=%s savings=%s", spendable, savings)
	}
}

func TestMemoryTransferInsufficient(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.SetBalance("0x1", bucket.Spendable, decimal.NewFromInt(5))

	err := m.Transfer(ctx, "0x1", bucket.Spendable, bucket.Growth, decimal.NewFromInt(6))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// No partial debit.
	spendable, _ := m.BalanceOf(ctx, "0x1", bucket.Spendable)
	if !spendable.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("source balance should be untouched, got %s", spendable)
	}
}

func TestMemoryUnwiredUser(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.MarkUnwired("0x2")

	if wired, _ := m.BucketsWired(ctx, "0x2"); wired {
		t.Fatal("user should report unwired")
	}
	err := m.Transfer(ctx, "0x2", bucket.Spendable, bucket.Savings, decimal.NewFromInt(1))
	if !errors.Is(err, ErrBucketsNotWired) {
		t.Fatalf("expected ErrBucketsNotWired, got %v", err)
	}
}

func TestChainMissingConfig(t *testing.T) {
	c := NewChain(ChainOptions{}, zerolog.Nop())
	if _, err := c.BalanceOf(context.Background(), "0x1", bucket.Spendable); err == nil {
		t.Fatal("missing RPC URL should error")
	}

	c = NewChain(ChainOptions{RPCURL: "http://localhost"}, zerolog.Nop())
	if _, err := c.YieldRateOf(context.Background(), bucket.Savings); err == nil {
		t.Fatal("missing router address should error")
	}

	if err := c.Transfer(context.Background(), "0x1", bucket.Spendable, bucket.Savings, decimal.NewFromInt(1)); err == nil {
		t.Fatal("missing signing key should error")
	}
}
