package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"palmbudget/internal/bucket"
)

// Memory is an in-process Ledger used by the simulate command and tests.
type Memory struct {
	mu       sync.Mutex
	balances map[string]map[bucket.Kind]decimal.Decimal
	yields   map[bucket.Kind]int64
	unwired  map[string]bool
}

// NewMemory builds an empty memory ledger. Users are wired by default;
// use MarkUnwired to model a misconfigured account.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]map[bucket.Kind]decimal.Decimal),
		yields:   make(map[bucket.Kind]int64),
		unwired:  make(map[string]bool),
	}
}

// SetBalance seeds a user's bucket balance.
func (m *Memory) SetBalance(user string, k bucket.Kind, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[user] == nil {
		m.balances[user] = make(map[bucket.Kind]decimal.Decimal)
	}
	m.balances[user][k] = amount
}

// SetYield seeds a bucket's yield rate in basis points.
func (m *Memory) SetYield(k bucket.Kind, bps int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yields[k] = bps
}

// MarkUnwired makes BucketsWired report false for the user.
func (m *Memory) MarkUnwired(user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unwired[user] = true
}

func (m *Memory) BalanceOf(ctx context.Context, user string, k bucket.Kind) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if buckets, ok := m.balances[user]; ok {
		return buckets[k], nil
	}
	return decimal.Zero, nil
}

func (m *Memory) YieldRateOf(ctx context.Context, k bucket.Kind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.yields[k], nil
}

func (m *Memory) BucketsWired(ctx context.Context, user string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.unwired[user], nil
}

// Transfer debits from and credits to under one lock, so a sweep is a
// single atomic step as far as the engine can observe.
func (m *Memory) Transfer(ctx context.Context, user string, from, to bucket.Kind, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unwired[user] {
		return ErrBucketsNotWired
	}

	buckets := m.balances[user]
	if buckets == nil {
		buckets = make(map[bucket.Kind]decimal.Decimal)
		m.balances[user] = buckets
	}

	if buckets[from].LessThan(amount) {
		return ErrInsufficientFunds
	}
	buckets[from] = buckets[from].Sub(amount)
	buckets[to] = buckets[to].Add(amount)
	return nil
}

var _ Ledger = (*Memory)(nil)
