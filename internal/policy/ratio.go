// Package policy holds the 4-way percentage split applied to incoming
// payments and the arithmetic for turning a split into exact per-bucket
// amounts.
package policy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"palmbudget/internal/bucket"
)

var (
	// ErrRatioSum signals a split whose components do not sum to 100.
	ErrRatioSum = errors.New("policy: ratio components must sum to 100")
	// ErrRatioComponent signals a single component above 100.
	ErrRatioComponent = errors.New("policy: ratio component cannot exceed 100")
	// ErrNegativeAmount signals a negative incoming payment amount.
	ErrNegativeAmount = errors.New("policy: amount cannot be negative")
)

var oneHundred = decimal.NewFromInt(100)

// SplitRatio is a user's percentage allocation across the four buckets.
type SplitRatio struct {
	Bills     uint `json:"bills"`
	Savings   uint `json:"savings"`
	Growth    uint `json:"growth"`
	Spendable uint `json:"spendable"`
}

// DefaultRatio is the system-wide preset applied until a user sets their own.
func DefaultRatio() SplitRatio {
	return SplitRatio{Bills: 50, Savings: 20, Growth: 20, Spendable: 10}
}

// Sum totals the four components. Only meaningful once checkComponents
// has passed: four values of at most 100 each cannot wrap a uint.
func (r SplitRatio) Sum() uint {
	return r.Bills + r.Savings + r.Growth + r.Spendable
}

func (r SplitRatio) checkComponents() error {
	for _, pct := range [4]uint{r.Bills, r.Savings, r.Growth, r.Spendable} {
		if pct > 100 {
			return fmt.Errorf("%w: got %d", ErrRatioComponent, pct)
		}
	}
	return nil
}

// Validate accepts the ratio only when every component is at most 100 and
// the components sum to exactly 100. A failing ratio is rejected whole;
// it is never normalised.
func (r SplitRatio) Validate() error {
	if err := r.checkComponents(); err != nil {
		return err
	}
	if r.Sum() != 100 {
		return fmt.Errorf("%w: got %d", ErrRatioSum, r.Sum())
	}
	return nil
}

// Percent returns the percentage assigned to a bucket.
func (r SplitRatio) Percent(k bucket.Kind) uint {
	switch k {
	case bucket.Bills:
		return r.Bills
	case bucket.Savings:
		return r.Savings
	case bucket.Growth:
		return r.Growth
	default:
		return r.Spendable
	}
}

func (r SplitRatio) String() string {
	return fmt.Sprintf("%d/%d/%d/%d", r.Bills, r.Savings, r.Growth, r.Spendable)
}

// Allocation is the exact per-bucket breakdown of one incoming payment.
type Allocation struct {
	Bills     decimal.Decimal
	Savings   decimal.Decimal
	Growth    decimal.Decimal
	Spendable decimal.Decimal
}

// Of returns the amount allocated to a bucket.
func (a Allocation) Of(k bucket.Kind) decimal.Decimal {
	switch k {
	case bucket.Bills:
		return a.Bills
	case bucket.Savings:
		return a.Savings
	case bucket.Growth:
		return a.Growth
	default:
		return a.Spendable
	}
}

// Total sums the four parts.
func (a Allocation) Total() decimal.Decimal {
	return a.Bills.Add(a.Savings).Add(a.Growth).Add(a.Spendable)
}

// Apply splits amount across the buckets by floor division per component.
// The rounding remainder is assigned to Spendable so the four parts always
// sum to exactly amount. Invalid ratios reject before any computation.
func (r SplitRatio) Apply(amount decimal.Decimal) (Allocation, error) {
	if err := r.Validate(); err != nil {
		return Allocation{}, err
	}
	if amount.IsNegative() {
		return Allocation{}, ErrNegativeAmount
	}

	share := func(pct uint) decimal.Decimal {
		return amount.Mul(decimal.NewFromInt(int64(pct))).Div(oneHundred).Floor()
	}

	alloc := Allocation{
		Bills:   share(r.Bills),
		Savings: share(r.Savings),
		Growth:  share(r.Growth),
	}
	spendable := share(r.Spendable)
	remainder := amount.Sub(alloc.Bills).Sub(alloc.Savings).Sub(alloc.Growth).Sub(spendable)
	alloc.Spendable = spendable.Add(remainder)

	return alloc, nil
}

// AutoBalance distributes the shortfall to 100 across the buckets as
// evenly as possible, giving the post-split remainder to the earliest
// buckets in the fixed order Bills, Savings, Growth, Spendable. A ratio
// already summing to 100 is returned unchanged; a ratio above 100 cannot
// be balanced by topping up and is rejected.
func (r SplitRatio) AutoBalance() (SplitRatio, error) {
	if err := r.checkComponents(); err != nil {
		return r, err
	}
	sum := r.Sum()
	if sum == 100 {
		return r, nil
	}
	if sum > 100 {
		return r, fmt.Errorf("%w: got %d", ErrRatioSum, sum)
	}

	deficit := 100 - sum
	each := deficit / 4
	extra := deficit % 4

	parts := [4]uint{r.Bills, r.Savings, r.Growth, r.Spendable}
	for i := range parts {
		parts[i] += each
		if uint(i) < extra {
			parts[i]++
		}
	}

	return SplitRatio{Bills: parts[0], Savings: parts[1], Growth: parts[2], Spendable: parts[3]}, nil
}
