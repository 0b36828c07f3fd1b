package app

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"palmbudget/internal/bucket"
	"palmbudget/internal/calendar"
	"palmbudget/internal/ledger"
	"palmbudget/internal/registry"
	"palmbudget/internal/sweep"
)

// Simulate runs one sweep evaluation against an in-memory ledger seeded
// from the command line. Nothing touches the chain or the database.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.User == "" {
		return fmt.Errorf("user is required")
	}

	reg := registry.New(registry.Defaults{
		MinimumBalance: decimal.NewFromFloat(a.Config.Policy.DefaultMinimumBalance),
		Ratio:          a.defaultRatio(),
	}, a.Logger)
	if err := reg.Authorize(ctx, opts.User); err != nil {
		return err
	}
	if opts.Minimum.IsPositive() {
		if err := reg.SetMinimumBalance(ctx, opts.User, opts.Minimum); err != nil {
			return err
		}
	}

	mem := ledger.NewMemory()
	mem.SetBalance(opts.User, bucket.Spendable, opts.Spendable)
	for name, bps := range opts.YieldBps {
		kind, err := bucket.Parse(name)
		if err != nil {
			return fmt.Errorf("yield for %q: %w", name, err)
		}
		mem.SetYield(kind, bps)
	}

	pause := sweep.NewPauseState(a.Config.Admin.Identity, a.Logger)
	scheduler := sweep.New(reg, mem, pause, a.Logger)

	decision, err := scheduler.Checker(ctx, opts.User, opts.At)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "at:          %s\n", opts.At.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(os.Stdout, "user:        %s\n", registry.NormalizeUser(opts.User))
	fmt.Fprintf(os.Stdout, "spendable:   %s\n", opts.Spendable.String())
	fmt.Fprintf(os.Stdout, "minimum:     %s\n", mustMinimum(ctx, reg, opts.User).String())

	if !decision.CanExecute {
		fmt.Fprintf(os.Stdout, "result:      rejected (%s)\n", decision.Reason)
		if decision.Reason == sweep.ReasonNotMonthEnd {
			if wait, werr := calendar.UntilWindow(opts.At.Unix()); werr == nil {
				fmt.Fprintf(os.Stdout, "window in:   %dd\n", wait/calendar.SecondsPerDay)
			}
		}
		return nil
	}

	fmt.Fprintf(os.Stdout, "result:      eligible\n")
	fmt.Fprintf(os.Stdout, "sweep:       %s %s -> %s\n", decision.Amount.String(), decision.Source, decision.Destination)

	ratio, err := reg.Ratio(ctx, opts.User)
	if err != nil {
		return err
	}
	alloc, err := ratio.Apply(decision.Amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "split %d/%d/%d/%d of the swept amount would land as:\n",
		ratio.Bills, ratio.Savings, ratio.Growth, ratio.Spendable)
	for _, k := range bucket.Kinds {
		fmt.Fprintf(os.Stdout, "  %-10s %s\n", k.String(), alloc.Of(k).String())
	}

	return nil
}

func mustMinimum(ctx context.Context, reg *registry.Registry, user string) decimal.Decimal {
	min, err := reg.MinimumBalance(ctx, user)
	if err != nil {
		return decimal.Zero
	}
	return min
}
