package app

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"palmbudget/internal/policy"
	"palmbudget/internal/registry"
)

// Authorize enables month-end sweeps for a user.
func (a *App) Authorize(ctx context.Context, user string) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Authorize(ctx, user); err != nil {
		return err
	}
	a.Logger.Info().Str("user", registry.NormalizeUser(user)).Msg("sweep authorization granted")
	return nil
}

// Revoke disables month-end sweeps for a user.
func (a *App) Revoke(ctx context.Context, user string) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Revoke(ctx, user); err != nil {
		return err
	}
	a.Logger.Info().Str("user", registry.NormalizeUser(user)).Msg("sweep authorization revoked")
	return nil
}

// SetMinimumBalance overrides the protected spendable floor for a user.
func (a *App) SetMinimumBalance(ctx context.Context, user string, amount decimal.Decimal) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.SetMinimumBalance(ctx, user, amount); err != nil {
		return err
	}
	a.Logger.Info().
		Str("user", registry.NormalizeUser(user)).
		Str("minimum", amount.String()).
		Msg("minimum balance updated")
	return nil
}

// SetRatio overrides the allocation split for a user.
func (a *App) SetRatio(ctx context.Context, user string, ratio policy.SplitRatio) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.SetRatio(ctx, user, ratio); err != nil {
		return err
	}
	a.Logger.Info().
		Str("user", registry.NormalizeUser(user)).
		Uint("bills", ratio.Bills).
		Uint("savings", ratio.Savings).
		Uint("growth", ratio.Growth).
		Uint("spendable", ratio.Spendable).
		Msg("allocation ratio updated")
	return nil
}

// ListUsers prints every authorized user.
func (a *App) ListUsers(ctx context.Context) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	users, err := store.AuthorizedUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(os.Stdout, "no authorized users")
		return nil
	}
	for _, user := range users {
		fmt.Fprintln(os.Stdout, user)
	}
	return nil
}

// SetPaused flips the persisted emergency gate. A running keeper picks
// the change up on its next tick via the pause sync.
func (a *App) SetPaused(ctx context.Context, paused bool) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	changed, err := store.SetPaused(ctx, paused)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintf(os.Stdout, "already %s\n", pausedWord(paused))
		return nil
	}

	a.Logger.Warn().Bool("paused", paused).Msg("system pause flag changed")
	fmt.Fprintf(os.Stdout, "system is now %s\n", pausedWord(paused))
	return nil
}

func pausedWord(paused bool) string {
	if paused {
		return "paused"
	}
	return "running"
}
