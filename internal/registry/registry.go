// Package registry tracks per-user sweep configuration: the auto-sweep
// opt-in flag, the minimum spendable balance left untouched by a sweep,
// and the payment split ratio. Mutations stay available while the system
// is paused; pause only gates execution.
package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"palmbudget/internal/policy"
)

// ErrNegativeMinimum rejects a negative minimum-balance override.
var ErrNegativeMinimum = errors.New("registry: minimum balance cannot be negative")

// ChangeKind names the field a change event touched.
type ChangeKind string

const (
	ChangeAuthorization  ChangeKind = "authorization"
	ChangeMinimumBalance ChangeKind = "minimum_balance"
	ChangeSplitRatio     ChangeKind = "split_ratio"
)

// Change is the audit record emitted by every mutation, carrying the new
// value. Idempotent repeats still emit: the trail records intent, not
// just transitions.
type Change struct {
	User           string
	Kind           ChangeKind
	Authorized     *bool
	MinimumBalance *decimal.Decimal
	Ratio          *policy.SplitRatio
	At             time.Time
}

// Observer receives change events synchronously under the mutation.
type Observer func(Change)

// Registry is the in-memory authorization registry. A Postgres-backed
// twin lives in internal/storage; this one backs simulations, tests, and
// DB-less runs.
type Registry struct {
	mu         sync.RWMutex
	defaults   Defaults
	authorized map[string]bool
	minimums   map[string]decimal.Decimal
	ratios     map[string]policy.SplitRatio
	observers  []Observer
	logger     zerolog.Logger
}

// Defaults are the system-wide fallbacks for users who never configured
// their own values.
type Defaults struct {
	MinimumBalance decimal.Decimal
	Ratio          policy.SplitRatio
}

// New builds an empty registry.
func New(defaults Defaults, logger zerolog.Logger) *Registry {
	if defaults.Ratio.Sum() == 0 {
		defaults.Ratio = policy.DefaultRatio()
	}
	return &Registry{
		defaults:   defaults,
		authorized: make(map[string]bool),
		minimums:   make(map[string]decimal.Decimal),
		ratios:     make(map[string]policy.SplitRatio),
		logger:     logger.With().Str("component", "registry").Logger(),
	}
}

// Subscribe registers an observer for change events.
func (r *Registry) Subscribe(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

// NormalizeUser canonicalises a user identity for map keys.
func NormalizeUser(user string) string {
	return strings.ToLower(strings.TrimSpace(user))
}

// Authorize opts the user into automatic sweeping. Repeated calls are
// state no-ops but still emit a change event.
func (r *Registry) Authorize(ctx context.Context, user string) error {
	return r.setAuthorized(user, true)
}

// Revoke opts the user out of automatic sweeping.
func (r *Registry) Revoke(ctx context.Context, user string) error {
	return r.setAuthorized(user, false)
}

func (r *Registry) setAuthorized(user string, enabled bool) error {
	user = NormalizeUser(user)
	r.mu.Lock()
	r.authorized[user] = enabled
	r.mu.Unlock()

	r.logger.Info().Str("user", user).Bool("authorized", enabled).Msg("authorization changed")
	r.emit(Change{User: user, Kind: ChangeAuthorization, Authorized: &enabled, At: time.Now().UTC()})
	return nil
}

// IsAuthorized reports the user's opt-in flag.
func (r *Registry) IsAuthorized(ctx context.Context, user string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.authorized[NormalizeUser(user)], nil
}

// SetMinimumBalance records a per-user minimum-balance override.
func (r *Registry) SetMinimumBalance(ctx context.Context, user string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeMinimum
	}
	user = NormalizeUser(user)
	r.mu.Lock()
	r.minimums[user] = amount
	r.mu.Unlock()

	r.logger.Info().Str("user", user).Str("minimum", amount.String()).Msg("minimum balance changed")
	r.emit(Change{User: user, Kind: ChangeMinimumBalance, MinimumBalance: &amount, At: time.Now().UTC()})
	return nil
}

// MinimumBalance returns the user's override, falling back to the global
// default when unset.
func (r *Registry) MinimumBalance(ctx context.Context, user string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if min, ok := r.minimums[NormalizeUser(user)]; ok {
		return min, nil
	}
	return r.defaults.MinimumBalance, nil
}

// SetRatio stores the user's split ratio after validation; an invalid
// ratio is rejected whole.
func (r *Registry) SetRatio(ctx context.Context, user string, ratio policy.SplitRatio) error {
	if err := ratio.Validate(); err != nil {
		return err
	}
	user = NormalizeUser(user)
	r.mu.Lock()
	r.ratios[user] = ratio
	r.mu.Unlock()

	r.logger.Info().Str("user", user).Str("ratio", ratio.String()).Msg("split ratio changed")
	r.emit(Change{User: user, Kind: ChangeSplitRatio, Ratio: &ratio, At: time.Now().UTC()})
	return nil
}

// Ratio returns the user's split, falling back to the system preset.
func (r *Registry) Ratio(ctx context.Context, user string) (policy.SplitRatio, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ratio, ok := r.ratios[NormalizeUser(user)]; ok {
		return ratio, nil
	}
	return r.defaults.Ratio, nil
}

// AuthorizedUsers lists every currently opted-in user, sorted for
// deterministic keeper iteration.
func (r *Registry) AuthorizedUsers(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	users := make([]string, 0, len(r.authorized))
	for user, on := range r.authorized {
		if on {
			users = append(users, user)
		}
	}
	r.mu.RUnlock()

	sort.Strings(users)
	return users, nil
}

func (r *Registry) emit(change Change) {
	r.mu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	for _, obs := range observers {
		obs(change)
	}
}
