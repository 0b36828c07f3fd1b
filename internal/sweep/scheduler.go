package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"palmbudget/internal/bucket"
	"palmbudget/internal/calendar"
	"palmbudget/internal/ledger"
)

// AuthorizationSource is what the scheduler needs to know about a user's
// sweep configuration. Both the in-memory registry and the Postgres store
// satisfy it.
type AuthorizationSource interface {
	IsAuthorized(ctx context.Context, user string) (bool, error)
	MinimumBalance(ctx context.Context, user string) (decimal.Decimal, error)
}

// Recorder receives the audit record of every executed sweep.
type Recorder interface {
	RecordSweep(ctx context.Context, rec Record) error
}

// Scheduler evaluates and executes sweeps. Evaluations for different
// users run fully in parallel; for one user they serialize on a per-user
// lock so no two sweeps interleave.
type Scheduler struct {
	auth   AuthorizationSource
	ledger ledger.Ledger
	pause  *PauseState
	logger zerolog.Logger

	recorder Recorder // optional

	locksMux sync.Mutex
	locks    map[string]*sync.Mutex
}

// New constructs a Scheduler.
func New(auth AuthorizationSource, lgr ledger.Ledger, pause *PauseState, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		auth:   auth,
		ledger: lgr,
		pause:  pause,
		logger: logger.With().Str("component", "sweep").Logger(),
		locks:  make(map[string]*sync.Mutex),
	}
}

// SetRecorder wires the audit sink. Optional; without one, executed
// sweeps are only logged.
func (s *Scheduler) SetRecorder(rec Recorder) {
	s.recorder = rec
}

// Pause exposes the gate for administration surfaces.
func (s *Scheduler) Pause() *PauseState {
	return s.pause
}

// Checker is the pure read-only probe used by external automation before
// committing to ExecuteSweep. It decides exactly as ExecuteSweep would at
// the same instant; balances may still change in between, which is why
// ExecuteSweep re-validates everything.
func (s *Scheduler) Checker(ctx context.Context, user string, now time.Time) (Decision, error) {
	return s.evaluate(ctx, user, now)
}

// ExecuteSweep re-validates all conditions under the user's lock and, if
// eligible, performs the transfer as one atomic step. Nothing mutates on
// a rejection.
func (s *Scheduler) ExecuteSweep(ctx context.Context, user string, now time.Time) (Decision, error) {
	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	decision, err := s.evaluate(ctx, user, now)
	if err != nil || !decision.CanExecute {
		return decision, err
	}

	// A failed transfer is an execution error, not an eligibility verdict:
	// the zero Decision carries no reason for callers to misread.
	if err := s.ledger.Transfer(ctx, user, decision.Source, decision.Destination, decision.Amount); err != nil {
		return Decision{}, fmt.Errorf("transfer: %w", err)
	}

	yield, err := s.ledger.YieldRateOf(ctx, decision.Destination)
	if err != nil {
		yield = 0 // transfer already landed; the record just loses the rate
	}

	rec := Record{
		User:        user,
		Source:      decision.Source,
		Destination: decision.Destination,
		Amount:      decision.Amount,
		YieldBps:    yield,
		Timestamp:   now.UTC(),
	}

	s.logger.Info().
		Str("user", user).
		Str("source", rec.Source.String()).
		Str("destination", rec.Destination.String()).
		Str("amount", rec.Amount.String()).
		Int64("yield_bps", rec.YieldBps).
		Msg("sweep executed")

	if s.recorder != nil {
		if recErr := s.recorder.RecordSweep(ctx, rec); recErr != nil {
			s.logger.Error().Err(recErr).Str("user", user).Msg("failed to persist sweep record")
		}
	}

	return decision, nil
}

// evaluate walks the rejection ladder in its fixed order: pause, then
// authorization, then bucket wiring, then the calendar window, then the
// sweepable surplus.
func (s *Scheduler) evaluate(ctx context.Context, user string, now time.Time) (Decision, error) {
	if s.pause.IsPaused() {
		return reject(ReasonSystemPaused), nil
	}

	authorized, err := s.auth.IsAuthorized(ctx, user)
	if err != nil {
		return Decision{}, fmt.Errorf("read authorization: %w", err)
	}
	if !authorized {
		return reject(ReasonNotAuthorized), nil
	}

	wired, err := s.ledger.BucketsWired(ctx, user)
	if err != nil {
		return Decision{}, fmt.Errorf("read bucket wiring: %w", err)
	}
	if !wired {
		return reject(ReasonInvalidBucketAddress), nil
	}

	open, err := calendar.IsMonthEnd(now.Unix())
	if err != nil {
		return Decision{}, fmt.Errorf("month-end window: %w", err)
	}
	if !open {
		return reject(ReasonNotMonthEnd), nil
	}

	spendable, err := s.ledger.BalanceOf(ctx, user, bucket.Spendable)
	if err != nil {
		return Decision{}, fmt.Errorf("read spendable balance: %w", err)
	}
	minimum, err := s.auth.MinimumBalance(ctx, user)
	if err != nil {
		return Decision{}, fmt.Errorf("read minimum balance: %w", err)
	}

	amount := spendable.Sub(minimum)
	if !amount.IsPositive() {
		return reject(ReasonInsufficientSweepable), nil
	}

	destination, err := s.pickDestination(ctx)
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		CanExecute:  true,
		Reason:      ReasonEligible,
		Source:      bucket.Spendable,
		Destination: destination,
		Amount:      amount,
	}, nil
}

// pickDestination selects the highest-yield bucket. Ties resolve by the
// fixed priority Savings > Growth > Bills; iterating in priority order
// and requiring a strictly greater yield to displace the leader makes
// the earlier bucket win every tie.
func (s *Scheduler) pickDestination(ctx context.Context) (bucket.Kind, error) {
	best := bucket.DestinationPriority[0]
	bestYield, err := s.ledger.YieldRateOf(ctx, best)
	if err != nil {
		return 0, fmt.Errorf("read yield for %s: %w", best, err)
	}

	for _, k := range bucket.DestinationPriority[1:] {
		yield, err := s.ledger.YieldRateOf(ctx, k)
		if err != nil {
			return 0, fmt.Errorf("read yield for %s: %w", k, err)
		}
		if yield > bestYield {
			best, bestYield = k, yield
		}
	}
	return best, nil
}

func (s *Scheduler) userLock(user string) *sync.Mutex {
	s.locksMux.Lock()
	defer s.locksMux.Unlock()
	lock, ok := s.locks[user]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[user] = lock
	}
	return lock
}
