// Package keeper drives the automation trigger loop: on every scheduled
// tick it probes each authorized user with the sweep checker and executes
// the eligible ones. It is the off-chain counterpart of a checkUpkeep /
// performUpkeep automation pair.
package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"palmbudget/internal/alerting"
	"palmbudget/internal/sweep"
)

// UserSource yields the users to evaluate on each tick.
type UserSource interface {
	AuthorizedUsers(ctx context.Context) ([]string, error)
}

// Locker exposes the advisory lock keeping concurrent keeper instances
// from double-sweeping.
type Locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// PauseSource is the persisted pause flag a second process may toggle;
// the keeper mirrors it into the in-memory gate before each tick.
type PauseSource interface {
	IsPaused(ctx context.Context) (bool, error)
}

// Options tune keeper behaviour.
type Options struct {
	Cron            string
	AdvisoryLockKey int64
	RunOnStart      bool
}

// Keeper owns the periodic evaluation loop.
type Keeper struct {
	opts      Options
	scheduler *sweep.Scheduler
	users     UserSource
	recorder  sweep.Recorder    // optional persistent audit sink
	notifier  alerting.Notifier // optional
	locker    Locker            // optional
	pauseSrc  PauseSource       // optional
	logger    zerolog.Logger
}

// New constructs a Keeper. The keeper installs itself as the scheduler's
// recorder so every executed sweep fans out to storage and notifications.
func New(opts Options, scheduler *sweep.Scheduler, users UserSource, logger zerolog.Logger) *Keeper {
	k := &Keeper{
		opts:      opts,
		scheduler: scheduler,
		users:     users,
		logger:    logger.With().Str("component", "keeper").Logger(),
	}
	scheduler.SetRecorder(k)
	return k
}

// SetRecorder wires the durable audit sink.
func (k *Keeper) SetRecorder(rec sweep.Recorder) { k.recorder = rec }

// SetNotifier wires the notification channel.
func (k *Keeper) SetNotifier(n alerting.Notifier) { k.notifier = n }

// SetLocker wires the advisory locker.
func (k *Keeper) SetLocker(l Locker) { k.locker = l }

// SetPauseSource wires the persisted pause flag.
func (k *Keeper) SetPauseSource(p PauseSource) { k.pauseSrc = p }

// RecordSweep fans an executed sweep out to the audit store and the
// notifier. Notification failures are logged, never propagated: the
// transfer already happened.
func (k *Keeper) RecordSweep(ctx context.Context, rec sweep.Record) error {
	if k.recorder != nil {
		if err := k.recorder.RecordSweep(ctx, rec); err != nil {
			return err
		}
	}
	if k.notifier != nil {
		if err := k.notifier.Notify(ctx, rec); err != nil {
			k.logger.Error().Err(err).Str("user", rec.User).Msg("failed to dispatch sweep notification")
		}
	}
	return nil
}

// Run blocks, ticking on the cron schedule until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(k.opts.Cron, func() {
		if err := k.Tick(ctx, time.Now().UTC()); err != nil {
			k.logger.Error().Err(err).Msg("tick failed")
		}
	}); err != nil {
		return fmt.Errorf("register keeper schedule %q: %w", k.opts.Cron, err)
	}

	if k.opts.RunOnStart {
		if err := k.Tick(ctx, time.Now().UTC()); err != nil {
			k.logger.Error().Err(err).Msg("startup tick failed")
		}
	}

	k.logger.Info().Str("cron", k.opts.Cron).Msg("keeper started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	k.logger.Info().Msg("keeper stopped")
	return ctx.Err()
}

// Tick evaluates every authorized user once at the given instant.
func (k *Keeper) Tick(ctx context.Context, now time.Time) error {
	unlock, proceed, err := k.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		k.logger.Debug().Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	k.syncPause(ctx)

	users, err := k.users.AuthorizedUsers(ctx)
	if err != nil {
		return fmt.Errorf("list authorized users: %w", err)
	}

	var executed, skipped int
	for _, user := range users {
		decision, err := k.scheduler.Checker(ctx, user, now)
		if err != nil {
			k.logger.Error().Err(err).Str("user", user).Msg("checker failed")
			continue
		}
		if !decision.CanExecute {
			if decision.Reason == sweep.ReasonSystemPaused {
				k.logger.Info().Msg("system paused, tick abandoned")
				return nil
			}
			skipped++
			k.logger.Debug().Str("user", user).Str("reason", string(decision.Reason)).Msg("sweep skipped")
			continue
		}

		if _, err := k.scheduler.ExecuteSweep(ctx, user, now); err != nil {
			k.logger.Error().Err(err).Str("user", user).Msg("sweep execution failed")
			continue
		}
		executed++
	}

	k.logger.Info().
		Time("tick", now).
		Int("users", len(users)).
		Int("executed", executed).
		Int("skipped", skipped).
		Msg("tick complete")
	return nil
}

func (k *Keeper) acquireLock(ctx context.Context) (func(), bool, error) {
	if k.opts.AdvisoryLockKey == 0 || k.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := k.locker.TryAdvisoryLock(ctx, k.opts.AdvisoryLockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func (k *Keeper) syncPause(ctx context.Context) {
	if k.pauseSrc == nil {
		return
	}
	paused, err := k.pauseSrc.IsPaused(ctx)
	if err != nil {
		k.logger.Error().Err(err).Msg("failed to read persisted pause flag")
		return
	}
	k.scheduler.Pause().Sync(paused)
}
