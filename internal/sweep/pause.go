package sweep

import (
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrNotAdmin rejects pause toggles from anyone but the configured
// administrator identity.
var ErrNotAdmin = errors.New("sweep: caller is not the administrator")

// PauseState is the process-wide execution gate. Toggles are
// compare-and-set so an in-flight sweep can never observe a half-applied
// flag; reads are plain atomic loads done before every execution attempt.
// Pausing blocks execution only; configuration and read operations stay
// available.
type PauseState struct {
	admin  string
	paused atomic.Bool
	logger zerolog.Logger
}

// NewPauseState builds the gate. The admin identity is a capability
// passed at construction, not an ownership mixin: callers prove identity
// per call.
func NewPauseState(admin string, logger zerolog.Logger) *PauseState {
	return &PauseState{admin: admin, logger: logger.With().Str("component", "pause").Logger()}
}

// Pause disables all sweep execution. Idempotent: pausing an already
// paused system succeeds without a state transition.
func (p *PauseState) Pause(caller string) error {
	if err := p.checkAdmin(caller); err != nil {
		return err
	}
	if p.paused.CompareAndSwap(false, true) {
		p.logger.Warn().Str("admin", caller).Msg("system paused")
	}
	return nil
}

// Unpause re-enables sweep execution.
func (p *PauseState) Unpause(caller string) error {
	if err := p.checkAdmin(caller); err != nil {
		return err
	}
	if p.paused.CompareAndSwap(true, false) {
		p.logger.Info().Str("admin", caller).Msg("system unpaused")
	}
	return nil
}

// IsPaused reports the gate state. Readable by anyone.
func (p *PauseState) IsPaused() bool {
	return p.paused.Load()
}

// Sync force-sets the flag from an external source of truth (the
// persisted flag a second process may have toggled). Keeper use only.
func (p *PauseState) Sync(paused bool) {
	if p.paused.Swap(paused) != paused {
		p.logger.Info().Bool("paused", paused).Msg("pause flag synced from store")
	}
}

func (p *PauseState) checkAdmin(caller string) error {
	if p.admin == "" || caller != p.admin {
		return ErrNotAdmin
	}
	return nil
}
