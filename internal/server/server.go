// Package server exposes the automation trigger surface over HTTP: a
// read-only checker probe, the execute endpoint, and the admin pause
// switch. The engine defines no wire protocol of its own; this is the
// thin boundary an external upkeep caller drives.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"palmbudget/internal/sweep"
)

const adminHeader = "X-Admin-Identity"

// PauseStore mirrors admin pause toggles into durable storage so other
// processes observe them. Optional.
type PauseStore interface {
	SetPaused(ctx context.Context, paused bool) (bool, error)
}

// Server wraps the sweep scheduler behind HTTP handlers.
type Server struct {
	scheduler  *sweep.Scheduler
	pauseStore PauseStore
	logger     zerolog.Logger
}

// New constructs the HTTP surface.
func New(scheduler *sweep.Scheduler, logger zerolog.Logger) *Server {
	return &Server{
		scheduler: scheduler,
		logger:    logger.With().Str("component", "server").Logger(),
	}
}

// SetPauseStore wires the durable pause mirror.
func (s *Server) SetPauseStore(store PauseStore) { s.pauseStore = store }

// Router assembles the chi route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/sweep/{user}/check", s.handleCheck)
		r.Post("/sweep/{user}/execute", s.handleExecute)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/paused", s.handlePaused)
			r.Post("/pause", s.handlePause(true))
			r.Post("/unpause", s.handlePause(false))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	return r
}

// decisionPayload is the JSON shape shared by check and execute.
type decisionPayload struct {
	CanExecute  bool   `json:"can_execute"`
	Reason      string `json:"reason"`
	Category    string `json:"category"`
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Executed    bool   `json:"executed,omitempty"`
}

func toPayload(d sweep.Decision, executed bool) decisionPayload {
	p := decisionPayload{
		CanExecute: d.CanExecute,
		Reason:     string(d.Reason),
		Category:   categorize(d.Reason),
		Executed:   executed,
	}
	if d.CanExecute {
		p.Source = d.Source.String()
		p.Destination = d.Destination.String()
		p.Amount = d.Amount.String()
	}
	return p
}

// categorize maps reasons onto what the caller should do about them.
func categorize(r sweep.Reason) string {
	switch {
	case r == sweep.ReasonEligible:
		return "eligible"
	case r == sweep.ReasonSystemPaused:
		return "unavailable"
	case r.Retryable():
		return "retry_later"
	case r.UserFixable():
		return "fix_setup"
	default:
		return "unknown"
	}
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	now, err := parseAt(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	decision, err := s.scheduler.Checker(r.Context(), user, now)
	if err != nil {
		s.logger.Error().Err(err).Str("user", user).Msg("checker failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(decision, false))
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	now, err := parseAt(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	decision, err := s.scheduler.ExecuteSweep(r.Context(), user, now)
	if err != nil {
		s.logger.Error().Err(err).Str("user", user).Msg("execute failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if !decision.CanExecute {
		// The decision is valid, the sweep just did not run.
		status = http.StatusConflict
	}
	writeJSON(w, status, toPayload(decision, decision.CanExecute))
}

func (s *Server) handlePaused(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"paused": s.scheduler.Pause().IsPaused()})
}

func (s *Server) handlePause(pause bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get(adminHeader)

		var err error
		if pause {
			err = s.scheduler.Pause().Pause(caller)
		} else {
			err = s.scheduler.Pause().Unpause(caller)
		}
		if errors.Is(err, sweep.ErrNotAdmin) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if s.pauseStore != nil {
			if _, err := s.pauseStore.SetPaused(r.Context(), pause); err != nil {
				s.logger.Error().Err(err).Bool("paused", pause).Msg("failed to persist pause flag")
			}
		}
		writeJSON(w, http.StatusOK, map[string]bool{"paused": pause})
	}
}

func parseAt(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("invalid at parameter, want RFC3339")
	}
	return at.UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
