package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-adaptive/internal/session"
)

// SessionReaper periodically drops adaptive sessions abandoned mid-attempt.
type SessionReaper struct {
	store    session.Store
	idle     time.Duration
	interval time.Duration
	log      zerolog.Logger
}

// NewSessionReaper creates a new SessionReaper.
func NewSessionReaper(store session.Store, idle, interval time.Duration, log zerolog.Logger) *SessionReaper {
	return &SessionReaper{
		store:    store,
		idle:     idle,
		interval: interval,
		log:      log.With().Str("component", "session_reaper").Logger(),
	}
}

// Start runs until ctx is cancelled. Call in a goroutine.
func (r *SessionReaper) Start(ctx context.Context) {
	r.log.Info().Dur("idle", r.idle).Dur("interval", r.interval).Msg("SessionReaper started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("SessionReaper stopped")
			return
		case <-ticker.C:
			r.reapOnce(ctx)
		}
	}
}

func (r *SessionReaper) reapOnce(ctx context.Context) int {
	n, err := r.store.Reap(ctx, r.idle)
	if err != nil {
		r.log.Error().Err(err).Msg("Reap failed")
		return 0
	}
	if n > 0 {
		r.log.Info().Int("reaped", n).Msg("Idle sessions removed")
	}
	return n
}
