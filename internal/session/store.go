package session

import (
	"context"
	"errors"
	"time"

	"github.com/stemsi/exstem-adaptive/internal/model"
)

// ErrNotFound is returned when no adaptive session exists for a key, e.g.
// after a restart of the in-memory store or once the session was closed.
var ErrNotFound = errors.New("adaptive session not found")

// Store holds one adaptive session per (student, subject, assessment) key
// between start and finalization. Standard attempts are never stored.
type Store interface {
	// Create registers a new session, replacing any stale entry for the key.
	Create(ctx context.Context, s *model.AdaptiveSession) error
	// Get returns a copy of the session; callers persist changes with Save.
	Get(ctx context.Context, key model.SessionKey) (*model.AdaptiveSession, error)
	// Save overwrites an existing session. Returns ErrNotFound if it was closed.
	Save(ctx context.Context, s *model.AdaptiveSession) error
	// Close removes the session. Closing a missing key is not an error.
	Close(ctx context.Context, key model.SessionKey) error
	// Lock serializes work on one key. The returned func releases it.
	Lock(ctx context.Context, key model.SessionKey) (func(), error)
	// Reap removes sessions idle for longer than idle and reports how many.
	Reap(ctx context.Context, idle time.Duration) (int, error)
}
