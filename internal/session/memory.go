package session

import (
	"context"
	"sync"
	"time"

	"github.com/stemsi/exstem-adaptive/internal/model"
)

// MemoryStore is a process-local Store. Sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[model.SessionKey]*model.AdaptiveSession
	locks    map[model.SessionKey]*keyLock
	now      func() time.Time
}

// keyLock is a ctx-aware mutex shared by every holder of one key.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewMemoryStore creates a MemoryStore. A nil clock uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		sessions: make(map[model.SessionKey]*model.AdaptiveSession),
		locks:    make(map[model.SessionKey]*keyLock),
		now:      now,
	}
}

func (m *MemoryStore) Create(_ context.Context, s *model.AdaptiveSession) error {
	c := s.Clone()
	c.LastActivity = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[c.Key()] = c
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key model.SessionKey) (*model.AdaptiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *model.AdaptiveSession) error {
	c := s.Clone()
	c.LastActivity = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[c.Key()]; !ok {
		return ErrNotFound
	}
	m.sessions[c.Key()] = c
	return nil
}

func (m *MemoryStore) Close(_ context.Context, key model.SessionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

func (m *MemoryStore) Lock(ctx context.Context, key model.SessionKey) (func(), error) {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			m.release(key, kl)
		})
	}, nil
}

func (m *MemoryStore) release(key model.SessionKey, kl *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
}

// Reap drops sessions untouched for longer than idle. Sessions whose key is
// currently locked are skipped.
func (m *MemoryStore) Reap(_ context.Context, idle time.Duration) (int, error) {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	reaped := 0
	for key, s := range m.sessions {
		if _, busy := m.locks[key]; busy {
			continue
		}
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, key)
			reaped++
		}
	}
	return reaped, nil
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
