package auth

import (
	"context"
	"sync"
	"time"

	"toolgate/pkg/logging"
)

const (
	// DefaultElicitationTTL is how long a pending elicitation or an in-flight
	// session stays usable before the sweeper evicts it.
	DefaultElicitationTTL = 15 * time.Minute

	// DefaultSweepInterval is how often expired entries are evicted.
	DefaultSweepInterval = time.Minute
)

// PendingRequest records one blocked tool call waiting for authorization:
// which provider must be authorized and for which scopes.
type PendingRequest struct {
	Provider  string
	Scopes    []string
	CreatedAt time.Time
}

// ElicitationStore correlates the two phases of the deferred authorization
// protocol. Both maps share the elicitation-id namespace but are populated at
// different points: pending entries are written by the Gate when a call
// blocks, session entries are written by the connect endpoint once the user
// starts the flow. Entries expire after a TTL; nothing in the protocol
// guarantees the user ever follows the connect link, so unswept entries would
// accumulate forever and keep stale flows replayable.
type ElicitationStore struct {
	mu       sync.RWMutex
	pending  map[string]PendingRequest
	sessions map[string]*Session

	ttl           time.Duration
	sweepInterval time.Duration
}

// ElicitationStoreConfig configures the store. Zero values fall back to the
// package defaults.
type ElicitationStoreConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// NewElicitationStore creates an empty store.
func NewElicitationStore(cfg ElicitationStoreConfig) *ElicitationStore {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultElicitationTTL
	}
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &ElicitationStore{
		pending:       make(map[string]PendingRequest),
		sessions:      make(map[string]*Session),
		ttl:           ttl,
		sweepInterval: sweepInterval,
	}
}

// AddPending records a blocked call under a freshly minted elicitation id.
func (s *ElicitationStore) AddPending(id, provider string, scopes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[id] = PendingRequest{
		Provider:  provider,
		Scopes:    append([]string(nil), scopes...),
		CreatedAt: time.Now(),
	}
}

// LookupPending returns the pending request for id. The entry is read, not
// consumed: repeated connect calls for the same id are allowed and each
// regenerates a fresh session. Fails with *UnknownElicitationError if the id
// was never issued or has expired.
func (s *ElicitationStore) LookupPending(id string) (PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.pending[id]
	if !ok || time.Since(req.CreatedAt) > s.ttl {
		return PendingRequest{}, &UnknownElicitationError{ID: id}
	}
	return req, nil
}

// PutSession stores the in-flight authorization session for its elicitation
// id, replacing any previous session for the same id. Only the most recently
// stored session is honored for completion.
func (s *ElicitationStore) PutSession(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	s.sessions[session.ID] = session
}

// LookupSession returns the in-flight session for id. Fails with
// *UnknownSessionError if no session exists, which covers callbacks arriving
// before connect has run as well as expired and forged ids.
func (s *ElicitationStore) LookupSession(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || time.Since(session.CreatedAt) > s.ttl {
		return nil, &UnknownSessionError{ID: id}
	}
	return session, nil
}

// Complete removes both the pending entry and the session for id. Called
// after FinishAuth succeeds; the id is terminal from then on.
func (s *ElicitationStore) Complete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, id)
	delete(s.sessions, id)
}

// Len reports the current number of pending and session entries.
func (s *ElicitationStore) Len() (pending, sessions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.pending), len(s.sessions)
}

// StartSweeper runs the eviction loop until ctx is canceled.
func (s *ElicitationStore) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

// sweep evicts entries older than the TTL.
func (s *ElicitationStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, req := range s.pending {
		if now.Sub(req.CreatedAt) > s.ttl {
			delete(s.pending, id)
			evicted++
		}
	}
	for id, session := range s.sessions {
		if now.Sub(session.CreatedAt) > s.ttl {
			delete(s.sessions, id)
			evicted++
		}
	}

	if evicted > 0 {
		logging.Debug("ElicitationStore", "Evicted %d expired authorization entries", evicted)
	}
}
