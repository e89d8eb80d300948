package core

import (
	"context"
	"sync"
	"time"
)

const sessionTTL = 4 * time.Hour

// SessionStore is a thread-safe in-memory store for open reconciliation
// sessions with TTL expiry. Sessions are ephemeral by design: discarding or
// losing one has no persisted side effects, so process memory is the right
// home. It also enforces the one-open-session-per-operator rule.
type SessionStore struct {
	mu         sync.Mutex
	sessions   map[string]*ReconciliationSession
	byOperator map[string]string // operator key -> session id
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:   make(map[string]*ReconciliationSession),
		byOperator: make(map[string]string),
	}
}

// Put registers a newly opened session. Returns ErrOpenSessionExists when
// the operator already has one open.
func (s *SessionStore) Put(sess *ReconciliationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.byOperator[sess.OperatorKey]; ok {
		if existing, ok := s.sessions[existingID]; ok && !s.expired(existing) {
			return ErrOpenSessionExists
		}
		delete(s.sessions, existingID)
	}
	s.sessions[sess.ID] = sess
	s.byOperator[sess.OperatorKey] = sess.ID
	return nil
}

// Get returns the open session with the given id.
func (s *SessionStore) Get(id string) (*ReconciliationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		if ok {
			s.removeLocked(sess)
		}
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Remove drops a session after a terminal transition (confirm or discard).
func (s *SessionStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		s.removeLocked(sess)
	}
}

func (s *SessionStore) removeLocked(sess *ReconciliationSession) {
	delete(s.sessions, sess.ID)
	if s.byOperator[sess.OperatorKey] == sess.ID {
		delete(s.byOperator, sess.OperatorKey)
	}
}

func (s *SessionStore) expired(sess *ReconciliationSession) bool {
	return time.Since(sess.UpdatedAt) > sessionTTL
}

// StartPurge starts a background goroutine that evicts expired sessions
// every 15 minutes until ctx is cancelled.
func (s *SessionStore) StartPurge(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				for _, sess := range s.sessions {
					if s.expired(sess) {
						s.removeLocked(sess)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}
