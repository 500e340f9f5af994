package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps sessions and bearer tokens in process memory. It is the
// default backend for single-instance deployments and for tests. A background
// goroutine evicts idle sessions and expired tokens on a fixed interval.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*Session     // session id -> record
	bearerTokens map[string]*BearerToken // token hash -> record
	ttls         TTLs
	logger       *slog.Logger
	done         chan struct{}
	closeOnce    sync.Once
}

// NewMemoryStore creates an in-memory store with the default cleanup interval.
func NewMemoryStore(ttls TTLs, logger *slog.Logger) *MemoryStore {
	return NewMemoryStoreWithInterval(ttls, time.Minute, logger)
}

// NewMemoryStoreWithInterval creates an in-memory store with a custom cleanup
// interval.
func NewMemoryStoreWithInterval(ttls TTLs, cleanupInterval time.Duration, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemoryStore{
		sessions:     make(map[string]*Session),
		bearerTokens: make(map[string]*BearerToken),
		ttls:         ttls.withDefaults(),
		logger:       logger,
		done:         make(chan struct{}),
	}

	go s.cleanupLoop(cleanupInterval)

	return s
}

// GetSession looks up a session by id and bumps its last-access time.
func (s *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	if time.Since(sess.LastAccessedAt) > s.ttls.Session {
		delete(s.sessions, id)
		return nil, fmt.Errorf("session %q expired: %w", id, ErrSessionNotFound)
	}

	sess.LastAccessedAt = time.Now()
	cp := *sess
	if sess.Tokens != nil {
		tokens := *sess.Tokens
		cp.Tokens = &tokens
	}
	return &cp, nil
}

// PutSession writes a full session record.
func (s *MemoryStore) PutSession(_ context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if !sess.Valid() {
		return fmt.Errorf("authenticated session %q has no refresh token", sess.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	if sess.Tokens != nil {
		tokens := *sess.Tokens
		cp.Tokens = &tokens
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if cp.LastAccessedAt.IsZero() {
		cp.LastAccessedAt = cp.CreatedAt
	}
	s.sessions[cp.ID] = &cp
	return nil
}

// DeleteSession removes a session record.
func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// StoreTokens atomically replaces the credential set on a session.
func (s *MemoryStore) StoreTokens(_ context.Context, id string, cred *OAuthCredential) error {
	if cred == nil {
		return fmt.Errorf("credential cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}

	tokens := *cred
	sess.Tokens = &tokens
	sess.LastAccessedAt = time.Now()
	s.logger.Debug("stored refreshed credential",
		"session_id", id,
		"expiry", cred.ExpiryDate)
	return nil
}

// PutBearerToken writes a bearer token record keyed by its hash.
func (s *MemoryStore) PutBearerToken(_ context.Context, t *BearerToken) error {
	if t == nil || t.Hash == "" {
		return fmt.Errorf("bearer token hash cannot be empty")
	}
	if t.SessionID == "" {
		return fmt.Errorf("bearer token session id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	if cp.IssuedAt.IsZero() {
		cp.IssuedAt = time.Now()
	}
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = cp.IssuedAt.Add(s.ttls.BearerToken)
	}
	s.bearerTokens[cp.Hash] = &cp
	return nil
}

// ValidateBearerToken checks a raw bearer secret against the store.
func (s *MemoryStore) ValidateBearerToken(_ context.Context, value string) (*Validation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.bearerTokens[HashToken(value)]
	if !ok {
		return &Validation{Valid: false, Reason: "unknown token"}, nil
	}
	if t.Revoked {
		return &Validation{Valid: false, Reason: "token revoked"}, nil
	}
	if t.Expired(time.Now()) {
		return &Validation{Valid: false, Reason: "token expired"}, nil
	}
	return &Validation{Valid: true, SessionID: t.SessionID}, nil
}

// RevokeBearerToken marks the token for the given raw secret revoked.
func (s *MemoryStore) RevokeBearerToken(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.bearerTokens[HashToken(value)]
	if !ok {
		return ErrTokenNotFound
	}
	t.Revoked = true
	s.logger.Info("bearer token revoked", "session_id", t.SessionID)
	return nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Stats returns record counts, for diagnostics.
func (s *MemoryStore) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"sessions":      len(s.sessions),
		"bearer_tokens": len(s.bearerTokens),
	}
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// cleanupLoop periodically evicts idle sessions and expired or revoked
// bearer tokens. Expiry is re-checked under the write lock; a record may
// have been touched between the scan and the delete.
func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) cleanupExpired() {
	s.mu.RLock()
	var staleSessions, staleTokens []string
	now := time.Now()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastAccessedAt) > s.ttls.Session {
			staleSessions = append(staleSessions, id)
		}
	}
	for hash, t := range s.bearerTokens {
		if t.Expired(now) {
			staleTokens = append(staleTokens, hash)
		}
	}
	s.mu.RUnlock()

	if len(staleSessions) == 0 && len(staleTokens) == 0 {
		return
	}

	s.mu.Lock()
	now = time.Now()
	removed := 0
	for _, id := range staleSessions {
		if sess, ok := s.sessions[id]; ok && now.Sub(sess.LastAccessedAt) > s.ttls.Session {
			delete(s.sessions, id)
			removed++
		}
	}
	for _, hash := range staleTokens {
		if t, ok := s.bearerTokens[hash]; ok && t.Expired(now) {
			delete(s.bearerTokens, hash)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug("cleaned up expired records", "count", removed)
	}
}
