package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "workgate:sess:"
	bearerKeyPrefix  = "workgate:btok:"
)

// RedisStore persists sessions and bearer tokens in Redis with TTL-based
// expiry. Session TTLs slide on access; bearer token TTLs are fixed at issue
// time so the record disappears together with the credential it represents.
type RedisStore struct {
	client *redis.Client
	ttls   TTLs
	logger *slog.Logger
}

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore creates a Redis-backed store. The connection is verified
// lazily; call Ping to check reachability at startup.
func NewRedisStore(cfg RedisConfig, ttls TTLs, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttls:   ttls.withDefaults(),
		logger: logger,
	}
}

// GetSession looks up a session by id, slides its TTL and bumps its
// last-access time.
func (s *RedisStore) GetSession(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", id, err)
	}

	sess.LastAccessedAt = time.Now()
	if err := s.writeSession(ctx, &sess); err != nil {
		// The read succeeded; a failed touch is not fatal for the caller.
		s.logger.Warn("failed to touch session", "session_id", id, "error", err)
	}
	return &sess, nil
}

// PutSession writes a full session record.
func (s *RedisStore) PutSession(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if !sess.Valid() {
		return fmt.Errorf("authenticated session %q has no refresh token", sess.ID)
	}

	cp := *sess
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if cp.LastAccessedAt.IsZero() {
		cp.LastAccessedAt = cp.CreatedAt
	}
	return s.writeSession(ctx, &cp)
}

// DeleteSession removes a session record.
func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// StoreTokens atomically replaces the credential set on a session. The full
// record is written in a single SET; two concurrent refreshers race
// last-write-wins, which is tolerated because refresh is idempotent from the
// session's perspective.
func (s *RedisStore) StoreTokens(ctx context.Context, id string, cred *OAuthCredential) error {
	if cred == nil {
		return fmt.Errorf("credential cannot be nil")
	}

	raw, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return fmt.Errorf("redis get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return fmt.Errorf("decode session %q: %w", id, err)
	}

	tokens := *cred
	sess.Tokens = &tokens
	sess.LastAccessedAt = time.Now()
	if err := s.writeSession(ctx, &sess); err != nil {
		return err
	}

	s.logger.Debug("stored refreshed credential",
		"session_id", id,
		"expiry", cred.ExpiryDate)
	return nil
}

// PutBearerToken writes a bearer token record keyed by its hash.
func (s *RedisStore) PutBearerToken(ctx context.Context, t *BearerToken) error {
	if t == nil || t.Hash == "" {
		return fmt.Errorf("bearer token hash cannot be empty")
	}
	if t.SessionID == "" {
		return fmt.Errorf("bearer token session id cannot be empty")
	}

	cp := *t
	if cp.IssuedAt.IsZero() {
		cp.IssuedAt = time.Now()
	}
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = cp.IssuedAt.Add(s.ttls.BearerToken)
	}

	raw, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("encode bearer token: %w", err)
	}

	// Keep the record around briefly past its expiry so validation can
	// report "expired" instead of "unknown".
	ttl := time.Until(cp.ExpiresAt) + time.Hour
	if err := s.client.Set(ctx, bearerKeyPrefix+cp.Hash, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set bearer token: %w", err)
	}
	return nil
}

// ValidateBearerToken checks a raw bearer secret against the store.
func (s *RedisStore) ValidateBearerToken(ctx context.Context, value string) (*Validation, error) {
	raw, err := s.client.Get(ctx, bearerKeyPrefix+HashToken(value)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Validation{Valid: false, Reason: "unknown token"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get bearer token: %w", err)
	}

	var t BearerToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode bearer token: %w", err)
	}
	if t.Revoked {
		return &Validation{Valid: false, Reason: "token revoked"}, nil
	}
	if t.Expired(time.Now()) {
		return &Validation{Valid: false, Reason: "token expired"}, nil
	}
	return &Validation{Valid: true, SessionID: t.SessionID}, nil
}

// RevokeBearerToken marks the token for the given raw secret revoked. The
// record is rewritten in place with its remaining TTL preserved.
func (s *RedisStore) RevokeBearerToken(ctx context.Context, value string) error {
	key := bearerKeyPrefix + HashToken(value)

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get bearer token: %w", err)
	}

	var t BearerToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return fmt.Errorf("decode bearer token: %w", err)
	}
	t.Revoked = true

	updated, err := json.Marshal(&t)
	if err != nil {
		return fmt.Errorf("encode bearer token: %w", err)
	}
	if err := s.client.Set(ctx, key, updated, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("redis set bearer token: %w", err)
	}

	s.logger.Info("bearer token revoked", "session_id", t.SessionID)
	return nil
}

// Ping verifies backend reachability.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) writeSession(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %q: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.ID, raw, s.ttls.Session).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}
