package session

import (
	"context"
	"errors"
	"time"
)

// Store errors. Callers should match with errors.Is; the concrete backends
// wrap these with detail.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTokenNotFound   = errors.New("bearer token not found")
)

// Validation is the outcome of a bearer token lookup. When Valid is false,
// Reason carries a short operator-facing explanation (revoked, expired,
// unknown). Reason never contains the token value.
type Validation struct {
	Valid     bool
	SessionID string
	Reason    string
}

// Store is the durable key-value credential store holding Session and
// BearerToken records. The store is the only mutator of its records; callers
// re-read before deciding to act on a record and write full records back in
// a single call.
type Store interface {
	// GetSession looks up a session by id and bumps its last-access time.
	GetSession(ctx context.Context, id string) (*Session, error)

	// PutSession writes a full session record.
	PutSession(ctx context.Context, s *Session) error

	// DeleteSession removes a session. Deleting an unknown id is not an error.
	DeleteSession(ctx context.Context, id string) error

	// StoreTokens atomically replaces the credential set on a session,
	// keyed by session id. The whole credential is written in one call so a
	// concurrent reader never observes a partially rotated token set.
	StoreTokens(ctx context.Context, id string, cred *OAuthCredential) error

	// PutBearerToken writes a bearer token record keyed by its hash.
	PutBearerToken(ctx context.Context, t *BearerToken) error

	// ValidateBearerToken checks a raw bearer secret against the store.
	// Unknown, revoked and expired tokens all yield Valid=false; only
	// backend failures return an error.
	ValidateBearerToken(ctx context.Context, value string) (*Validation, error)

	// RevokeBearerToken marks the token for the given raw secret revoked.
	// The record is kept; revocation is a flag, not a delete.
	RevokeBearerToken(ctx context.Context, value string) error

	// Ping reports backend reachability, for readiness probes.
	Ping(ctx context.Context) error
}

// TTLs bundles the expiry policy a store applies to its records.
type TTLs struct {
	// Session is the idle lifetime of a session record, measured from its
	// last access.
	Session time.Duration

	// BearerToken is the default lifetime of an issued bearer token.
	BearerToken time.Duration
}

// DefaultTTLs are applied when a store is constructed with zero values.
var DefaultTTLs = TTLs{
	Session:     24 * time.Hour,
	BearerToken: 30 * 24 * time.Hour,
}

func (t TTLs) withDefaults() TTLs {
	if t.Session == 0 {
		t.Session = DefaultTTLs.Session
	}
	if t.BearerToken == 0 {
		t.BearerToken = DefaultTTLs.BearerToken
	}
	return t
}
