package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// OAuthCredential holds the Google OAuth token set for one user.
// ExpiryDate is the absolute instant the access token expires.
type OAuthCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Scope        string    `json:"scope,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiryDate   time.Time `json:"expiry_date"`
}

// StaleWithin reports whether the credential expires within the given buffer
// from now. A credential with a zero expiry is always considered stale.
func (c *OAuthCredential) StaleWithin(now time.Time, buffer time.Duration) bool {
	if c.ExpiryDate.IsZero() {
		return true
	}
	return !c.ExpiryDate.After(now.Add(buffer))
}

// Session binds a browser or API caller to an authenticated Google identity
// and its OAuth credentials. A session exists unauthenticated while the OAuth
// handshake is in flight; Authenticated implies Tokens.RefreshToken is set.
type Session struct {
	ID             string           `json:"id"`
	UserEmail      string           `json:"user_email,omitempty"`
	Authenticated  bool             `json:"authenticated"`
	Tokens         *OAuthCredential `json:"tokens,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
}

// Valid reports whether the session satisfies the authenticated-session
// invariant: an authenticated session must carry a refresh token.
func (s *Session) Valid() bool {
	if !s.Authenticated {
		return true
	}
	return s.Tokens != nil && s.Tokens.RefreshToken != ""
}

// BearerToken is an API credential independent of browser cookies. Only the
// sha256 hash of the secret is stored. SessionID is a weak reference: the
// token resolves a session by lookup but does not own it.
type BearerToken struct {
	Hash      string    `json:"hash"`
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

// Expired reports whether the token's own expiry has passed.
func (t *BearerToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// NewID returns a new opaque session identifier.
func NewID() string {
	return uuid.NewString()
}

// NewSecret returns a new opaque bearer token secret. The raw value is
// returned to the caller exactly once; only its hash is ever persisted.
func NewSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "wg_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the hex sha256 digest of a bearer token secret.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
