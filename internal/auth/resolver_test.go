package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workgate/workgate/internal/session"
)

type recordingSink struct {
	mu      sync.Mutex
	records []auditRecord
}

type auditRecord struct {
	prefix string
	reason string
}

func (s *recordingSink) BearerRejected(_ context.Context, tokenPrefix, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, auditRecord{prefix: tokenPrefix, reason: reason})
}

func (s *recordingSink) all() []auditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]auditRecord(nil), s.records...)
}

func testStoreWithSession(t *testing.T, authenticated bool) (*session.MemoryStore, *session.Session) {
	t.Helper()
	store := session.NewMemoryStoreWithInterval(session.TTLs{}, time.Hour, slog.Default())
	t.Cleanup(store.Close)

	sess := &session.Session{
		ID:            session.NewID(),
		UserEmail:     "user@example.com",
		Authenticated: authenticated,
	}
	if authenticated {
		sess.Tokens = &session.OAuthCredential{
			AccessToken:  "ya29.access",
			RefreshToken: "1//refresh",
			ExpiryDate:   time.Now().Add(time.Hour),
		}
	}
	require.NoError(t, store.PutSession(context.Background(), sess))
	return store, sess
}

func issueBearer(t *testing.T, store *session.MemoryStore, sessionID string) string {
	t.Helper()
	secret, err := session.NewSecret()
	require.NoError(t, err)
	require.NoError(t, store.PutBearerToken(context.Background(), &session.BearerToken{
		Hash:      session.HashToken(secret),
		SessionID: sessionID,
	}))
	return secret
}

func TestResolve_BearerTakesPriority(t *testing.T) {
	store, sess := testStoreWithSession(t, true)
	secret := issueBearer(t, store, sess.ID)
	sink := &recordingSink{}
	r := NewResolver(store, slog.Default(), WithAuditSink(sink))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	// A cookie for a different (nonexistent) session must not be consulted.
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "other-session"})

	p, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, MethodBearer, p.Method)
	assert.Equal(t, sess.ID, p.SessionID())
	assert.Equal(t, "user@example.com", p.UserEmail())

	// Successful bearer path must not produce an audit record.
	assert.Empty(t, sink.all())
}

func TestResolve_CookieFallback(t *testing.T) {
	store, sess := testStoreWithSession(t, true)
	r := NewResolver(store, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: sess.ID})

	p, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, MethodCookie, p.Method)
	assert.Equal(t, sess.ID, p.SessionID())
}

func TestResolve_RevokedBearerFallsThroughToCookie(t *testing.T) {
	store, sess := testStoreWithSession(t, true)
	secret := issueBearer(t, store, sess.ID)
	require.NoError(t, store.RevokeBearerToken(context.Background(), secret))

	sink := &recordingSink{}
	r := NewResolver(store, slog.Default(), WithAuditSink(sink))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: sess.ID})

	p, err := r.Resolve(req)
	require.NoError(t, err, "cookie must rescue the request; bearer failure is not surfaced")
	assert.Equal(t, MethodCookie, p.Method)

	// The failed bearer attempt is still audited, with a prefix only.
	records := sink.all()
	require.Len(t, records, 1)
	assert.Len(t, records[0].prefix, 8)
	assert.NotContains(t, records[0].reason, secret)
	assert.Contains(t, records[0].reason, "revoked")
}

func TestResolve_BothPathsFail(t *testing.T) {
	store, sess := testStoreWithSession(t, true)
	secret := issueBearer(t, store, sess.ID)
	require.NoError(t, store.RevokeBearerToken(context.Background(), secret))

	r := NewResolver(store, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+secret)

	p, err := r.Resolve(req)
	assert.Nil(t, p)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Contains(t, failure.Reason, "cookie")
}

func TestResolve_UnauthenticatedSessionRejected(t *testing.T) {
	store, sess := testStoreWithSession(t, false)
	r := NewResolver(store, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: sess.ID})

	_, err := r.Resolve(req)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Contains(t, failure.Reason, "not authenticated")
}

func TestResolve_BearerToUnauthenticatedSessionIsInvalid(t *testing.T) {
	store, sess := testStoreWithSession(t, false)
	secret := issueBearer(t, store, sess.ID)
	sink := &recordingSink{}
	r := NewResolver(store, slog.Default(), WithAuditSink(sink))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+secret)

	_, err := r.Resolve(req)
	require.Error(t, err)
	require.Len(t, sink.all(), 1)
}

func TestResolveOptional_AdmitsAnonymous(t *testing.T) {
	store, _ := testStoreWithSession(t, true)
	r := NewResolver(store, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	p, err := r.ResolveOptional(req)
	require.NoError(t, err)
	assert.True(t, p.Anonymous())
	assert.Equal(t, MethodAnonymous, p.Method)
	assert.Empty(t, p.SessionID())
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"no header", "", ""},
		{"bearer token", "Bearer abc123", "abc123"},
		{"case insensitive scheme", "bearer abc123", "abc123"},
		{"basic scheme ignored", "Basic dXNlcjpwYXNz", ""},
		{"bare scheme", "Bearer", ""},
		{"padded token", "Bearer   abc123  ", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractBearer(req))
		})
	}
}
