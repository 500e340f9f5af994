package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workgate/workgate/internal/auth"
	"github.com/workgate/workgate/internal/breaker"
	"github.com/workgate/workgate/internal/google"
	"github.com/workgate/workgate/internal/rpc"
	"github.com/workgate/workgate/internal/session"
	"github.com/workgate/workgate/internal/tools"
	"github.com/workgate/workgate/internal/workspace"
)

type serverFixture struct {
	server  *Server
	handler http.Handler
	store   session.Store
	session *session.Session
	bearer  string
}

type noopRefresher struct{}

func (noopRefresher) Refresh(ctx context.Context, refreshToken string) (*session.OAuthCredential, error) {
	return &session.OAuthCredential{
		AccessToken: "refreshed",
		ExpiryDate:  time.Now().Add(time.Hour),
	}, nil
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))

	store := session.NewMemoryStore(session.TTLs{}, logger)
	t.Cleanup(store.Close)

	ctx := context.Background()
	now := time.Now()
	sess := &session.Session{
		ID:            session.NewID(),
		UserEmail:     "user@example.com",
		Authenticated: true,
		Tokens: &session.OAuthCredential{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiryDate:   now.Add(time.Hour),
		},
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	require.NoError(t, store.PutSession(ctx, sess))

	bearer, err := session.NewSecret()
	require.NoError(t, err)
	require.NoError(t, store.PutBearerToken(ctx, &session.BearerToken{
		Hash:      session.HashToken(bearer),
		SessionID: sess.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}))

	orchestrator := google.NewOrchestrator(store, noopRefresher{}, logger)
	factory := workspace.NewFactory(logger)
	breakers := breaker.NewRegistry(breaker.Settings{}, logger)
	registry := tools.NewRegistry()
	router := rpc.NewRouter(registry, orchestrator, factory, breakers,
		rpc.ServerInfo{Name: "workgate", Version: "test"}, "/oauth/login", logger)

	resolver := auth.NewResolver(store, logger)

	srv := New(Config{BaseURL: "https://gateway.example.com"}, resolver, router, store, nil, nil, logger)

	return &serverFixture{
		server:  srv,
		handler: srv.Handler(),
		store:   store,
		session: sess,
		bearer:  bearer,
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func mcpRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestMCPUnauthenticatedReturnsFixed401(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(mcpRequest(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	challenge := rec.Header().Get("WWW-Authenticate")
	assert.Contains(t, challenge, "Bearer realm=")
	assert.Contains(t, challenge, "https://gateway.example.com/oauth/login")
	assert.Contains(t, challenge, "https://gateway.example.com/tokens")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Nil(t, decoded["id"])
	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, float64(rpc.CodeAuthRequired), errObj["code"])
	assert.Equal(t, rpc.AuthRequiredMessage, errObj["message"])
	assert.NotEmpty(t, errObj["details"])
}

func TestMCPBearerAuthenticated(t *testing.T) {
	f := newServerFixture(t)

	req := mcpRequest(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	req.Header.Set("Authorization", "Bearer "+f.bearer)

	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.session.ID, rec.Header().Get("Mcp-Session-Id"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Contains(t, decoded, "result")
	assert.NotContains(t, decoded, "error")
}

func TestMCPCookieAuthenticated(t *testing.T) {
	f := newServerFixture(t)

	req := mcpRequest(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: f.session.ID})

	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	result := decoded["result"].(map[string]any)
	info := result["serverInfo"].(map[string]any)
	assert.Equal(t, "workgate", info["name"])
}

func TestMCPRejectedBearerFallsBackToCookie(t *testing.T) {
	f := newServerFixture(t)

	req := mcpRequest(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	req.Header.Set("Authorization", "Bearer wg_not_a_real_token")
	req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: f.session.ID})

	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestHealthEndpoints(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Checks["store"])
}

func TestReadinessDuringShutdown(t *testing.T) {
	f := newServerFixture(t)
	f.server.health.SetReady(false)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProtectedResourceMetadata(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, "https://gateway.example.com/mcp", decoded["resource"])
}

func TestTokenIssueAndUse(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/tokens", strings.NewReader(`{"ttlHours":1}`))
	req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: f.session.ID})

	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var issued tokenIssueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	assert.True(t, strings.HasPrefix(issued.Token, "wg_"))
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt, time.Minute)

	// The fresh token must authenticate an MCP request.
	mcpReq := mcpRequest(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	mcpReq.Header.Set("Authorization", "Bearer "+issued.Token)
	rec = f.do(mcpReq)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenIssueUnauthenticated(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/tokens", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenRevoke(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/tokens/revoke",
		strings.NewReader(`{"token":"`+f.bearer+`"}`))
	req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: f.session.ID})

	rec := f.do(req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The revoked bearer no longer authenticates, and no cookie rescues it.
	mcpReq := mcpRequest(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	mcpReq.Header.Set("Authorization", "Bearer "+f.bearer)
	rec = f.do(mcpReq)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenRevokeUnknownTokenStill204(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/tokens/revoke",
		strings.NewReader(`{"token":"wg_never_issued"}`))
	req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: f.session.ID})

	rec := f.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBodyTooLargeStopsAtLimit(t *testing.T) {
	f := newServerFixture(t)

	big := strings.Repeat("x", maxBodyBytes+1)
	req := mcpRequest(big)
	req.Header.Set("Authorization", "Bearer "+f.bearer)

	rec := f.do(req)

	// The truncated body cannot parse; the router answers with a parse error.
	require.Equal(t, http.StatusOK, rec.Code)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, float64(rpc.CodeParseError), errObj["code"])
}
