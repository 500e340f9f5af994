package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/workgate/workgate/internal/auth"
	"github.com/workgate/workgate/internal/google"
	"github.com/workgate/workgate/internal/session"
)

// fakeGoogle stands in for both the token and userinfo endpoints.
func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"email":"user@example.com"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFlowFixture(t *testing.T) (*OAuthFlow, session.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	store := session.NewMemoryStore(session.TTLs{}, logger)
	t.Cleanup(store.Close)

	upstream := fakeGoogle(t)
	cfg := &google.ClientConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/oauth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  upstream.URL + "/auth",
			TokenURL: upstream.URL + "/token",
		},
	}

	flow := NewOAuthFlow(cfg, store, auth.DefaultCookieName, false, logger)
	flow.userinfoURL = upstream.URL + "/userinfo"
	return flow, store
}

func TestLoginRedirectsWithState(t *testing.T) {
	flow, _ := newFlowFixture(t)

	rec := httptest.NewRecorder()
	flow.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/oauth/login", nil))

	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	assert.NotEmpty(t, state)
	assert.Equal(t, "offline", loc.Query().Get("access_type"))
	assert.Equal(t, "consent", loc.Query().Get("prompt"))

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookieName {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie, "state cookie must be set")
	assert.Equal(t, state, stateCookie.Value)
	assert.True(t, stateCookie.HttpOnly)
}

func TestCallbackEstablishesSession(t *testing.T) {
	flow, store := newFlowFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?state=st-1&code=code-1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "st-1"})

	rec := httptest.NewRecorder()
	flow.HandleCallback(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.DefaultCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "session cookie must be set")

	sess, err := store.GetSession(context.Background(), sessionCookie.Value)
	require.NoError(t, err)
	assert.True(t, sess.Authenticated)
	assert.Equal(t, "user@example.com", sess.UserEmail)
	require.NotNil(t, sess.Tokens)
	assert.Equal(t, "at-1", sess.Tokens.AccessToken)
	assert.Equal(t, "rt-1", sess.Tokens.RefreshToken)
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	flow, _ := newFlowFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?state=evil&code=code-1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "st-1"})

	rec := httptest.NewRecorder()
	flow.HandleCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackRejectsMissingStateCookie(t *testing.T) {
	flow, _ := newFlowFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?state=st-1&code=code-1", nil)

	rec := httptest.NewRecorder()
	flow.HandleCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackSurfacesProviderError(t *testing.T) {
	flow, _ := newFlowFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?state=st-1&error=access_denied", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "st-1"})

	rec := httptest.NewRecorder()
	flow.HandleCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
}

func TestCallbackRequiresRefreshToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	store := session.NewMemoryStore(session.TTLs{}, logger)
	t.Cleanup(store.Close)

	// Token endpoint that grants no refresh token.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(upstream.Close)

	cfg := &google.ClientConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint:     oauth2.Endpoint{TokenURL: upstream.URL + "/token"},
	}
	flow := NewOAuthFlow(cfg, store, auth.DefaultCookieName, false, logger)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?state=st-1&code=code-1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "st-1"})

	rec := httptest.NewRecorder()
	flow.HandleCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "offline access")
}

func TestLogoutDeletesSessionAndClearsCookie(t *testing.T) {
	flow, store := newFlowFixture(t)

	ctx := context.Background()
	sess := &session.Session{
		ID:            session.NewID(),
		Authenticated: true,
		Tokens:        &session.OAuthCredential{RefreshToken: "refresh"},
	}
	require.NoError(t, store.PutSession(ctx, sess))

	req := httptest.NewRequest(http.MethodGet, "/oauth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: sess.ID})

	rec := httptest.NewRecorder()
	flow.HandleLogout(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	_, err := store.GetSession(ctx, sess.ID)
	assert.Error(t, err, "session must be gone after logout")

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.DefaultCookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestCallbackResponseIsJSONFreeHTML(t *testing.T) {
	flow, _ := newFlowFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?state=st-1&code=code-1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "st-1"})

	rec := httptest.NewRecorder()
	flow.HandleCallback(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.False(t, json.Valid(rec.Body.Bytes()))
}
