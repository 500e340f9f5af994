package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/workgate/workgate/internal/google"
	"github.com/workgate/workgate/internal/instrumentation"
	"github.com/workgate/workgate/internal/logging"
	"github.com/workgate/workgate/internal/session"
)

const (
	// stateCookieName holds the OAuth CSRF state between login and callback.
	stateCookieName = "workgate_oauth_state"

	// stateTTL bounds how long a login attempt may take.
	stateTTL = 10 * time.Minute

	userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// OAuthFlow implements the browser login flow: redirect to Google,
// exchange the authorization code, resolve the user's email, and persist
// the session with its credential set.
type OAuthFlow struct {
	cfg        *google.ClientConfig
	store      session.Store
	cookieName string
	secure     bool
	metrics    *instrumentation.Metrics
	logger     *slog.Logger

	// userinfoURL is swappable for tests.
	userinfoURL string
}

// SetMetrics attaches a recorder for the active-session gauge.
func (f *OAuthFlow) SetMetrics(m *instrumentation.Metrics) {
	f.metrics = m
}

// NewOAuthFlow creates the login flow handler set.
func NewOAuthFlow(cfg *google.ClientConfig, store session.Store, cookieName string, secureCookies bool, logger *slog.Logger) *OAuthFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthFlow{
		cfg:         cfg,
		store:       store,
		cookieName:  cookieName,
		secure:      secureCookies,
		logger:      logger,
		userinfoURL: userinfoEndpoint,
	}
}

// HandleLogin starts the authorization code flow. A random state is set
// as a short-lived cookie and carried through the redirect.
func (f *OAuthFlow) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := newState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/oauth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   f.secure,
		SameSite: http.SameSiteLaxMode,
	})

	authURL := f.cfg.OAuth2().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback finishes the flow: verify state, exchange the code,
// fetch the user's email, and store an authenticated session.
func (f *OAuthFlow) HandleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}
	clearCookie(w, stateCookieName, "/oauth", f.secure)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		http.Error(w, fmt.Sprintf("authorization denied: %s", errParam), http.StatusBadRequest)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	oauthCfg := f.cfg.OAuth2()
	token, err := oauthCfg.Exchange(r.Context(), code)
	if err != nil {
		f.logger.Error("code exchange failed", logging.Err(err))
		http.Error(w, "failed to exchange authorization code", http.StatusBadGateway)
		return
	}
	if token.RefreshToken == "" {
		http.Error(w, "authorization did not grant offline access", http.StatusBadRequest)
		return
	}

	email, err := f.fetchEmail(r, oauthCfg, token)
	if err != nil {
		f.logger.Error("userinfo lookup failed", logging.Err(err))
		http.Error(w, "failed to resolve user identity", http.StatusBadGateway)
		return
	}

	now := time.Now()
	sess := &session.Session{
		ID:            session.NewID(),
		UserEmail:     email,
		Authenticated: true,
		Tokens: &session.OAuthCredential{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenType:    token.TokenType,
			ExpiryDate:   token.Expiry,
		},
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	if err := f.store.PutSession(r.Context(), sess); err != nil {
		f.logger.Error("failed to persist session", logging.Err(err))
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     f.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   f.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if f.metrics != nil {
		f.metrics.IncrementActiveSessions(r.Context())
	}
	f.logger.Info("session established",
		slog.String(logging.KeySessionID, sess.ID),
		logging.UserHash(email),
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authentication complete</h1><p>You can close this window and return to your agent.</p></body></html>")
}

// HandleLogout deletes the session behind the cookie and clears it.
func (f *OAuthFlow) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(f.cookieName); err == nil && cookie.Value != "" {
		if err := f.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			f.logger.Warn("failed to delete session", logging.Err(err))
		} else if f.metrics != nil {
			f.metrics.DecrementActiveSessions(r.Context())
		}
	}
	clearCookie(w, f.cookieName, "/", f.secure)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Signed out</h1></body></html>")
}

// fetchEmail asks the userinfo endpoint who the token belongs to.
func (f *OAuthFlow) fetchEmail(r *http.Request, cfg *oauth2.Config, token *oauth2.Token) (string, error) {
	client := cfg.Client(r.Context(), token)
	resp, err := client.Get(f.userinfoURL)
	if err != nil {
		return "", fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return "", fmt.Errorf("userinfo response carried no email")
	}
	return info.Email, nil
}

func newState() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func clearCookie(w http.ResponseWriter, name, path string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
