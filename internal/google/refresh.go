package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/workgate/workgate/internal/logging"
	"github.com/workgate/workgate/internal/session"
)

const (
	// RefreshBuffer is how far ahead of actual expiry a credential is
	// treated as stale. Refreshing proactively avoids racing an in-flight
	// upstream call against a token that just expired.
	RefreshBuffer = 5 * time.Minute

	// DefaultRefreshTimeout bounds the upstream refresh grant call. A
	// timed-out refresh is treated as a refresh failure, not retried.
	DefaultRefreshTimeout = 10 * time.Second
)

// InvalidGrantError means Google rejected the refresh grant; the stored
// refresh token is no longer usable and the user must re-authenticate. This
// is never a transient fault.
type InvalidGrantError struct {
	Err error
}

func (e *InvalidGrantError) Error() string {
	return fmt.Sprintf("oauth refresh grant rejected: %v", e.Err)
}

func (e *InvalidGrantError) Unwrap() error {
	return e.Err
}

// ReauthRequired reports whether an error means the caller must
// re-authenticate rather than retry.
func ReauthRequired(err error) bool {
	var ige *InvalidGrantError
	return errors.As(err, &ige)
}

// Refresher exchanges a refresh token for a fresh credential set.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*session.OAuthCredential, error)
}

// oauth2Refresher implements Refresher against Google's token endpoint via
// x/oauth2.
type oauth2Refresher struct {
	conf *oauth2.Config
}

// NewRefresher creates a Refresher backed by the given client registration.
func NewRefresher(cfg *ClientConfig) Refresher {
	return &oauth2Refresher{conf: cfg.OAuth2()}
}

func (r *oauth2Refresher) Refresh(ctx context.Context, refreshToken string) (*session.OAuthCredential, error) {
	src := r.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return nil, &InvalidGrantError{Err: err}
		}
		return nil, fmt.Errorf("refresh token grant: %w", err)
	}

	cred := &session.OAuthCredential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiryDate:   tok.Expiry,
	}
	// Google only returns a refresh token when it rotates; keep the old one
	// otherwise so the session invariant holds.
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

// Orchestrator guarantees a session's OAuth credential is non-expired before
// use, refreshing and persisting when necessary. Concurrent requests for the
// same session are collapsed into one refresh via singleflight; correctness
// does not depend on this (refresh is idempotent and the store write is
// last-write-wins), it only suppresses redundant upstream calls.
type Orchestrator struct {
	store     session.Store
	refresher Refresher
	group     singleflight.Group
	buffer    time.Duration
	timeout   time.Duration
	observe   RefreshObserver
	logger    *slog.Logger
	now       func() time.Time
}

// RefreshObserver receives the outcome of each upstream refresh attempt.
// Result is one of "success", "failure", or "reauth_required".
type RefreshObserver func(ctx context.Context, result string)

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRefreshBuffer overrides the staleness buffer.
func WithRefreshBuffer(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.buffer = d }
}

// WithRefreshTimeout overrides the upstream refresh call timeout.
func WithRefreshTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithRefreshObserver attaches an observer for refresh outcomes, typically
// a metrics recorder.
func WithRefreshObserver(fn RefreshObserver) OrchestratorOption {
	return func(o *Orchestrator) { o.observe = fn }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates a refresh orchestrator over the given store and
// refresher.
func NewOrchestrator(store session.Store, refresher Refresher, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:     store,
		refresher: refresher,
		buffer:    RefreshBuffer,
		timeout:   DefaultRefreshTimeout,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EnsureFresh returns a non-stale credential for the session, refreshing and
// persisting first when needed. A fresh credential is returned unchanged
// with no I/O. Refresh failures surface as errors the caller must treat as
// re-authentication required when ReauthRequired reports true.
func (o *Orchestrator) EnsureFresh(ctx context.Context, sess *session.Session) (*session.OAuthCredential, error) {
	if sess == nil || sess.Tokens == nil {
		return nil, fmt.Errorf("session has no OAuth credentials")
	}

	if !sess.Tokens.StaleWithin(o.now(), o.buffer) {
		return sess.Tokens, nil
	}

	// Collapse concurrent refreshes for the same session. The winner's
	// result is shared with every waiter.
	v, err, _ := o.group.Do(sess.ID, func() (interface{}, error) {
		return o.refresh(ctx, sess.ID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.OAuthCredential), nil
}

// refresh re-reads the session, re-checks staleness (another request may
// have refreshed while we waited), performs the grant and persists the full
// credential set in a single store write.
func (o *Orchestrator) refresh(ctx context.Context, sessionID string) (*session.OAuthCredential, error) {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("re-read session before refresh: %w", err)
	}
	if sess.Tokens == nil || sess.Tokens.RefreshToken == "" {
		return nil, fmt.Errorf("session %s has no refresh token", sessionID)
	}
	if !sess.Tokens.StaleWithin(o.now(), o.buffer) {
		return sess.Tokens, nil
	}

	refreshCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := o.now()
	cred, err := o.refresher.Refresh(refreshCtx, sess.Tokens.RefreshToken)
	if err != nil {
		if o.observe != nil {
			result := "failure"
			if ReauthRequired(err) {
				result = "reauth_required"
			}
			o.observe(ctx, result)
		}
		o.logger.Warn("token refresh failed",
			logging.SessionID(sessionID),
			logging.UserHash(sess.UserEmail),
			slog.Duration(logging.KeyDuration, o.now().Sub(start)),
			logging.Err(err))
		if refreshCtx.Err() != nil {
			// Timeout behaves like any other refresh failure: the caller
			// forces re-authentication instead of silently retrying.
			return nil, fmt.Errorf("refresh timed out: %w", err)
		}
		return nil, err
	}

	if err := o.store.StoreTokens(ctx, sessionID, cred); err != nil {
		return nil, fmt.Errorf("persist refreshed credential: %w", err)
	}
	if o.observe != nil {
		o.observe(ctx, "success")
	}

	o.logger.Info("refreshed OAuth credential",
		logging.SessionID(sessionID),
		logging.UserHash(sess.UserEmail),
		slog.Time("new_expiry", cred.ExpiryDate),
		slog.Bool("refresh_token_rotated", cred.RefreshToken != sess.Tokens.RefreshToken))
	return cred, nil
}
