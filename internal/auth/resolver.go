package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/workgate/workgate/internal/logging"
	"github.com/workgate/workgate/internal/session"
)

// DefaultCookieName is the session cookie the resolver reads when no custom
// name is configured.
const DefaultCookieName = "workgate_session"

// DefaultStoreTimeout bounds each credential store lookup made while
// resolving a request.
const DefaultStoreTimeout = 5 * time.Second

// Failure is the typed result of an unsuccessful resolution. Reason carries
// the last error encountered; callers map it to a protocol-level
// unauthorized error, never to an internal fault.
type Failure struct {
	Reason string
}

func (f *Failure) Error() string {
	return f.Reason
}

// AuditSink receives security-audit records for failed bearer attempts. The
// resolver reports only an 8-character token prefix, never the full value.
type AuditSink interface {
	BearerRejected(ctx context.Context, tokenPrefix, reason string)
}

// Resolver determines caller identity from an inbound request using bearer
// token or session cookie resolution, in that fixed order. Bearer always
// takes priority; a bearer failure is never surfaced when the cookie path
// succeeds.
type Resolver struct {
	store        session.Store
	cookieName   string
	storeTimeout time.Duration
	audit        AuditSink
	logger       *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) ResolverOption {
	return func(r *Resolver) { r.cookieName = name }
}

// WithStoreTimeout overrides the per-lookup store timeout.
func WithStoreTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.storeTimeout = d }
}

// WithAuditSink attaches a sink for failed-bearer audit records.
func WithAuditSink(sink AuditSink) ResolverOption {
	return func(r *Resolver) { r.audit = sink }
}

// NewResolver creates a resolver backed by the given credential store.
func NewResolver(store session.Store, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		store:        store,
		cookieName:   DefaultCookieName,
		storeTimeout: DefaultStoreTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve determines the caller identity for a request. It tries bearer
// resolution first and falls back to the session cookie; if both fail it
// returns a *Failure carrying the last error string.
func (r *Resolver) Resolve(req *http.Request) (*Principal, error) {
	ctx := req.Context()

	bearer := extractBearer(req)

	if bearer != "" {
		p, err := r.resolveBearer(ctx, bearer)
		if err == nil {
			return p, nil
		}
		// A presented-but-rejected bearer credential is an anomaly signal;
		// record it even when the cookie path rescues the request.
		if r.audit != nil {
			r.audit.BearerRejected(ctx, logging.TokenPrefix(bearer), err.Error())
		}
		r.logger.Debug("bearer resolution failed, trying cookie",
			"token_prefix", logging.TokenPrefix(bearer),
			logging.Err(err))
	}

	p, err := r.resolveCookie(ctx, req)
	if err == nil {
		return p, nil
	}

	return nil, &Failure{Reason: err.Error()}
}

// ResolveOptional behaves like Resolve but admits unauthenticated callers
// with an anonymous principal instead of failing, for endpoints offering
// degraded behavior.
func (r *Resolver) ResolveOptional(req *http.Request) (*Principal, error) {
	p, err := r.Resolve(req)
	if err == nil {
		return p, nil
	}
	return &Principal{Method: MethodAnonymous}, nil
}

// resolveBearer validates a bearer secret against the store and resolves the
// linked session. A token whose session cannot be resolved, or resolves
// unauthenticated, is invalid regardless of the token's own expiry.
func (r *Resolver) resolveBearer(ctx context.Context, token string) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	v, err := r.store.ValidateBearerToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("bearer token validation: %w", err)
	}
	if !v.Valid {
		return nil, fmt.Errorf("bearer token rejected: %s", v.Reason)
	}

	sess, err := r.store.GetSession(ctx, v.SessionID)
	if err != nil {
		return nil, fmt.Errorf("bearer token session lookup: %w", err)
	}
	if !sess.Authenticated {
		return nil, fmt.Errorf("bearer token session %s is not authenticated", sess.ID)
	}

	return &Principal{Session: sess, Method: MethodBearer}, nil
}

// resolveCookie looks up the session named by the request's session cookie.
func (r *Resolver) resolveCookie(ctx context.Context, req *http.Request) (*Principal, error) {
	cookie, err := req.Cookie(r.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, fmt.Errorf("no session cookie present")
	}

	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	sess, err := r.store.GetSession(ctx, cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("cookie session lookup: %w", err)
	}
	if !sess.Authenticated {
		return nil, fmt.Errorf("session %s is not authenticated", sess.ID)
	}

	return &Principal{Session: sess, Method: MethodCookie}, nil
}

// extractBearer pulls the token out of an Authorization header. Returns ""
// when the header is absent or not a Bearer scheme.
func extractBearer(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
