package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/workgate/workgate/internal/auth"
	"github.com/workgate/workgate/internal/logging"
	"github.com/workgate/workgate/internal/rpc"
	"github.com/workgate/workgate/internal/session"
)

const (
	// DefaultAddr is the default address for the gateway server.
	DefaultAddr = ":8080"

	// DefaultReadTimeout bounds how long a request body read may take.
	DefaultReadTimeout = 30 * time.Second

	// DefaultWriteTimeout bounds how long a response write may take.
	DefaultWriteTimeout = 60 * time.Second

	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 120 * time.Second

	// maxBodyBytes caps a JSON-RPC request body.
	maxBodyBytes = 4 << 20
)

// Config holds the gateway server configuration.
type Config struct {
	// Addr is the address to bind to (e.g., ":8080").
	Addr string

	// BaseURL is the externally reachable base URL, used in OAuth
	// redirects and the protected-resource metadata.
	BaseURL string

	// CookieName is the session cookie name.
	CookieName string

	// SecureCookies marks session cookies Secure; disable only for
	// local plain-HTTP development.
	SecureCookies bool
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost" + c.Addr
	}
	if c.CookieName == "" {
		c.CookieName = auth.DefaultCookieName
	}
	return c
}

// AuditSink receives authentication outcomes for the audit log.
type AuditSink interface {
	auth.AuditSink
	AuthSucceeded(ctx context.Context, method, sessionID string)
	AuthFailed(ctx context.Context, reason string)
}

// Server is the gateway HTTP server: the /mcp JSON-RPC endpoint behind
// the dual-auth resolver, plus the OAuth and token-management endpoints
// that mint the credentials /mcp consumes.
type Server struct {
	cfg      Config
	resolver *auth.Resolver
	router   *rpc.Router
	store    session.Store
	flow     *OAuthFlow
	health   *HealthChecker
	audit    AuditSink
	logger   *slog.Logger

	httpServer *http.Server
}

// New creates a gateway server. flow may be nil when OAuth login is not
// configured; the token endpoints and /mcp still work with existing
// sessions.
func New(cfg Config, resolver *auth.Resolver, router *rpc.Router, store session.Store, flow *OAuthFlow, audit AuditSink, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg.withDefaults(),
		resolver: resolver,
		router:   router,
		store:    store,
		flow:     flow,
		audit:    audit,
		logger:   logger,
	}
	s.health = NewHealthChecker(store)
	return s
}

// Handler builds the full route table with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /mcp", s.handleMCP)
	mux.HandleFunc("GET /healthz", s.health.HandleLiveness)
	mux.HandleFunc("GET /readyz", s.health.HandleReadiness)
	mux.HandleFunc("GET /.well-known/oauth-protected-resource", s.handleProtectedResourceMetadata)

	if s.flow != nil {
		mux.HandleFunc("GET /oauth/login", s.flow.HandleLogin)
		mux.HandleFunc("GET /oauth/callback", s.flow.HandleCallback)
		mux.HandleFunc("GET /oauth/logout", s.flow.HandleLogout)
		mux.HandleFunc("POST /oauth/logout", s.flow.HandleLogout)
	}

	mux.HandleFunc("POST /tokens", s.handleTokenIssue)
	mux.HandleFunc("POST /tokens/revoke", s.handleTokenRevoke)

	return securityHeaders(mux)
}

// Start runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway server listening", slog.String("addr", s.cfg.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown gateway server: %w", err)
	}
	return <-errCh
}

// handleMCP resolves the principal, then hands the body to the JSON-RPC
// router. Every authentication failure produces the same 401 envelope.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	principal, err := s.resolver.Resolve(r)
	if err != nil {
		s.writeAuthRequired(w, r, err)
		return
	}
	if s.audit != nil {
		s.audit.AuthSucceeded(r.Context(), string(principal.Method), principal.SessionID())
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeRPC(w, http.StatusBadRequest, &rpc.Response{
			JSONRPC: rpc.Version,
			Error:   &rpc.ErrorObject{Code: rpc.CodeParseError, Message: "failed to read request body"},
		})
		return
	}

	resp := s.router.Handle(r.Context(), principal, body)

	w.Header().Set("Mcp-Session-Id", principal.SessionID())
	writeRPC(w, http.StatusOK, resp)
}

// writeAuthRequired emits the fixed 401 challenge and body.
func (s *Server) writeAuthRequired(w http.ResponseWriter, r *http.Request, err error) {
	reason := "authentication required"
	var failure *auth.Failure
	if errors.As(err, &failure) {
		reason = failure.Reason
	}
	if s.audit != nil {
		s.audit.AuthFailed(r.Context(), reason)
	}
	s.logger.Debug("request rejected", logging.Err(err))

	w.Header().Set("WWW-Authenticate", fmt.Sprintf(
		`Bearer realm=%q, authorization_uri=%q, token_uri=%q`,
		s.cfg.BaseURL+"/mcp",
		s.cfg.BaseURL+"/oauth/login",
		s.cfg.BaseURL+"/tokens",
	))
	writeRPC(w, http.StatusUnauthorized, rpc.NewAuthRequired(reason))
}
