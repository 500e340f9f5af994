package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/workgate/workgate/internal/logging"
	"github.com/workgate/workgate/internal/session"
)

// DefaultBearerTokenTTL is the lifetime of a freshly issued bearer token.
const DefaultBearerTokenTTL = 30 * 24 * time.Hour

type tokenIssueRequest struct {
	// TTLHours optionally shortens the token lifetime. Values above the
	// default are clamped.
	TTLHours int `json:"ttlHours,omitempty"`
}

type tokenIssueResponse struct {
	// Token is the bearer secret. It is returned exactly once; only its
	// hash is stored.
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type tokenRevokeRequest struct {
	Token string `json:"token"`
}

// handleTokenIssue mints a bearer token bound to the caller's session.
// The caller must already be authenticated (cookie or an existing bearer
// token); the new secret is returned once and never stored in the clear.
func (s *Server) handleTokenIssue(w http.ResponseWriter, r *http.Request) {
	principal, err := s.resolver.Resolve(r)
	if err != nil {
		s.writeAuthRequired(w, r, err)
		return
	}

	var req tokenIssueRequest
	if r.Body != nil {
		// An empty body is fine; the defaults apply.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ttl := DefaultBearerTokenTTL
	if req.TTLHours > 0 {
		if requested := time.Duration(req.TTLHours) * time.Hour; requested < ttl {
			ttl = requested
		}
	}

	secret, err := session.NewSecret()
	if err != nil {
		s.logger.Error("failed to generate bearer token", logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to issue token"})
		return
	}
	now := time.Now()
	token := &session.BearerToken{
		Hash:      session.HashToken(secret),
		SessionID: principal.SessionID(),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	if err := s.store.PutBearerToken(r.Context(), token); err != nil {
		s.logger.Error("failed to store bearer token",
			slog.String(logging.KeySessionID, principal.SessionID()),
			logging.Err(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to issue token"})
		return
	}

	s.logger.Info("bearer token issued",
		slog.String(logging.KeySessionID, principal.SessionID()),
		slog.Time("expires_at", token.ExpiresAt),
	)

	writeJSON(w, http.StatusCreated, tokenIssueResponse{
		Token:     secret,
		ExpiresAt: token.ExpiresAt,
	})
}

// handleTokenRevoke revokes a bearer token by value. Revocation is
// idempotent toward the caller: revoking an unknown token still returns
// 204 so the endpoint cannot be used to probe which tokens exist.
func (s *Server) handleTokenRevoke(w http.ResponseWriter, r *http.Request) {
	principal, err := s.resolver.Resolve(r)
	if err != nil {
		s.writeAuthRequired(w, r, err)
		return
	}

	var req tokenRevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	if err := s.store.RevokeBearerToken(r.Context(), req.Token); err != nil {
		s.logger.Debug("bearer token revocation lookup failed",
			slog.String(logging.KeySessionID, principal.SessionID()),
			logging.Err(err),
		)
	} else {
		s.logger.Info("bearer token revoked",
			slog.String(logging.KeySessionID, principal.SessionID()),
			slog.String("token_prefix", logging.TokenPrefix(req.Token)),
		)
	}

	w.WriteHeader(http.StatusNoContent)
}
