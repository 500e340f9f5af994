package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/workgate/workgate/internal/session"
)

// Health status constants for health check responses.
const (
	healthStatusOK       = "ok"
	healthStatusNotReady = "not ready"
	healthStatusDegraded = "degraded"
)

// HealthChecker provides liveness and readiness endpoints. Readiness
// additionally pings the credential store, since the gateway is useless
// without it.
type HealthChecker struct {
	ready     atomic.Bool
	store     session.Store
	startTime time.Time
}

// NewHealthChecker creates a HealthChecker. The server starts ready.
func NewHealthChecker(store session.Store) *HealthChecker {
	h := &HealthChecker{
		store:     store,
		startTime: time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state, flipped off during shutdown.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthResponse is the JSON body for both probe endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleLiveness reports process liveness only.
func (h *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: healthStatusOK,
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	})
}

// HandleReadiness reports whether the gateway can serve traffic: it must
// not be shutting down and the credential store must answer.
func (h *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady})
		return
	}

	checks := map[string]string{"store": healthStatusOK}
	status := healthStatusOK
	code := http.StatusOK

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			checks["store"] = err.Error()
			status = healthStatusDegraded
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, HealthResponse{
		Status: status,
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
		Checks: checks,
	})
}
