package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/workgate/workgate/internal/logging"
)

// Defaults for the breaker policy. One registry is created at service start
// and shared process-wide; the breakers inside it live until shutdown.
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
	DefaultWindow           = 60 * time.Second
	DefaultCallTimeout      = 30 * time.Second
)

// CircuitOpenError is returned when a call is rejected without attempting
// the upstream because the named circuit is open. It is distinguishable from
// a genuine upstream failure so monitoring can separate "we didn't try" from
// "we tried and failed".
type CircuitOpenError struct {
	Circuit string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q is open, upstream call rejected", e.Circuit)
}

// IsCircuitOpen reports whether an error is an open-circuit rejection.
func IsCircuitOpen(err error) bool {
	var coe *CircuitOpenError
	return errors.As(err, &coe)
}

// Settings holds the shared policy applied to every breaker in a registry.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that trips a
	// closed breaker. The transition happens exactly on the Nth failure.
	FailureThreshold uint32

	// Cooldown is how long an open breaker waits before allowing a single
	// half-open probe.
	Cooldown time.Duration

	// Window is the rolling interval after which a closed breaker's failure
	// counts reset.
	Window time.Duration

	// CallTimeout bounds each upstream call; a call exceeding it counts as
	// a failure. This is distinct from the store and refresh timeouts.
	CallTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.Cooldown == 0 {
		s.Cooldown = DefaultCooldown
	}
	if s.Window == 0 {
		s.Window = DefaultWindow
	}
	if s.CallTimeout == 0 {
		s.CallTimeout = DefaultCallTimeout
	}
	return s
}

// Registry holds one independent circuit breaker per outbound operation
// name, so one degraded endpoint does not starve unrelated ones. Breakers
// are created lazily on first use and never destroyed.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	settings Settings
	events   *publisher
	logger   *slog.Logger
}

// NewRegistry creates a breaker registry with the given policy.
func NewRegistry(settings Settings, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		settings: settings.withDefaults(),
		events:   newPublisher(),
		logger:   logger,
	}
}

// Execute runs fn through the breaker for the named operation. While the
// circuit is open the call is rejected immediately with *CircuitOpenError
// and fn is never invoked. Each call is bounded by the configured call
// timeout; exceeding it counts as a failure.
func (r *Registry) Execute(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) (any, error) {
	cb := r.breaker(name)

	result, err := cb.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.settings.CallTimeout)
		defer cancel()
		return fn(callCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &CircuitOpenError{Circuit: name}
		}
		return nil, err
	}
	return result, nil
}

// Subscribe returns a channel of state-change events. Every transition of
// every breaker in the registry is published; slow subscribers drop events
// rather than block the calling request.
func (r *Registry) Subscribe() <-chan Event {
	return r.events.subscribe()
}

// States returns the current state of every breaker that has been used,
// keyed by operation name.
func (r *Registry) States() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]string, len(r.breakers))
	for name, cb := range r.breakers {
		states[name] = cb.State().String()
	}
	return states
}

// breaker returns the breaker for an operation name, creating it on first
// use. Lookups take the read lock; creation re-checks under the write lock.
func (r *Registry) breaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	threshold := r.settings.FailureThreshold
	cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name: name,
		// Exactly one probe call is allowed through in half-open; its
		// success closes the circuit, its failure reopens it.
		MaxRequests: 1,
		Interval:    r.settings.Window,
		Timeout:     r.settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ev := Event{
				Circuit: name,
				From:    from.String(),
				To:      to.String(),
				At:      time.Now(),
			}
			r.events.publish(ev)
			r.logger.Warn("circuit state change",
				logging.Circuit(name),
				slog.String("from", ev.From),
				slog.String("state", ev.To))
		},
	})
	r.breakers[name] = cb
	return cb
}
