// Package breaker wraps every distinct outbound provider operation in an
// independent circuit breaker. A breaker trips after a run of consecutive
// failures, rejects calls without upstream I/O while open, allows a single
// probe after a cooldown, and publishes every state transition to
// subscribed observers.
package breaker
