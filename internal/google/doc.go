// Package google holds the OAuth client registration and the token refresh
// orchestrator. The orchestrator refreshes proactively (five minutes before
// expiry), persists the full rotated credential set in one store write, and
// surfaces invalid_grant as a typed error so callers can distinguish
// re-authentication-required from transient upstream faults.
package google
