// Package auth resolves caller identity for inbound requests. Bearer token
// resolution is always attempted before session cookie resolution, and a
// bearer failure is never surfaced when the cookie path succeeds. Failed
// bearer attempts are reported to a security audit sink with only an
// 8-character token prefix.
package auth
