// Package workspace constructs the per-request provider client set. Every
// request gets clients built fresh from exactly one principal's live
// credential; nothing here is cached or shared across principals.
package workspace
