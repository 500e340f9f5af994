// Package server is the HTTP surface of the gateway: the authenticated
// /mcp JSON-RPC endpoint, the OAuth login flow and bearer token
// management that mint its credentials, probe endpoints, and the
// dedicated metrics listener.
package server
