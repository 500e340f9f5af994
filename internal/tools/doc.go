// Package tools holds the registry the JSON-RPC router dispatches to and
// the per-request dependency bundle handed to each tool handler. The
// service-specific tool definitions live in the *_tools subpackages.
package tools
