// Package resources registers the MCP resources served alongside the
// wrapped API tools.
package resources
