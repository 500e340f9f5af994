// Package rpc implements the JSON-RPC 2.0 router at the heart of the
// gateway. It owns the envelope types, the fixed method table, and the
// translation of internal faults into protocol error shapes.
package rpc
