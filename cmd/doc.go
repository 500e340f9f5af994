// Package cmd implements the command-line interface for workgate.
//
// This package provides the following commands:
//   - serve: Start the MCP gateway server
//   - token: Issue and revoke bearer tokens against a shared credential store
//   - version: Display version information
package cmd
