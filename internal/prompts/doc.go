// Package prompts registers the built-in MCP prompts that guide agents
// through multi-tool workflows.
package prompts
