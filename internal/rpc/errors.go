package rpc

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Standard JSON-RPC error codes, taken from the protocol types so the
// wire values cannot drift from what MCP clients expect.
const (
	CodeParseError     = mcp.PARSE_ERROR
	CodeInvalidRequest = mcp.INVALID_REQUEST
	CodeMethodNotFound = mcp.METHOD_NOT_FOUND
	CodeInvalidParams  = mcp.INVALID_PARAMS
	CodeInternalError  = mcp.INTERNAL_ERROR

	// CodeAuthRequired is the implementation-defined code for requests
	// that could not be tied to an authenticated principal.
	CodeAuthRequired = -32000
)

// AuthRequiredMessage is the fixed user-facing message for every
// authentication failure, independent of the root cause.
const AuthRequiredMessage = "Authentication required. Please authenticate with bearer token or session cookie."

// NewAuthRequired builds the authentication-failure response. The ID is
// null: the request never reached a state where its ID could be trusted.
func NewAuthRequired(details string) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      nil,
		Error: &ErrorObject{
			Code:    CodeAuthRequired,
			Message: AuthRequiredMessage,
			Details: details,
		},
	}
}
