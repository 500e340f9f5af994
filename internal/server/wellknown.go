package server

import (
	"net/http"
)

// protectedResourceMetadata is the RFC 9728 OAuth protected resource
// metadata document advertised for MCP clients.
type protectedResourceMetadata struct {
	Resource              string   `json:"resource"`
	AuthorizationServers  []string `json:"authorization_servers,omitempty"`
	BearerMethods         []string `json:"bearer_methods_supported"`
	ResourceDocumentation string   `json:"resource_documentation,omitempty"`
}

// handleProtectedResourceMetadata advertises how clients authenticate to
// the /mcp resource.
func (s *Server) handleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protectedResourceMetadata{
		Resource:             s.cfg.BaseURL + "/mcp",
		AuthorizationServers: []string{"https://accounts.google.com"},
		BearerMethods:        []string{"header"},
	})
}
