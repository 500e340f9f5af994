package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgate/workgate/internal/gmail"
	"github.com/workgate/workgate/internal/tools"
)

// RegisterUserResources registers session-specific user resources.
// These resources describe the currently authenticated principal.
func RegisterUserResources(r *tools.Registry) {
	profileResource := mcp.NewResource(
		"user://profile",
		"Current User Profile",
		mcp.WithResourceDescription("Information about the currently authenticated Google account"),
		mcp.WithMIMEType("application/json"),
	)
	r.AddResource(profileResource, handleUserProfile)

	sessionResource := mcp.NewResource(
		"user://session",
		"Current Session",
		mcp.WithResourceDescription("Authentication method and session metadata for the current request"),
		mcp.WithMIMEType("application/json"),
	)
	r.AddResource(sessionResource, handleSession)
}

// handleUserProfile returns the authenticated user's mailbox profile.
func handleUserProfile(ctx context.Context, deps *tools.Deps, uri string) ([]mcp.ResourceContents, error) {
	out, err := deps.Execute(ctx, "getProfile", func(ctx context.Context) (any, error) {
		return deps.Clients.Gmail.GetProfile(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	profile := out.(*gmail.Profile)

	profileData := map[string]any{
		"email":         profile.EmailAddress,
		"messagesTotal": profile.MessagesTotal,
		"threadsTotal":  profile.ThreadsTotal,
	}

	jsonData, err := json.MarshalIndent(profileData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// handleSession returns metadata about the resolved principal without
// touching any upstream API.
func handleSession(ctx context.Context, deps *tools.Deps, uri string) ([]mcp.ResourceContents, error) {
	sessionData := map[string]any{
		"sessionId":  deps.Principal.SessionID(),
		"userEmail":  deps.Principal.UserEmail(),
		"authMethod": string(deps.Principal.Method),
	}

	jsonData, err := json.MarshalIndent(sessionData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
