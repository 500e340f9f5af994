package gmail_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgate/workgate/internal/breaker"
	"github.com/workgate/workgate/internal/tools"
)

// RegisterGmailTools registers all Gmail-related tools with the registry.
func RegisterGmailTools(r *tools.Registry) {
	listMessagesTool := mcp.NewTool("gmail_list_messages",
		mcp.WithDescription("List recent Gmail messages for the authenticated user, optionally filtered by a Gmail search query"),
		mcp.WithString("query",
			mcp.Description("Gmail search query (e.g. 'is:unread from:alice@example.com'). Empty lists the most recent messages."),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of messages to return (default: 20)"),
		),
	)

	r.AddTool(listMessagesTool, func(ctx context.Context, deps *tools.Deps, args map[string]any) (*mcp.CallToolResult, error) {
		query := tools.StringArg(args, "query")
		maxResults := tools.IntArg(args, "maxResults")
		if maxResults <= 0 {
			maxResults = 20
		}

		out, err := deps.Execute(ctx, "listMessages", func(ctx context.Context) (any, error) {
			return deps.Clients.Gmail.ListMessages(ctx, query, maxResults)
		})
		if err != nil {
			if breaker.IsCircuitOpen(err) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list messages: %v", err)), nil
		}

		result, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	})

	getMessageTool := mcp.NewTool("gmail_get_message",
		mcp.WithDescription("Get a single Gmail message including its plain-text body"),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("The ID of the message to retrieve"),
		),
	)

	r.AddTool(getMessageTool, func(ctx context.Context, deps *tools.Deps, args map[string]any) (*mcp.CallToolResult, error) {
		messageID := tools.StringArg(args, "messageId")
		if messageID == "" {
			return mcp.NewToolResultError("messageId is required"), nil
		}

		out, err := deps.Execute(ctx, "getMessage", func(ctx context.Context) (any, error) {
			return deps.Clients.Gmail.GetMessage(ctx, messageID)
		})
		if err != nil {
			if breaker.IsCircuitOpen(err) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get message: %v", err)), nil
		}

		result, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	})

	sendMessageTool := mcp.NewTool("gmail_send_message",
		mcp.WithDescription("Send an email from the authenticated user's Gmail account"),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient email address"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Email subject line"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Plain-text email body"),
		),
	)

	r.AddTool(sendMessageTool, func(ctx context.Context, deps *tools.Deps, args map[string]any) (*mcp.CallToolResult, error) {
		to := tools.StringArg(args, "to")
		subject := tools.StringArg(args, "subject")
		body := tools.StringArg(args, "body")
		if to == "" || subject == "" {
			return mcp.NewToolResultError("to and subject are required"), nil
		}

		out, err := deps.Execute(ctx, "sendMessage", func(ctx context.Context) (any, error) {
			return deps.Clients.Gmail.SendMessage(ctx, to, subject, body)
		})
		if err != nil {
			if breaker.IsCircuitOpen(err) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to send message: %v", err)), nil
		}

		result, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	})
}
