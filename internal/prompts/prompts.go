package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgate/workgate/internal/tools"
)

// RegisterPrompts registers the built-in workflow prompts.
func RegisterPrompts(r *tools.Registry) {
	inboxPrompt := mcp.Prompt{
		Name:        "summarize_inbox",
		Description: "Summarize the user's recent unread mail and suggest follow-ups",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "maxMessages",
				Description: "How many recent messages to consider (default: 20)",
			},
		},
	}
	r.AddPrompt(inboxPrompt, handleSummarizeInbox)

	briefPrompt := mcp.Prompt{
		Name:        "meeting_brief",
		Description: "Prepare a briefing for an upcoming calendar event",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "eventSummary",
				Description: "Title of the event to brief on",
				Required:    true,
			},
		},
	}
	r.AddPrompt(briefPrompt, handleMeetingBrief)
}

func handleSummarizeInbox(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	maxMessages := args["maxMessages"]
	if maxMessages == "" {
		maxMessages = "20"
	}

	text := fmt.Sprintf(
		"Use the gmail_list_messages tool with query 'is:unread' and maxResults %s, "+
			"then summarize the messages grouped by sender. Call out anything that "+
			"looks like it needs a reply today.", maxMessages)

	return &mcp.GetPromptResult{
		Description: "Summarize recent unread mail",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}, nil
}

func handleMeetingBrief(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	eventSummary := args["eventSummary"]
	if eventSummary == "" {
		return nil, fmt.Errorf("eventSummary argument is required")
	}

	text := fmt.Sprintf(
		"Use calendar_list_events to find the event titled %q, then use "+
			"gmail_list_messages and drive_list_files to gather recent mail and "+
			"documents mentioning its attendees. Produce a one-page briefing with "+
			"agenda, open threads, and relevant files.", eventSummary)

	return &mcp.GetPromptResult{
		Description: "Briefing for " + eventSummary,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}, nil
}
