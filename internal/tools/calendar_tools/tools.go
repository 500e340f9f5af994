package calendar_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgate/workgate/internal/breaker"
	"github.com/workgate/workgate/internal/calendar"
	"github.com/workgate/workgate/internal/tools"
)

// RegisterCalendarTools registers all Calendar-related tools with the registry.
func RegisterCalendarTools(r *tools.Registry) {
	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List upcoming calendar events within a time window"),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithString("timeMin",
			mcp.Description("Window start in RFC3339 (default: now)"),
		),
		mcp.WithString("timeMax",
			mcp.Description("Window end in RFC3339 (default: 7 days from now)"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of events to return (default: 50)"),
		),
	)

	r.AddTool(listEventsTool, func(ctx context.Context, deps *tools.Deps, args map[string]any) (*mcp.CallToolResult, error) {
		calendarID := tools.StringArg(args, "calendarId")
		if calendarID == "" {
			calendarID = "primary"
		}
		maxResults := tools.IntArg(args, "maxResults")
		if maxResults <= 0 {
			maxResults = 50
		}

		now := time.Now()
		timeMin := now
		if v := tools.StringArg(args, "timeMin"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Invalid timeMin: %v", err)), nil
			}
			timeMin = parsed
		}
		timeMax := now.Add(7 * 24 * time.Hour)
		if v := tools.StringArg(args, "timeMax"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Invalid timeMax: %v", err)), nil
			}
			timeMax = parsed
		}

		out, err := deps.Execute(ctx, "listEvents", func(ctx context.Context) (any, error) {
			return deps.Clients.Calendar.ListEvents(ctx, calendarID, timeMin, timeMax, maxResults)
		})
		if err != nil {
			if breaker.IsCircuitOpen(err) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
		}

		result, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	})

	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a calendar event"),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Event start in RFC3339"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("Event end in RFC3339"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated attendee email addresses"),
		),
	)

	r.AddTool(createEventTool, func(ctx context.Context, deps *tools.Deps, args map[string]any) (*mcp.CallToolResult, error) {
		calendarID := tools.StringArg(args, "calendarId")
		if calendarID == "" {
			calendarID = "primary"
		}
		summary := tools.StringArg(args, "summary")
		if summary == "" {
			return mcp.NewToolResultError("summary is required"), nil
		}

		start, err := time.Parse(time.RFC3339, tools.StringArg(args, "start"))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid start: %v", err)), nil
		}
		end, err := time.Parse(time.RFC3339, tools.StringArg(args, "end"))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid end: %v", err)), nil
		}

		var attendees []string
		if v := tools.StringArg(args, "attendees"); v != "" {
			for _, a := range strings.Split(v, ",") {
				if a = strings.TrimSpace(a); a != "" {
					attendees = append(attendees, a)
				}
			}
		}

		input := calendar.EventInput{
			Summary:     summary,
			Description: tools.StringArg(args, "description"),
			Location:    tools.StringArg(args, "location"),
			Start:       start,
			End:         end,
			Attendees:   attendees,
		}

		out, err := deps.Execute(ctx, "createEvent", func(ctx context.Context) (any, error) {
			return deps.Clients.Calendar.CreateEvent(ctx, calendarID, input)
		})
		if err != nil {
			if breaker.IsCircuitOpen(err) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create event: %v", err)), nil
		}

		result, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	})
}
