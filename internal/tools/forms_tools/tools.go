package forms_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgate/workgate/internal/breaker"
	"github.com/workgate/workgate/internal/tools"
)

// RegisterFormsTools registers all Forms-related tools with the registry.
func RegisterFormsTools(r *tools.Registry) {
	getFormTool := mcp.NewTool("forms_get_form",
		mcp.WithDescription("Get a Google Form including its questions"),
		mcp.WithString("formId",
			mcp.Required(),
			mcp.Description("The ID of the form to retrieve"),
		),
	)

	r.AddTool(getFormTool, func(ctx context.Context, deps *tools.Deps, args map[string]any) (*mcp.CallToolResult, error) {
		formID := tools.StringArg(args, "formId")
		if formID == "" {
			return mcp.NewToolResultError("formId is required"), nil
		}

		out, err := deps.Execute(ctx, "getForm", func(ctx context.Context) (any, error) {
			return deps.Clients.Forms.GetForm(ctx, formID)
		})
		if err != nil {
			if breaker.IsCircuitOpen(err) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get form: %v", err)), nil
		}

		result, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	})

	createFormTool := mcp.NewTool("forms_create_form",
		mcp.WithDescription("Create a new Google Form with the given title"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Title for the new form"),
		),
	)

	r.AddTool(createFormTool, func(ctx context.Context, deps *tools.Deps, args map[string]any) (*mcp.CallToolResult, error) {
		title := tools.StringArg(args, "title")
		if title == "" {
			return mcp.NewToolResultError("title is required"), nil
		}

		out, err := deps.Execute(ctx, "createForm", func(ctx context.Context) (any, error) {
			return deps.Clients.Forms.CreateForm(ctx, title)
		})
		if err != nil {
			if breaker.IsCircuitOpen(err) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create form: %v", err)), nil
		}

		result, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	})

	listFormsTool := mcp.NewTool("forms_list_forms",
		mcp.WithDescription("List the authenticated user's Google Forms"),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of forms to return (default: 25)"),
		),
	)

	r.AddTool(listFormsTool, func(ctx context.Context, deps *tools.Deps, args map[string]any) (*mcp.CallToolResult, error) {
		maxResults := tools.IntArg(args, "maxResults")
		if maxResults <= 0 {
			maxResults = 25
		}

		out, err := deps.Execute(ctx, "listForms", func(ctx context.Context) (any, error) {
			return deps.Clients.Forms.ListForms(ctx, maxResults)
		})
		if err != nil {
			if breaker.IsCircuitOpen(err) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list forms: %v", err)), nil
		}

		result, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	})

	listResponsesTool := mcp.NewTool("forms_list_responses",
		mcp.WithDescription("List the submitted responses for a Google Form"),
		mcp.WithString("formId",
			mcp.Required(),
			mcp.Description("The ID of the form whose responses to list"),
		),
	)

	r.AddTool(listResponsesTool, func(ctx context.Context, deps *tools.Deps, args map[string]any) (*mcp.CallToolResult, error) {
		formID := tools.StringArg(args, "formId")
		if formID == "" {
			return mcp.NewToolResultError("formId is required"), nil
		}

		out, err := deps.Execute(ctx, "listResponses", func(ctx context.Context) (any, error) {
			return deps.Clients.Forms.ListResponses(ctx, formID)
		})
		if err != nil {
			if breaker.IsCircuitOpen(err) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list responses: %v", err)), nil
		}

		result, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	})
}
