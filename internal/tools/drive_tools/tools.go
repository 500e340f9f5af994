package drive_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgate/workgate/internal/breaker"
	"github.com/workgate/workgate/internal/tools"
)

// RegisterDriveTools registers all Drive-related tools with the registry.
func RegisterDriveTools(r *tools.Registry) {
	listFilesTool := mcp.NewTool("drive_list_files",
		mcp.WithDescription("List files in the authenticated user's Google Drive, optionally filtered by a Drive search query"),
		mcp.WithString("query",
			mcp.Description("Drive search query (e.g. \"name contains 'report'\"). Empty lists the most recently modified files."),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of files to return (default: 25)"),
		),
	)

	r.AddTool(listFilesTool, func(ctx context.Context, deps *tools.Deps, args map[string]any) (*mcp.CallToolResult, error) {
		query := tools.StringArg(args, "query")
		maxResults := tools.IntArg(args, "maxResults")
		if maxResults <= 0 {
			maxResults = 25
		}

		out, err := deps.Execute(ctx, "listFiles", func(ctx context.Context) (any, error) {
			return deps.Clients.Drive.ListFiles(ctx, query, maxResults)
		})
		if err != nil {
			if breaker.IsCircuitOpen(err) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list files: %v", err)), nil
		}

		result, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	})

	getFileTool := mcp.NewTool("drive_get_file",
		mcp.WithDescription("Get metadata for a single Drive file"),
		mcp.WithString("fileId",
			mcp.Required(),
			mcp.Description("The ID of the file to retrieve"),
		),
	)

	r.AddTool(getFileTool, func(ctx context.Context, deps *tools.Deps, args map[string]any) (*mcp.CallToolResult, error) {
		fileID := tools.StringArg(args, "fileId")
		if fileID == "" {
			return mcp.NewToolResultError("fileId is required"), nil
		}

		out, err := deps.Execute(ctx, "getFile", func(ctx context.Context) (any, error) {
			return deps.Clients.Drive.GetFile(ctx, fileID)
		})
		if err != nil {
			if breaker.IsCircuitOpen(err) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get file: %v", err)), nil
		}

		result, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	})
}
