package tools

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgate/workgate/internal/breaker"
)

func TestCallToolUnknownIsToolResult(t *testing.T) {
	r := NewRegistry()

	result, err := r.CallTool(context.Background(), "nonexistent", &Deps{}, nil)
	if err != nil {
		t.Fatalf("unknown tool must not be a fault, got %v", err)
	}
	if !result.IsError {
		t.Error("expected isError result for unknown tool")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	if text.Text != "Error: Unknown tool: nonexistent" {
		t.Errorf("unexpected error text %q", text.Text)
	}
}

func TestCallToolNilArgsBecomeEmptyMap(t *testing.T) {
	r := NewRegistry()
	r.AddTool(mcp.NewTool("probe"), func(ctx context.Context, deps *Deps, args map[string]any) (*mcp.CallToolResult, error) {
		if args == nil {
			t.Error("handler must never see nil args")
		}
		return mcp.NewToolResultText("ok"), nil
	})

	if _, err := r.CallTool(context.Background(), "probe", &Deps{}, nil); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
}

func TestDepsExecuteUsesBreaker(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
	deps := &Deps{Breakers: breaker.NewRegistry(breaker.Settings{FailureThreshold: 2}, logger)}
	ctx := context.Background()

	out, err := deps.Execute(ctx, "listMessages", func(ctx context.Context) (any, error) {
		return "payload", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "payload" {
		t.Errorf("expected payload, got %v", out)
	}

	// Trip the circuit with consecutive failures.
	boom := fmt.Errorf("upstream down")
	for i := 0; i < 2; i++ {
		_, _ = deps.Execute(ctx, "listMessages", func(ctx context.Context) (any, error) {
			return nil, boom
		})
	}
	_, err = deps.Execute(ctx, "listMessages", func(ctx context.Context) (any, error) {
		return "payload", nil
	})
	if !breaker.IsCircuitOpen(err) {
		t.Errorf("expected open-circuit error, got %v", err)
	}
}

func TestGetPromptUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.GetPrompt(context.Background(), "nope", nil); err == nil {
		t.Error("expected error for unknown prompt")
	}
}

func TestReadResourceUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.ReadResource(context.Background(), "user://nope", &Deps{}); err == nil {
		t.Error("expected error for unknown resource")
	}
}

func TestStringArg(t *testing.T) {
	args := map[string]any{"query": "is:unread", "count": 3.0}
	if got := StringArg(args, "query"); got != "is:unread" {
		t.Errorf("expected query value, got %q", got)
	}
	if got := StringArg(args, "missing"); got != "" {
		t.Errorf("expected empty string for missing key, got %q", got)
	}
	if got := StringArg(args, "count"); got != "" {
		t.Errorf("expected empty string for non-string value, got %q", got)
	}
}

func TestIntArg(t *testing.T) {
	args := map[string]any{"max": 25.0, "name": "x"}
	if got := IntArg(args, "max"); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}
	if got := IntArg(args, "missing"); got != 0 {
		t.Errorf("expected 0 for missing key, got %d", got)
	}
	if got := IntArg(args, "name"); got != 0 {
		t.Errorf("expected 0 for non-numeric value, got %d", got)
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
