package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgate/workgate/internal/auth"
	"github.com/workgate/workgate/internal/breaker"
	"github.com/workgate/workgate/internal/instrumentation"
	"github.com/workgate/workgate/internal/workspace"
)

// Deps carries the per-request dependencies a tool handler needs: the
// resolved principal, the client set built from its fresh credential, and
// the process-wide breaker registry. A Deps value lives for one request.
type Deps struct {
	Principal *auth.Principal
	Clients   *workspace.Clients
	Breakers  *breaker.Registry
	Metrics   *instrumentation.Metrics
}

// serviceForOperation maps breaker operation names onto the upstream
// service label. Operation names are unique across services.
var serviceForOperation = map[string]string{
	"listMessages":  instrumentation.ServiceGmail,
	"getMessage":    instrumentation.ServiceGmail,
	"sendMessage":   instrumentation.ServiceGmail,
	"getProfile":    instrumentation.ServiceGmail,
	"listEvents":    instrumentation.ServiceCalendar,
	"createEvent":   instrumentation.ServiceCalendar,
	"listFiles":     instrumentation.ServiceDrive,
	"getFile":       instrumentation.ServiceDrive,
	"getForm":       instrumentation.ServiceForms,
	"createForm":    instrumentation.ServiceForms,
	"listForms":     instrumentation.ServiceForms,
	"listResponses": instrumentation.ServiceForms,
}

// Execute runs an upstream call through the circuit breaker for the named
// operation and records its outcome.
func (d *Deps) Execute(ctx context.Context, operation string, fn func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()
	out, err := d.Breakers.Execute(ctx, operation, fn)

	if d.Metrics != nil && !breaker.IsCircuitOpen(err) {
		service, ok := serviceForOperation[operation]
		if !ok {
			service = strings.ToLower(operation)
		}
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		d.Metrics.RecordUpstreamOperation(ctx, service, operation, status, time.Since(start))
	}
	return out, err
}

// Handler executes one tool call. Expected upstream failures are returned
// as an isError tool result; only faults the router must translate (open
// circuits, auth problems) are returned as Go errors.
type Handler func(ctx context.Context, deps *Deps, args map[string]any) (*mcp.CallToolResult, error)

// ResourceHandler serves one resource read.
type ResourceHandler func(ctx context.Context, deps *Deps, uri string) ([]mcp.ResourceContents, error)

// PromptHandler renders one prompt.
type PromptHandler func(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error)

// Registry is the fixed table of tools, resources and prompts the router
// dispatches to. It is populated at startup and read-only afterwards; the
// lock only guards against misuse during registration.
type Registry struct {
	mu               sync.RWMutex
	tools            []mcp.Tool
	handlers         map[string]Handler
	resources        []mcp.Resource
	resourceHandlers map[string]ResourceHandler
	prompts          []mcp.Prompt
	promptHandlers   map[string]PromptHandler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers:         make(map[string]Handler),
		resourceHandlers: make(map[string]ResourceHandler),
		promptHandlers:   make(map[string]PromptHandler),
	}
}

// AddTool registers a tool and its handler.
func (r *Registry) AddTool(tool mcp.Tool, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append(r.tools, tool)
	r.handlers[tool.Name] = handler
}

// Tools returns the registered tool descriptors.
func (r *Registry) Tools() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]mcp.Tool(nil), r.tools...)
}

// CallTool dispatches a tool call by name. An unknown tool is an expected
// domain error: it produces an isError tool result, never a transport
// fault.
func (r *Registry) CallTool(ctx context.Context, name string, deps *Deps, args map[string]any) (*mcp.CallToolResult, error) {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Error: Unknown tool: %s", name)), nil
	}
	if args == nil {
		args = map[string]any{}
	}
	return handler(ctx, deps, args)
}

// AddResource registers a resource and its handler.
func (r *Registry) AddResource(resource mcp.Resource, handler ResourceHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources = append(r.resources, resource)
	r.resourceHandlers[resource.URI] = handler
}

// Resources returns the registered resource descriptors.
func (r *Registry) Resources() []mcp.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]mcp.Resource(nil), r.resources...)
}

// ReadResource dispatches a resource read by URI.
func (r *Registry) ReadResource(ctx context.Context, uri string, deps *Deps) ([]mcp.ResourceContents, error) {
	r.mu.RLock()
	handler, ok := r.resourceHandlers[uri]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown resource: %s", uri)
	}
	return handler(ctx, deps, uri)
}

// AddPrompt registers a prompt and its handler.
func (r *Registry) AddPrompt(prompt mcp.Prompt, handler PromptHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
	r.promptHandlers[prompt.Name] = handler
}

// Prompts returns the registered prompt descriptors.
func (r *Registry) Prompts() []mcp.Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]mcp.Prompt(nil), r.prompts...)
}

// GetPrompt dispatches a prompt render by name.
func (r *Registry) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	r.mu.RLock()
	handler, ok := r.promptHandlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}
	return handler(ctx, args)
}

// StringArg extracts a string argument, with "" when absent.
func StringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// IntArg extracts a numeric argument. JSON numbers arrive as float64.
func IntArg(args map[string]any, key string) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
