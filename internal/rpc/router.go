package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/workgate/workgate/internal/auth"
	"github.com/workgate/workgate/internal/breaker"
	"github.com/workgate/workgate/internal/google"
	"github.com/workgate/workgate/internal/instrumentation"
	"github.com/workgate/workgate/internal/logging"
	"github.com/workgate/workgate/internal/tools"
	"github.com/workgate/workgate/internal/workspace"
)

// ServerInfo names the service in initialize responses.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Router maps JSON-RPC methods onto the tool registry. Every tools/call
// and resources/read flows through the credential chain: orchestrator
// (freshness), factory (clients), then the breaker-wrapped handler.
type Router struct {
	registry     *tools.Registry
	orchestrator *google.Orchestrator
	factory      *workspace.Factory
	breakers     *breaker.Registry
	info         ServerInfo
	loginPath    string
	metrics      *instrumentation.Metrics
	logger       *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithMetrics attaches a metrics recorder for request and tool telemetry.
func WithMetrics(m *instrumentation.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// NewRouter creates a router over the given registry and credential chain.
// loginPath is included in authentication-failure details so callers know
// where to re-authenticate.
func NewRouter(registry *tools.Registry, orchestrator *google.Orchestrator, factory *workspace.Factory, breakers *breaker.Registry, info ServerInfo, loginPath string, logger *slog.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if loginPath == "" {
		loginPath = "/oauth/login"
	}
	r := &Router{
		registry:     registry,
		orchestrator: orchestrator,
		factory:      factory,
		breakers:     breakers,
		info:         info,
		loginPath:    loginPath,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

type promptGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// Handle processes one JSON-RPC request body for an already-resolved
// principal and always produces a response envelope; no error escapes to
// the HTTP layer.
func (r *Router) Handle(ctx context.Context, principal *auth.Principal, body []byte) (resp *Response) {
	var req Request

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in rpc handler",
				slog.String(logging.KeyMethod, req.Method),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			resp = newError(req.ID, CodeInternalError, "internal error")
		}
	}()

	if err := json.Unmarshal(body, &req); err != nil {
		return newError(nil, CodeParseError, fmt.Sprintf("parse error: %v", err))
	}
	if req.JSONRPC != Version || len(req.ID) == 0 {
		return newError(req.ID, CodeInvalidRequest, "invalid request: jsonrpc version and id are required")
	}
	if req.Method == "" {
		return newError(req.ID, CodeInvalidRequest, "invalid request: method is required")
	}

	r.logger.Debug("rpc request",
		slog.String(logging.KeyMethod, req.Method),
		slog.String(logging.KeySessionID, principal.SessionID()),
		slog.String(logging.KeyAuthMethod, string(principal.Method)),
	)

	ctx, span := instrumentation.StartRPCSpan(ctx, req.Method,
		instrumentation.NewSpanAttributeBuilder().
			WithSessionID(principal.SessionID()).
			Build()...)
	defer span.End()

	start := time.Now()
	resp = r.dispatch(ctx, principal, req)

	status := instrumentation.StatusSuccess
	if resp != nil && resp.Error != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, errors.New(resp.Error.Message))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	if r.metrics != nil {
		r.metrics.RecordRPCRequest(ctx, req.Method, status, time.Since(start))
	}
	return resp
}

func (r *Router) dispatch(ctx context.Context, principal *auth.Principal, req Request) *Response {
	switch req.Method {
	case "initialize":
		return newResult(req.ID, initializeResult{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities: map[string]any{
				"tools":     map[string]any{},
				"resources": map[string]any{},
				"prompts":   map[string]any{},
			},
			ServerInfo: r.info,
		})

	case "tools/list":
		return newResult(req.ID, map[string]any{"tools": r.registry.Tools()})

	case "tools/call":
		return r.handleToolCall(ctx, principal, req)

	case "resources/list":
		return newResult(req.ID, map[string]any{"resources": r.registry.Resources()})

	case "resources/read":
		return r.handleResourceRead(ctx, principal, req)

	case "prompts/list":
		return newResult(req.ID, map[string]any{"prompts": r.registry.Prompts()})

	case "prompts/get":
		return r.handlePromptGet(ctx, req)

	default:
		return newError(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (r *Router) handleToolCall(ctx context.Context, principal *auth.Principal, req Request) *Response {
	var params toolCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newError(req.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}
	if params.Name == "" {
		return newError(req.ID, CodeInternalError, "missing tool name")
	}

	deps, errResp := r.buildDeps(ctx, principal, req.ID)
	if errResp != nil {
		return errResp
	}

	start := time.Now()
	result, err := r.registry.CallTool(ctx, params.Name, deps, params.Arguments)

	if r.metrics != nil {
		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}
		r.metrics.RecordToolInvocation(ctx, params.Name, status,
			instrumentation.ExtractUserDomain(principal.UserEmail()), time.Since(start))
	}

	if err != nil {
		return r.faultResponse(ctx, req, params.Name, err)
	}
	return newResult(req.ID, result)
}

func (r *Router) handleResourceRead(ctx context.Context, principal *auth.Principal, req Request) *Response {
	var params resourceReadParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newError(req.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}
	if params.URI == "" {
		return newError(req.ID, CodeInvalidParams, "missing resource uri")
	}

	deps, errResp := r.buildDeps(ctx, principal, req.ID)
	if errResp != nil {
		return errResp
	}

	contents, err := r.registry.ReadResource(ctx, params.URI, deps)
	if err != nil {
		return r.faultResponse(ctx, req, params.URI, err)
	}
	return newResult(req.ID, map[string]any{"contents": contents})
}

func (r *Router) handlePromptGet(ctx context.Context, req Request) *Response {
	var params promptGetParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newError(req.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}
	if params.Name == "" {
		return newError(req.ID, CodeInvalidParams, "missing prompt name")
	}

	result, err := r.registry.GetPrompt(ctx, params.Name, params.Arguments)
	if err != nil {
		return newError(req.ID, CodeInvalidParams, err.Error())
	}
	return newResult(req.ID, result)
}

// buildDeps runs the credential chain for methods that reach upstream
// APIs: ensure the principal's credential is fresh, then build the
// per-request client set around it.
func (r *Router) buildDeps(ctx context.Context, principal *auth.Principal, id json.RawMessage) (*tools.Deps, *Response) {
	if principal == nil || principal.Session == nil {
		return nil, r.authError(id, "no authenticated session")
	}

	cred, err := r.orchestrator.EnsureFresh(ctx, principal.Session)
	if err != nil {
		if google.ReauthRequired(err) {
			r.logger.Info("re-authentication required",
				slog.String(logging.KeySessionID, principal.SessionID()),
			)
			return nil, r.authError(id, "stored credential was revoked; re-authentication required")
		}
		r.logger.Warn("credential refresh failed",
			slog.String(logging.KeySessionID, principal.SessionID()),
			logging.Err(err),
		)
		return nil, r.authError(id, "credential refresh failed; re-authentication may be required")
	}

	clients, err := r.factory.Build(ctx, cred)
	if err != nil {
		return nil, newError(id, CodeInternalError, fmt.Sprintf("failed to build provider clients: %v", err))
	}

	return &tools.Deps{
		Principal: principal,
		Clients:   clients,
		Breakers:  r.breakers,
		Metrics:   r.metrics,
	}, nil
}

// authError produces the auth-required error shape while keeping the
// request ID, since here the envelope itself was well-formed.
func (r *Router) authError(id json.RawMessage, details string) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      echoID(id),
		Error: &ErrorObject{
			Code:    CodeAuthRequired,
			Message: AuthRequiredMessage,
			Details: details + "; visit " + r.loginPath,
		},
	}
}

// faultResponse translates handler faults that are not expressible as
// tool results. Open circuits map to a distinguishable internal error.
func (r *Router) faultResponse(ctx context.Context, req Request, target string, err error) *Response {
	var open *breaker.CircuitOpenError
	if errors.As(err, &open) {
		r.logger.Warn("request rejected by open circuit",
			slog.String(logging.KeyCircuit, open.Circuit),
			slog.String("target", target),
		)
		if r.metrics != nil {
			r.metrics.RecordCircuitRejection(ctx, open.Circuit)
		}
		resp := newError(req.ID, CodeInternalError, fmt.Sprintf("upstream temporarily unavailable: %v", err))
		resp.Error.Data = map[string]any{"reason": "circuit_open"}
		return resp
	}
	r.logger.Error("rpc handler failed",
		slog.String(logging.KeyMethod, req.Method),
		slog.String("target", target),
		logging.Err(err),
	)
	return newError(req.ID, CodeInternalError, err.Error())
}
