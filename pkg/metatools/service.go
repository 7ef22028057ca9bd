package metatools

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"

	"github.com/fastmcp/mcp-gateway/pkg/hooks"
	"github.com/fastmcp/mcp-gateway/pkg/registry"
	"github.com/fastmcp/mcp-gateway/pkg/reqcontext"
	"github.com/fastmcp/mcp-gateway/pkg/upstream"
)

var tracer = otel.Tracer("github.com/fastmcp/mcp-gateway/pkg/metatools")

// Service wires the registry, upstream manager, and hook runner together
// behind the four meta-tools and owns their registration on an *mcp.Server.
type Service struct {
	registry *registry.ToolRegistry
	upstream *upstream.Manager
	hooks    *hooks.HookRunner
	logger   *slog.Logger
}

// New constructs a Service. hookRunner may be a zero-value *hooks.HookRunner
// (no hooks registered), never nil.
func New(reg *registry.ToolRegistry, upstreamMgr *upstream.Manager, hookRunner *hooks.HookRunner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{registry: reg, upstream: upstreamMgr, hooks: hookRunner, logger: logger.With("component", "metatools")}
}

// DiscoverToolsArgs is the input schema for discover_tools; every field is
// optional and the combination selects the browsing mode.
type DiscoverToolsArgs struct {
	Domain *string `json:"domain,omitempty" jsonschema:"Restrict results to this domain"`
	Group  *string `json:"group,omitempty" jsonschema:"Restrict results to this group; requires domain"`
	Query  *string `json:"query,omitempty" jsonschema:"Free-text keyword search across all tool names and descriptions"`
}

// GetToolSchemaArgs is the input schema for get_tool_schema.
type GetToolSchemaArgs struct {
	ToolName string `json:"tool_name" jsonschema:"Exact or approximate name of the tool to describe"`
}

// ExecuteToolArgs is the input schema for execute_tool.
type ExecuteToolArgs struct {
	ToolName  string         `json:"tool_name" jsonschema:"Exact or approximate name of the tool to invoke"`
	Arguments map[string]any `json:"arguments,omitempty" jsonschema:"Arguments to pass to the upstream tool"`
}

// RefreshRegistryArgs is the input schema for refresh_registry; it takes no
// parameters.
type RefreshRegistryArgs struct{}

// Register adds the four meta-tools to server.
func (s *Service) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "discover_tools",
		Description: "Browse available tools by domain, group, or keyword. Call with no arguments to see all domains and their tool counts.",
	}, s.handleDiscoverTools)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_tool_schema",
		Description: "Get the full parameter schema for a specific tool, found via discover_tools.",
	}, s.handleGetToolSchema)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "execute_tool",
		Description: "Execute a tool by name with the given arguments. Use discover_tools and get_tool_schema first.",
	}, s.handleExecuteTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refresh_registry",
		Description: "Re-list tools from every registered upstream domain and report what changed.",
	}, s.handleRefreshRegistry)
}

// headersFromRequest recovers the caller's incoming HTTP headers, set by
// the gateway's HTTP middleware via reqcontext.WithHeaders.
func headersFromRequest(ctx context.Context) http.Header {
	return reqcontext.Headers(ctx)
}

func textResult(payload string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: payload}}}, nil, nil
}
