// Package gateway wires the registry, upstream manager, hook runner, and
// meta-tool surface into a single MCP server process: the handshake with
// dynamically built instructions, the health endpoints, the optional
// dynamic-registration REST API, and the background refresh loop.
// Grounded on the teacher's pkg/mcp-gateway.Gateway (construction sequence,
// ServeMux()/Handler() accessors, ListenAndServe/Shutdown pairing) and
// golovatskygroup-mcp-lens's buildInstructions for the dynamic instructions
// text.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fastmcp/mcp-gateway/pkg/hooks"
	"github.com/fastmcp/mcp-gateway/pkg/metatools"
	"github.com/fastmcp/mcp-gateway/pkg/registry"
	"github.com/fastmcp/mcp-gateway/pkg/reqcontext"
	"github.com/fastmcp/mcp-gateway/pkg/upstream"
)

// metaToolNames lists the four meta-tools, used when re-registering them on
// the underlying *mcp.Server to force a notifications/tools/list_changed.
var metaToolNames = []string{"discover_tools", "get_tool_schema", "execute_tool", "refresh_registry"}

// state is the GatewayServer lifecycle: Constructed -> Populated -> Running -> Stopped.
type state int32

const (
	stateConstructed state = iota
	statePopulated
	stateRunning
	stateStopped
)

// GatewayServer wires the registry, upstream manager, hook runner, and
// meta-tool Service into one MCP server process plus its HTTP surface.
type GatewayServer struct {
	opts     Options
	registry *registry.ToolRegistry
	upstream *upstream.Manager
	hooks    *hooks.HookRunner
	tools    *metatools.Service

	state atomic.Int32

	mu            sync.Mutex
	server        *mcp.Server
	streamHandler http.Handler
	mux           *http.ServeMux
	httpHandler   http.Handler

	httpServerMu sync.Mutex
	httpServer   *http.Server

	refreshCancel context.CancelFunc
	refreshWG     sync.WaitGroup
}

// New constructs a GatewayServer. A nil hookRunner is replaced by a runner
// with no hooks registered.
func New(reg *registry.ToolRegistry, mgr *upstream.Manager, hookRunner *hooks.HookRunner, opts *Options) (*GatewayServer, error) {
	if reg == nil {
		return nil, fmt.Errorf("gateway: registry is required")
	}
	if mgr == nil {
		return nil, fmt.Errorf("gateway: upstream manager is required")
	}
	if hookRunner == nil {
		hookRunner = hooks.NewRunner(nil)
	}
	options, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	g := &GatewayServer{
		opts:     options,
		registry: reg,
		upstream: mgr,
		hooks:    hookRunner,
		tools:    metatools.New(reg, mgr, hookRunner, options.Logger),
	}
	g.state.Store(int32(stateConstructed))
	return g, nil
}

// Populate runs the initial upstream population, builds the underlying MCP
// server with instructions reflecting that snapshot, and mounts the HTTP
// handler. It must be called exactly once, before Serve.
func (g *GatewayServer) Populate(ctx context.Context) error {
	if state(g.state.Load()) != stateConstructed {
		return fmt.Errorf("gateway: Populate called outside Constructed state")
	}

	if _, err := g.upstream.PopulateAll(ctx); err != nil {
		// PopulateAll itself is graceful (per-domain failures are logged and
		// skipped); a non-nil error here would be a programming bug.
		return fmt.Errorf("gateway: initial populate: %w", err)
	}

	g.mu.Lock()
	g.server = g.newServer(g.instructionsLocked())
	g.streamHandler = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return g.server
	}, &g.opts.Streamable)
	g.httpHandler, g.mux = g.buildMux()
	g.mu.Unlock()

	g.state.Store(int32(statePopulated))
	return nil
}

// newServer constructs a fresh *mcp.Server advertising instructions and
// registers the four meta-tools on it. Caller must hold g.mu.
func (g *GatewayServer) newServer(instructions string) *mcp.Server {
	server := mcp.NewServer(g.opts.Implementation, &mcp.ServerOptions{
		HasTools:     true,
		Instructions: instructions,
	})
	g.tools.Register(server)
	return server
}

// instructionsLocked computes the InitializeResult.Instructions text: the
// user-supplied override if configured, otherwise a workflow summary plus
// one line per domain. Caller must hold g.mu (or call before any server
// exists, during construction).
func (g *GatewayServer) instructionsLocked() string {
	if g.opts.Instructions != "" {
		return g.opts.Instructions
	}
	return buildInstructions(g.registry.ListDomains())
}

func buildInstructions(domains []registry.DomainInfo) string {
	var sb strings.Builder
	sb.WriteString("This gateway exposes four meta-tools for progressive tool discovery instead of a flat list of every upstream tool:\n")
	sb.WriteString("- discover_tools: browse domains, groups, or search by keyword\n")
	sb.WriteString("- get_tool_schema: fetch the full parameter schema for one tool found via discover_tools\n")
	sb.WriteString("- execute_tool: invoke a discovered tool by name\n")
	sb.WriteString("- refresh_registry: re-list tools from every upstream and report what changed\n\n")

	if len(domains) == 0 {
		sb.WriteString("No upstream domains are currently populated.\n")
		return sb.String()
	}

	sorted := append([]registry.DomainInfo(nil), domains...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	sb.WriteString("Available domains:\n")
	for _, d := range sorted {
		desc := d.Description
		if desc == "" {
			desc = "no description"
		}
		fmt.Fprintf(&sb, "- %s (%d tools): %s\n", d.Name, d.ToolCount, desc)
	}
	return sb.String()
}

// refreshToolRegistration re-registers the four meta-tools on the live
// *mcp.Server, which forces the go-sdk to emit
// notifications/tools/list_changed to every connected session — the same
// AddTool/RemoveTools mechanism the teacher's feature_index sync relies on,
// applied here purely to satisfy spec compliance since the gateway's own
// tool set never actually changes shape.
func (g *GatewayServer) refreshToolRegistration() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.server == nil {
		return
	}
	g.server.RemoveTools(metaToolNames...)
	g.tools.Register(g.server)
}

// Handler exposes the HTTP handler serving /mcp plus health and (optionally)
// registration routes.
func (g *GatewayServer) Handler() http.Handler {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.httpHandler
}

// ServeMux exposes the underlying *http.ServeMux so callers can register
// additional routes before or after Serve starts.
func (g *GatewayServer) ServeMux() *http.ServeMux {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mux
}

// Serve runs the HTTP server (and, if configured, the background refresh
// loop) until ctx is cancelled or the server stops on its own.
func (g *GatewayServer) Serve(ctx context.Context) error {
	if state(g.state.Load()) != statePopulated {
		return fmt.Errorf("gateway: Serve called outside Populated state")
	}

	g.httpServerMu.Lock()
	if g.httpServer != nil {
		g.httpServerMu.Unlock()
		return fmt.Errorf("gateway: already serving")
	}
	srv := &http.Server{Addr: g.opts.Addr, Handler: g.Handler()}
	g.httpServer = srv
	g.httpServerMu.Unlock()

	if g.opts.RefreshInterval > 0 {
		refreshCtx, cancel := context.WithCancel(context.Background())
		g.refreshCancel = cancel
		g.refreshWG.Add(1)
		go g.runRefreshLoop(refreshCtx)
	}

	g.state.Store(int32(stateRunning))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = g.Shutdown(context.Background())
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the background refresh loop and the HTTP server, in that
// order, so the refresh loop never observes a half-closed listener.
func (g *GatewayServer) Shutdown(ctx context.Context) error {
	if g.refreshCancel != nil {
		g.refreshCancel()
		g.refreshWG.Wait()
	}

	g.httpServerMu.Lock()
	srv := g.httpServer
	g.httpServer = nil
	g.httpServerMu.Unlock()

	g.state.Store(int32(stateStopped))

	if srv == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return srv.Shutdown(ctx)
}

// withHeaders is HTTP middleware that stashes the incoming request's
// headers into the request context so meta-tool handlers (running several
// layers deeper, inside the MCP session) can recover them for
// authentication and header forwarding, per pkg/reqcontext.
func withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := reqcontext.WithHeaders(r.Context(), r.Header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// buildMux assembles the HTTP handler: the MCP endpoint (optionally gated
// behind a bearer-token resource-server check), health endpoints, and the
// registration REST API when configured. Caller must hold g.mu.
func (g *GatewayServer) buildMux() (http.Handler, *http.ServeMux) {
	mux := http.NewServeMux()

	mcpHandler := withHeaders(g.streamHandler)
	if g.opts.TokenVerifier != nil {
		mcpHandler = auth.RequireBearerToken(g.opts.TokenVerifier, g.opts.TokenOptions)(mcpHandler)
		if g.opts.TokenOptions != nil && g.opts.TokenOptions.ResourceMetadataURL != "" {
			mux.Handle("/.well-known/oauth-protected-resource", corsWrap(g.protectedResourceMetadataHandler()))
		}
	}

	path := g.opts.Path
	mux.Handle(path, mcpHandler)
	if !strings.HasSuffix(path, "/") {
		mux.Handle(path+"/", mcpHandler)
	}

	mux.HandleFunc("/healthz", g.handleHealthz)
	mux.HandleFunc("/readyz", g.handleReadyz)

	if g.opts.RegistrationToken != "" {
		if len(g.opts.RegistrationToken) < minRegistrationTokenLength {
			g.opts.Logger.Warn("registration token is shorter than the recommended minimum",
				"minimum_length", minRegistrationTokenLength)
		}
		g.mountRegistrationAPI(mux)
	}

	return mux, mux
}

func (g *GatewayServer) logger() *slog.Logger {
	return g.opts.Logger
}
