package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/fastmcp/mcp-gateway/pkg/registry"
)

var tracer = otel.Tracer("github.com/fastmcp/mcp-gateway/pkg/upstream")

// Manager owns the gateway's upstream MCP connections: one persistent
// discovery client per domain for tools/list, and fresh execution clients
// minted per tools/call. It feeds discovered tools into a ToolRegistry but
// never mutates the registry's lookup or collision logic itself.
type Manager struct {
	mu      sync.RWMutex
	domains map[string]*domainState

	registry *registry.ToolRegistry
	impl     *mcp.Implementation
	logger   *slog.Logger
}

// New constructs a Manager backed by reg, announcing itself to upstreams
// under impl (its own Implementation, distinct from any connecting client).
func New(reg *registry.ToolRegistry, impl *mcp.Implementation, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if impl == nil {
		impl = &mcp.Implementation{Name: "mcp-gateway", Version: "dev"}
	}
	return &Manager{
		domains:  make(map[string]*domainState),
		registry: reg,
		impl:     impl,
		logger:   logger.With("component", "upstream"),
	}
}

// AddUpstream idempotently upserts a domain's connection coordinates and
// opens its discovery client. Re-registering without staticHeaders clears
// any headers previously stored for the domain rather than preserving
// them, so a caller can't accidentally orphan stale credentials.
func (m *Manager) AddUpstream(ctx context.Context, domain, url string, description *string, staticHeaders map[string]string) (registry.RegistryDiff, error) {
	state := &domainState{url: url, description: description, staticHeaders: staticHeaders}

	m.mu.Lock()
	if existing, ok := m.domains[domain]; ok {
		existing.mu.Lock()
		if existing.discoverySession != nil {
			_ = existing.discoverySession.Close()
		}
		existing.mu.Unlock()
	}
	m.domains[domain] = state
	m.mu.Unlock()

	return m.PopulateDomain(ctx, domain)
}

// RemoveUpstream closes the domain's discovery client and removes it from
// both the manager and the backing registry.
func (m *Manager) RemoveUpstream(domain string) error {
	m.mu.Lock()
	state, ok := m.domains[domain]
	delete(m.domains, domain)
	m.mu.Unlock()
	if !ok {
		return &ErrUnknownDomain{Domain: domain}
	}
	state.mu.Lock()
	if state.discoverySession != nil {
		_ = state.discoverySession.Close()
	}
	state.mu.Unlock()
	m.registry.RemoveDomain(domain)
	return nil
}

// ListUpstreams returns the url registered for every known domain.
func (m *Manager) ListUpstreams() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.domains))
	for domain, state := range m.domains {
		out[domain] = state.url
	}
	return out
}

func (m *Manager) domainState(domain string) (*domainState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.domains[domain]
	return state, ok
}

// discoverySession returns the domain's persistent discovery client
// session, connecting it on first use.
func (m *Manager) discoverySession(ctx context.Context, domain string) (*mcp.ClientSession, error) {
	state, ok := m.domainState(domain)
	if !ok {
		return nil, &ErrUnknownDomain{Domain: domain}
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.discoverySession != nil {
		return state.discoverySession, nil
	}

	headers := http.Header{}
	for k, v := range state.staticHeaders {
		headers.Set(k, v)
	}
	session, client, err := connect(ctx, domain, state.url, headers, m.impl, m.logger)
	if err != nil {
		return nil, fmt.Errorf("upstream: connect discovery client for %q: %w", domain, err)
	}
	state.discoveryClient = client
	state.discoverySession = session
	return session, nil
}

// PopulateAll fans out a discovery tools/list to every registered domain
// concurrently. A domain that fails to connect or list is logged and
// skipped rather than aborting the others.
func (m *Manager) PopulateAll(ctx context.Context) ([]registry.RegistryDiff, error) {
	ctx, span := tracer.Start(ctx, "Manager.PopulateAll")
	defer span.End()

	m.mu.RLock()
	domains := make([]string, 0, len(m.domains))
	for d := range m.domains {
		domains = append(domains, d)
	}
	m.mu.RUnlock()

	var mu sync.Mutex
	var diffs []registry.RegistryDiff

	g, gctx := errgroup.WithContext(ctx)
	for _, domain := range domains {
		domain := domain
		g.Go(func() error {
			diff, err := m.PopulateDomain(gctx, domain)
			if err != nil {
				m.logger.Warn("populate domain failed", "domain", domain, "error", err)
				return nil
			}
			mu.Lock()
			diffs = append(diffs, diff)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return diffs, nil
}

// PopulateDomain connects (or reuses) domain's discovery client, lists its
// tools, and feeds the result into the registry.
func (m *Manager) PopulateDomain(ctx context.Context, domain string) (registry.RegistryDiff, error) {
	ctx, span := tracer.Start(ctx, "Manager.PopulateDomain")
	defer span.End()

	state, ok := m.domainState(domain)
	if !ok {
		return registry.RegistryDiff{}, &ErrUnknownDomain{Domain: domain}
	}

	session, err := m.discoverySession(ctx, domain)
	if err != nil {
		return registry.RegistryDiff{}, err
	}

	res, err := session.ListTools(ctx, nil)
	if err != nil {
		return registry.RegistryDiff{}, fmt.Errorf("upstream: list tools for %q: %w", domain, err)
	}

	tools := make([]registry.UpstreamTool, 0, len(res.Tools))
	for _, t := range res.Tools {
		if t == nil {
			continue
		}
		tools = append(tools, registry.UpstreamTool{
			OriginalName: t.Name,
			Group:        groupFromMeta(t.Meta),
			Description:  t.Description,
			InputSchema:  toInputSchema(t.InputSchema),
			Annotations:  t.Annotations,
		})
	}

	return m.registry.PopulateDomain(ctx, domain, tools, state.description)
}

// toInputSchema adapts the SDK client's untyped InputSchema (the default
// JSON marshaling of the upstream server's schema) into our jsonschema.Schema
// representation.
func toInputSchema(raw any) *jsonschema.Schema {
	if raw == nil {
		return nil
	}
	if schema, ok := raw.(*jsonschema.Schema); ok {
		return schema
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil
	}
	return &schema
}

// groupFromMeta reads an optional "group" hint from a tool's _meta, letting
// an upstream opt into sub-domain grouping without a separate protocol
// extension.
func groupFromMeta(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if group, ok := meta["group"].(string); ok {
		return group
	}
	return ""
}

// RefreshAll re-populates every domain and reports which ones failed,
// leaving a failed domain's previous registry snapshot untouched.
func (m *Manager) RefreshAll(ctx context.Context) ([]registry.RegistryDiff, []string) {
	ctx, span := tracer.Start(ctx, "Manager.RefreshAll")
	defer span.End()

	m.mu.RLock()
	domains := make([]string, 0, len(m.domains))
	for d := range m.domains {
		domains = append(domains, d)
	}
	m.mu.RUnlock()

	var mu sync.Mutex
	var diffs []registry.RegistryDiff
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	for _, domain := range domains {
		domain := domain
		g.Go(func() error {
			diff, err := m.RefreshDomain(gctx, domain)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, domain)
				return nil
			}
			diffs = append(diffs, diff)
			return nil
		})
	}
	_ = g.Wait()
	return diffs, failed
}

// RefreshDomain re-lists domain's tools. On error the existing registry
// snapshot for domain is left exactly as it was.
func (m *Manager) RefreshDomain(ctx context.Context, domain string) (registry.RegistryDiff, error) {
	return m.PopulateDomain(ctx, domain)
}

// Execute opens a fresh execution client to entry.Domain, merges headers
// with extraHeaders and the domain's static headers taking priority over
// forwarded incoming headers, and issues a single tools/call.
func (m *Manager) Execute(ctx context.Context, entry *registry.ToolEntry, arguments map[string]any, incomingHeaders http.Header, extraHeaders map[string]string) (*ExecuteResult, error) {
	ctx, span := tracer.Start(ctx, "Manager.Execute")
	defer span.End()

	state, ok := m.domainState(entry.Domain)
	if !ok {
		return nil, &ErrUnknownDomain{Domain: entry.Domain}
	}

	headers := mergeExecutionHeaders(incomingHeaders, state.cloneStaticHeaders(), extraHeaders)
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("X-Request-Id", uuid.New().String())

	session, _, err := connect(ctx, entry.Domain, state.url, headers, m.impl, m.logger)
	if err != nil {
		return nil, fmt.Errorf("upstream: connect execution client for %q: %w", entry.Domain, err)
	}
	defer func() {
		_ = session.Close()
	}()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      entry.OriginalName,
		Arguments: arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: call %q on %q: %w", entry.OriginalName, entry.Domain, err)
	}

	return &ExecuteResult{
		Text:    textContent(result),
		IsError: result.IsError,
		Raw:     result,
	}, nil
}

// textContent joins every text block in a CallToolResult's content, which
// is all the gateway's meta-tools need to forward to the caller.
func textContent(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
