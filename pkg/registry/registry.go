package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/fastmcp/mcp-gateway/pkg/registry")

// ErrNotFound reports that no tool is registered under a given name. Get
// signals a miss through its boolean result and does not return this error.
var ErrNotFound = fmt.Errorf("registry: tool not found")

// UpstreamTool is the shape a caller supplies to PopulateDomain, before
// collision resolution assigns the final gateway-facing Name.
type UpstreamTool struct {
	OriginalName string
	Group        string
	Description  string
	InputSchema  *jsonschema.Schema
	Annotations  *mcp.ToolAnnotations
}

// ToolRegistry is an in-memory, concurrency-safe index of tools discovered
// from upstream MCP servers, organized by domain and group with a flat
// name index for exact and fuzzy lookup.
//
// Per-domain tool maps are treated as immutable once published: every
// mutation builds a new map under the write lock and swaps it in, so
// concurrent readers never observe a torn domain.
type ToolRegistry struct {
	mu sync.RWMutex

	// domains maps domain -> (gateway name -> entry). The inner maps are
	// replaced wholesale on every PopulateDomain/RemoveDomain; never mutated
	// in place once published.
	domains map[string]map[string]*ToolEntry
	// flat maps gateway name -> entry, across all domains.
	flat map[string]*ToolEntry
	// descriptions maps domain -> human description, independent of tools.
	descriptions map[string]string

	logger *slog.Logger
}

// New constructs an empty ToolRegistry. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *ToolRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolRegistry{
		domains:      make(map[string]map[string]*ToolEntry),
		flat:         make(map[string]*ToolEntry),
		descriptions: make(map[string]string),
		logger:       logger.With("component", "registry"),
	}
}

// ToolCount returns the total number of tools across all domains.
func (r *ToolRegistry) ToolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.flat)
}

// PopulateDomain replaces the entire tool set for domain atomically,
// resolving name collisions against tools already registered under other
// domains, and returns the set of names added and removed relative to the
// previous snapshot for this domain.
func (r *ToolRegistry) PopulateDomain(ctx context.Context, domain string, tools []UpstreamTool, description *string) (RegistryDiff, error) {
	ctx, span := tracer.Start(ctx, "ToolRegistry.PopulateDomain")
	defer span.End()
	_ = ctx

	if domain == "" {
		return RegistryDiff{}, fmt.Errorf("registry: domain is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.domains[domain]
	previousNames := make(map[string]struct{}, len(previous))
	for name := range previous {
		previousNames[name] = struct{}{}
	}

	// Remove this domain's current entries from the flat index before
	// resolving collisions for the incoming set, so re-populating a domain
	// never collides with itself.
	for name := range previous {
		delete(r.flat, name)
	}

	newDomainEntries := make(map[string]*ToolEntry, len(tools))
	for _, t := range tools {
		entry := &ToolEntry{
			Name:         t.OriginalName,
			OriginalName: t.OriginalName,
			Domain:       domain,
			Group:        t.Group,
			Description:  t.Description,
			InputSchema:  t.InputSchema,
			Annotations:  t.Annotations,
		}
		if !r.resolveCollisionLocked(entry) {
			r.logger.Warn("secondary collision rejected",
				"domain", domain, "original_name", t.OriginalName)
			continue
		}
		r.flat[entry.Name] = entry
		newDomainEntries[entry.Name] = entry
	}

	if len(newDomainEntries) > 0 {
		r.domains[domain] = newDomainEntries
	} else {
		delete(r.domains, domain)
	}
	if description != nil {
		r.descriptions[domain] = *description
	}

	newNames := make(map[string]struct{}, len(newDomainEntries))
	for name := range newDomainEntries {
		newNames[name] = struct{}{}
	}

	var added, removed []string
	for name := range newNames {
		if _, ok := previousNames[name]; !ok {
			added = append(added, name)
		}
	}
	for name := range previousNames {
		if _, ok := newNames[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	return RegistryDiff{
		Domain:    domain,
		Added:     added,
		Removed:   removed,
		ToolCount: len(newDomainEntries),
	}, nil
}

// resolveCollisionLocked assigns entry.Name, renaming entry (and, if it
// collides with an existing bare name from another domain, that existing
// entry too) to "{domain}_{original_name}" form. Returns false only when
// entry's own prefixed name is itself already taken — a collision that
// cannot be resolved without clobbering another entry. A secondary
// collision on the existing entry's side (its prefixed name is taken) never
// drops entry: the existing entry is simply left under its current name and
// entry is still registered under its own prefixed name.
//
// Caller must hold r.mu for writing.
func (r *ToolRegistry) resolveCollisionLocked(entry *ToolEntry) bool {
	existing, ok := r.flat[entry.Name]
	if !ok {
		return true
	}
	if existing.Domain == entry.Domain {
		// Re-populating the same domain is not a collision with itself;
		// this path is defensive since callers clear the domain's own
		// entries from the flat index before calling in.
		return true
	}

	prefixedNew := entry.Domain + "_" + entry.OriginalName
	if _, clash := r.flat[prefixedNew]; clash {
		return false
	}

	prefixedExisting := existing.Domain + "_" + existing.OriginalName
	if other, clash := r.flat[prefixedExisting]; !clash || other == existing {
		// Safe to rename the existing bare-named entry into its prefixed
		// form. The rename publishes a renamed copy of the entry in a fresh
		// map for its owning domain, leaving the published entry and map
		// untouched.
		renamed := *existing
		renamed.Name = prefixedExisting
		delete(r.flat, existing.Name)
		if domainEntries, ok := r.domains[existing.Domain]; ok {
			updated := make(map[string]*ToolEntry, len(domainEntries))
			for name, e := range domainEntries {
				if name != existing.Name {
					updated[name] = e
				}
			}
			updated[renamed.Name] = &renamed
			r.domains[existing.Domain] = updated
		}
		r.flat[renamed.Name] = &renamed
	}
	// Otherwise prefixedExisting is already taken by a third entry: leave
	// existing under its current name rather than drop entry.

	entry.Name = prefixedNew
	return true
}

// Get performs an exact lookup from the flat index.
func (r *ToolRegistry) Get(name string) (*ToolEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.flat[name]
	return entry, ok
}

// RemoveDomain drops every tool registered under domain.
func (r *ToolRegistry) RemoveDomain(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.domains[domain] {
		delete(r.flat, name)
	}
	delete(r.domains, domain)
	delete(r.descriptions, domain)
}

// DomainDescription returns the human description set for domain, if any.
func (r *ToolRegistry) DomainDescription(domain string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.descriptions[domain]
	return desc, ok
}

// HasDomain reports whether domain currently has any registered tools or a
// recorded description.
func (r *ToolRegistry) HasDomain(domain string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, hasTools := r.domains[domain]
	_, hasDesc := r.descriptions[domain]
	return hasTools || hasDesc
}

// HasGroup reports whether domain has at least one tool in group.
func (r *ToolRegistry) HasGroup(domain, group string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.domains[domain] {
		if entry.Group == group {
			return true
		}
	}
	return false
}

// ListDomains returns a snapshot of domain summaries, sorted by name.
func (r *ToolRegistry) ListDomains() []DomainInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.domains)+len(r.descriptions))
	seen := make(map[string]struct{})
	for name := range r.domains {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	for name := range r.descriptions {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)

	result := make([]DomainInfo, 0, len(names))
	for _, name := range names {
		entries := r.domains[name]
		groupSet := make(map[string]struct{})
		for _, entry := range entries {
			if entry.Group != "" {
				groupSet[entry.Group] = struct{}{}
			}
		}
		groups := make([]string, 0, len(groupSet))
		for g := range groupSet {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		result = append(result, DomainInfo{
			Name:        name,
			Description: r.descriptions[name],
			ToolCount:   len(entries),
			Groups:      groups,
		})
	}
	return result
}

// GetToolsByDomain returns every tool in domain, sorted by name.
func (r *ToolRegistry) GetToolsByDomain(domain string) []*ToolEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.domains[domain])
}

// GetToolsByGroup returns every tool in domain whose Group equals group, sorted by name.
func (r *ToolRegistry) GetToolsByGroup(domain, group string) []*ToolEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ToolEntry
	for _, entry := range r.domains[domain] {
		if entry.Group == group {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GroupsForDomain returns the sorted, distinct group names within domain.
func (r *ToolRegistry) GroupsForDomain(domain string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]struct{})
	for _, entry := range r.domains[domain] {
		if entry.Group != "" {
			set[entry.Group] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// AllToolNames returns every registered gateway-facing tool name, sorted.
func (r *ToolRegistry) AllToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.flat))
	for name := range r.flat {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedValues(m map[string]*ToolEntry) []*ToolEntry {
	out := make([]*ToolEntry, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
