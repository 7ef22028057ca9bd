package metatools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fastmcp/mcp-gateway/pkg/hooks"
	"github.com/fastmcp/mcp-gateway/pkg/registry"
)

type domainSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ToolCount   int      `json:"tool_count"`
	Groups      []string `json:"groups"`
}

type domainToolsResponse struct {
	Domain string           `json:"domain"`
	Group  string           `json:"group,omitempty"`
	Tools  []domainToolItem `json:"tools"`
}

type domainToolItem struct {
	Name        string `json:"name"`
	Group       string `json:"group,omitempty"`
	Description string `json:"description"`
}

type searchResultItem struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Group       string `json:"group,omitempty"`
	Description string `json:"description"`
}

func (s *Service) handleDiscoverTools(ctx context.Context, req *mcp.CallToolRequest, args DiscoverToolsArgs) (*mcp.CallToolResult, any, error) {
	ctx, span := tracer.Start(ctx, "metatools.discover_tools")
	defer span.End()

	headers := headersFromRequest(ctx)

	if args.Group != nil && args.Domain == nil {
		return textResult(errorJSON(
			fmt.Sprintf("group %q specified without a domain; group lookups require domain", *args.Group),
			CodeGroupNotFound, nil,
		))
	}

	switch {
	case args.Domain != nil && args.Group != nil:
		return s.discoverByGroup(ctx, headers, *args.Domain, *args.Group)
	case args.Domain != nil:
		return s.discoverByDomain(ctx, headers, *args.Domain)
	case args.Query != nil:
		return s.discoverByQuery(ctx, headers, *args.Query)
	default:
		return s.discoverSummary(ctx, headers)
	}
}

func (s *Service) filteredDomainTools(ctx context.Context, headers http.Header, domain *string) ([]*registry.ToolEntry, error) {
	var candidates []*registry.ToolEntry
	if domain != nil {
		candidates = s.registry.GetToolsByDomain(*domain)
	} else {
		for _, d := range s.registry.ListDomains() {
			candidates = append(candidates, s.registry.GetToolsByDomain(d.Name)...)
		}
	}
	return s.hooks.RunAfterListTools(ctx, &hooks.ListToolsContext{Domain: domain, Headers: headers}, candidates)
}

func (s *Service) discoverSummary(ctx context.Context, headers http.Header) (*mcp.CallToolResult, any, error) {
	visible, err := s.filteredDomainTools(ctx, headers, nil)
	if err != nil {
		return textResult(errorJSON(err.Error(), CodeExecutionError, nil))
	}

	byDomain := make(map[string][]*registry.ToolEntry)
	groupsByDomain := make(map[string]map[string]struct{})
	for _, entry := range visible {
		byDomain[entry.Domain] = append(byDomain[entry.Domain], entry)
		if entry.Group != "" {
			if groupsByDomain[entry.Domain] == nil {
				groupsByDomain[entry.Domain] = make(map[string]struct{})
			}
			groupsByDomain[entry.Domain][entry.Group] = struct{}{}
		}
	}

	domains := make([]domainSummary, 0, len(byDomain))
	total := 0
	for name, tools := range byDomain {
		groups := make([]string, 0, len(groupsByDomain[name]))
		for g := range groupsByDomain[name] {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		desc, _ := s.registry.DomainDescription(name)
		domains = append(domains, domainSummary{
			Name:        name,
			Description: desc,
			ToolCount:   len(tools),
			Groups:      groups,
		})
		total += len(tools)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i].Name < domains[j].Name })

	payload, _ := json.Marshal(struct {
		Domains    []domainSummary `json:"domains"`
		TotalTools int             `json:"total_tools"`
	}{Domains: domains, TotalTools: total})
	return textResult(string(payload))
}

func (s *Service) discoverByDomain(ctx context.Context, headers http.Header, domain string) (*mcp.CallToolResult, any, error) {
	if !s.registry.HasDomain(domain) {
		return textResult(errorJSON(unknownDomainMessage(domain, s.registry), CodeDomainNotFound, domainDetails(s.registry)))
	}
	visible, err := s.filteredDomainTools(ctx, headers, &domain)
	if err != nil {
		return textResult(errorJSON(err.Error(), CodeExecutionError, nil))
	}

	items := make([]domainToolItem, 0, len(visible))
	for _, entry := range visible {
		items = append(items, domainToolItem{Name: entry.Name, Group: entry.Group, Description: entry.Description})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	payload, _ := json.Marshal(domainToolsResponse{Domain: domain, Tools: items})
	return textResult(string(payload))
}

func (s *Service) discoverByGroup(ctx context.Context, headers http.Header, domain, group string) (*mcp.CallToolResult, any, error) {
	if !s.registry.HasDomain(domain) {
		return textResult(errorJSON(unknownDomainMessage(domain, s.registry), CodeDomainNotFound, domainDetails(s.registry)))
	}
	if !s.registry.HasGroup(domain, group) {
		return textResult(errorJSON(
			fmt.Sprintf("unknown group %q in domain %q; valid groups: %v", group, domain, s.registry.GroupsForDomain(domain)),
			CodeGroupNotFound,
			map[string]any{"valid_groups": s.registry.GroupsForDomain(domain)},
		))
	}

	visible, err := s.filteredDomainTools(ctx, headers, &domain)
	if err != nil {
		return textResult(errorJSON(err.Error(), CodeExecutionError, nil))
	}

	items := make([]domainToolItem, 0)
	for _, entry := range visible {
		if entry.Group != group {
			continue
		}
		items = append(items, domainToolItem{Name: entry.Name, Description: entry.Description})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	payload, _ := json.Marshal(domainToolsResponse{Domain: domain, Group: group, Tools: items})
	return textResult(string(payload))
}

func (s *Service) discoverByQuery(ctx context.Context, headers http.Header, query string) (*mcp.CallToolResult, any, error) {
	matches := s.registry.Search(ctx, query)
	visible, err := s.hooks.RunAfterListTools(ctx, &hooks.ListToolsContext{Headers: headers}, matches)
	if err != nil {
		return textResult(errorJSON(err.Error(), CodeExecutionError, nil))
	}

	results := make([]searchResultItem, 0, len(visible))
	for _, entry := range visible {
		results = append(results, searchResultItem{Name: entry.Name, Domain: entry.Domain, Group: entry.Group, Description: entry.Description})
	}

	payload, _ := json.Marshal(struct {
		Query   string             `json:"query"`
		Results []searchResultItem `json:"results"`
	}{Query: query, Results: results})
	return textResult(string(payload))
}

func unknownDomainMessage(domain string, reg *registry.ToolRegistry) string {
	return fmt.Sprintf("unknown domain %q; valid domains: %v", domain, domainNames(reg))
}

func domainDetails(reg *registry.ToolRegistry) map[string]any {
	return map[string]any{"valid_domains": domainNames(reg)}
}

func domainNames(reg *registry.ToolRegistry) []string {
	names := make([]string, 0)
	for _, d := range reg.ListDomains() {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}
