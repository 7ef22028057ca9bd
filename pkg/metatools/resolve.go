package metatools

import (
	"context"
	"net/http"

	"github.com/fastmcp/mcp-gateway/pkg/hooks"
	"github.com/fastmcp/mcp-gateway/pkg/registry"
)

// resolveVisible resolves name to a *registry.ToolEntry, exact match first
// then fuzzy, but only returns an entry that survives the AfterListTools
// filter for the requester's domain — a tool hidden by a hook must read as
// not-found rather than leaking its schema or letting it be invoked.
//
// Returns (nil, suggestions, nil) when the name resolves to no entry;
// suggestions is empty when even fuzzy resolution found nothing workable.
// Returns (nil, nil, nil) when the resolved entry is hidden by a hook, so no
// suggestions are offered for it.
func (s *Service) resolveVisible(ctx context.Context, headers http.Header, name string) (*registry.ToolEntry, []string, error) {
	entry, suggestions := s.registry.FuzzyResolve(ctx, name)
	if entry == nil {
		return nil, suggestions, nil
	}

	domain := entry.Domain
	visible, err := s.hooks.RunAfterListTools(ctx, &hooks.ListToolsContext{Domain: &domain, Headers: headers}, []*registry.ToolEntry{entry})
	if err != nil {
		return nil, nil, err
	}
	if len(visible) == 0 {
		return nil, nil, nil
	}
	return visible[0], nil, nil
}

func toolNotFoundEnvelope(name string, suggestions []string) string {
	message := "tool " + quote(name) + " not found; use discover_tools to see what's available"
	if len(suggestions) > 0 {
		message = "tool " + quote(name) + " not found. Did you mean: " + joinQuoted(suggestions) + "?"
	}
	return errorJSON(message, CodeToolNotFound, suggestionDetails(suggestions))
}

func quote(s string) string { return "\"" + s + "\"" }

func joinQuoted(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += quote(item)
	}
	return out
}
