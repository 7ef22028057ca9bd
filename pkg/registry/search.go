package registry

import (
	"context"
	"sort"
	"strings"
)

// Search performs a case-insensitive, token-AND substring match against
// "name description" for every registered tool, grouped and sorted by
// (domain, name). Tokenization follows the original implementation's
// behavior (space-separated lowercase tokens, all must match).
func (r *ToolRegistry) Search(ctx context.Context, query string) []*ToolEntry {
	_, span := tracer.Start(ctx, "ToolRegistry.Search")
	defer span.End()

	tokens := strings.Fields(strings.ToLower(query))

	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*ToolEntry
	for _, entry := range r.flat {
		searchable := strings.ToLower(entry.Name + " " + entry.Description)
		matched := true
		for _, tok := range tokens {
			if !strings.Contains(searchable, tok) {
				matched = false
				break
			}
		}
		if matched {
			results = append(results, entry)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Domain != results[j].Domain {
			return results[i].Domain < results[j].Domain
		}
		return results[i].Name < results[j].Name
	})
	return results
}
