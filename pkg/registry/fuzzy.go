package registry

import (
	"context"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// fuzzyThreshold is the minimum normalized fuzzysearch rank score a
// candidate must clear to be considered a usable suggestion. Chosen as a
// deterministic, documented stand-in for the unspecified ranking in the
// source implementation.
const fuzzyThreshold = 0.4

// resolveThreshold is the minimum score the best candidate must reach for
// FuzzyResolve to resolve to it directly instead of returning suggestions.
const resolveThreshold = 0.8

const maxSuggestions = 5

// FuzzyResolve looks up name exactly; on a miss it ranks every known tool
// name by normalized similarity. If the best candidate scores at least
// resolveThreshold, its entry is returned with no suggestions; otherwise it
// returns nil and up to maxSuggestions candidates whose score clears
// fuzzyThreshold. Ties are broken by shorter name, then lexicographically.
func (r *ToolRegistry) FuzzyResolve(ctx context.Context, name string) (*ToolEntry, []string) {
	_, span := tracer.Start(ctx, "ToolRegistry.FuzzyResolve")
	defer span.End()

	if entry, ok := r.Get(name); ok {
		return entry, nil
	}

	candidates := r.AllToolNames()
	ranks := fuzzy.RankFindNormalizedFold(name, candidates)
	sort.Slice(ranks, func(i, j int) bool {
		si, sj := rankScore(ranks[i]), rankScore(ranks[j])
		if si != sj {
			return si > sj
		}
		ti, tj := ranks[i].Target, ranks[j].Target
		if len(ti) != len(tj) {
			return len(ti) < len(tj)
		}
		return ti < tj
	})

	if len(ranks) > 0 && rankScore(ranks[0]) >= resolveThreshold {
		if entry, ok := r.Get(ranks[0].Target); ok {
			return entry, nil
		}
	}

	suggestions := make([]string, 0, maxSuggestions)
	for _, rank := range ranks {
		if rankScore(rank) < fuzzyThreshold {
			continue
		}
		suggestions = append(suggestions, rank.Target)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return nil, suggestions
}

// rankScore converts fuzzy.Rank's edit distance into a normalized
// similarity score in [0, 1], where 1 is an exact match.
func rankScore(rank fuzzy.Rank) float64 {
	maxLen := len(rank.Source)
	if len(rank.Target) > maxLen {
		maxLen = len(rank.Target)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(rank.Distance)/float64(maxLen)
}
