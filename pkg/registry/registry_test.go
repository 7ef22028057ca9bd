package registry

import (
	"context"
	"reflect"
	"sort"
	"testing"
)

func tools(names ...string) []UpstreamTool {
	out := make([]UpstreamTool, 0, len(names))
	for _, n := range names {
		out = append(out, UpstreamTool{OriginalName: n, Description: "desc " + n})
	}
	return out
}

func TestPopulateDomainColdBrowse(t *testing.T) {
	t.Parallel()
	r := New(nil)
	ctx := context.Background()

	if _, err := r.PopulateDomain(ctx, "apollo", tools("people_search", "org_search"), nil); err != nil {
		t.Fatalf("populate apollo: %v", err)
	}
	if _, err := r.PopulateDomain(ctx, "hubspot", tools("contacts_search"), nil); err != nil {
		t.Fatalf("populate hubspot: %v", err)
	}

	domains := r.ListDomains()
	if len(domains) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(domains))
	}
	if r.ToolCount() != 3 {
		t.Fatalf("expected 3 tools, got %d", r.ToolCount())
	}
	for _, d := range domains {
		switch d.Name {
		case "apollo":
			if d.ToolCount != 2 {
				t.Fatalf("apollo tool count = %d", d.ToolCount)
			}
		case "hubspot":
			if d.ToolCount != 1 {
				t.Fatalf("hubspot tool count = %d", d.ToolCount)
			}
		default:
			t.Fatalf("unexpected domain %q", d.Name)
		}
	}
}

func TestPopulateDomainCollision(t *testing.T) {
	t.Parallel()
	r := New(nil)
	ctx := context.Background()

	if _, err := r.PopulateDomain(ctx, "apollo", tools("search"), nil); err != nil {
		t.Fatalf("populate apollo: %v", err)
	}
	if _, err := r.PopulateDomain(ctx, "hubspot", tools("search"), nil); err != nil {
		t.Fatalf("populate hubspot: %v", err)
	}

	if _, ok := r.Get("search"); ok {
		t.Fatalf("bare name %q should not be in the flat index after collision", "search")
	}
	apolloEntry, ok := r.Get("apollo_search")
	if !ok {
		t.Fatalf("expected apollo_search in flat index")
	}
	if apolloEntry.OriginalName != "search" {
		t.Fatalf("original name should remain unprefixed, got %q", apolloEntry.OriginalName)
	}
	if _, ok := r.Get("hubspot_search"); !ok {
		t.Fatalf("expected hubspot_search in flat index")
	}

	_, suggestions := r.FuzzyResolve(ctx, "search")
	sort.Strings(suggestions)
	want := []string{"apollo_search", "hubspot_search"}
	if !reflect.DeepEqual(suggestions, want) {
		t.Fatalf("suggestions = %v, want %v", suggestions, want)
	}
}

func TestPopulateDomainRepopulateNotSelfCollision(t *testing.T) {
	t.Parallel()
	r := New(nil)
	ctx := context.Background()

	if _, err := r.PopulateDomain(ctx, "apollo", tools("people_search"), nil); err != nil {
		t.Fatalf("populate apollo: %v", err)
	}
	diff, err := r.PopulateDomain(ctx, "apollo", tools("people_search"), nil)
	if err != nil {
		t.Fatalf("re-populate apollo: %v", err)
	}
	if !diff.Empty() {
		t.Fatalf("expected empty diff on identical re-populate, got %+v", diff)
	}
	if entry, ok := r.Get("people_search"); !ok || entry.Name != "people_search" {
		t.Fatalf("expected people_search to remain unprefixed after self re-populate")
	}
}

func TestPopulateDomainDiffAddedRemoved(t *testing.T) {
	t.Parallel()
	r := New(nil)
	ctx := context.Background()

	if _, err := r.PopulateDomain(ctx, "apollo", tools("a", "b"), nil); err != nil {
		t.Fatalf("populate: %v", err)
	}
	diff, err := r.PopulateDomain(ctx, "apollo", tools("b", "c"), nil)
	if err != nil {
		t.Fatalf("re-populate: %v", err)
	}
	if !reflect.DeepEqual(diff.Added, []string{"c"}) {
		t.Fatalf("added = %v", diff.Added)
	}
	if !reflect.DeepEqual(diff.Removed, []string{"a"}) {
		t.Fatalf("removed = %v", diff.Removed)
	}
	if diff.ToolCount != 2 {
		t.Fatalf("tool count = %d", diff.ToolCount)
	}
}

func TestFuzzyResolveMatch(t *testing.T) {
	t.Parallel()
	r := New(nil)
	ctx := context.Background()
	if _, err := r.PopulateDomain(ctx, "apollo", tools("apollo_people_search"), nil); err != nil {
		t.Fatalf("populate: %v", err)
	}

	entry, suggestions := r.FuzzyResolve(ctx, "apollo_peple_search")
	if entry == nil {
		t.Fatalf("expected a fuzzy match entry")
	}
	if entry.Name != "apollo_people_search" {
		t.Fatalf("matched %q, want apollo_people_search", entry.Name)
	}
	if len(suggestions) != 0 {
		t.Fatalf("suggestions should be empty on a resolved match, got %v", suggestions)
	}
}

func TestSearchTokenAndAcrossNameAndDescription(t *testing.T) {
	t.Parallel()
	r := New(nil)
	ctx := context.Background()
	if _, err := r.PopulateDomain(ctx, "apollo", tools("people_search", "org_search"), nil); err != nil {
		t.Fatalf("populate: %v", err)
	}

	results := r.Search(ctx, "org search")
	if len(results) != 1 || results[0].Name != "org_search" {
		t.Fatalf("search results = %+v", results)
	}
}

func TestEmptyRegistryBoundary(t *testing.T) {
	t.Parallel()
	r := New(nil)
	if got := r.ListDomains(); len(got) != 0 {
		t.Fatalf("expected no domains, got %v", got)
	}
	if r.ToolCount() != 0 {
		t.Fatalf("expected zero tool count")
	}
	if _, ok := r.Get(""); ok {
		t.Fatalf("empty name should never resolve")
	}
}

func TestRemoveDomain(t *testing.T) {
	t.Parallel()
	r := New(nil)
	ctx := context.Background()
	if _, err := r.PopulateDomain(ctx, "apollo", tools("a"), nil); err != nil {
		t.Fatalf("populate: %v", err)
	}
	r.RemoveDomain("apollo")
	if r.HasDomain("apollo") {
		t.Fatalf("expected apollo to be removed")
	}
	if _, ok := r.Get("a"); ok {
		t.Fatalf("expected tool a to be removed along with its domain")
	}
}
