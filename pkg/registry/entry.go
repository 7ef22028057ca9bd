package registry

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolEntry is one tool known to the gateway, sourced from exactly one
// upstream domain.
type ToolEntry struct {
	// Name is the gateway-facing tool name. Equal to OriginalName unless a
	// collision with another domain forced a "{domain}_{original}" rename.
	Name string
	// OriginalName is the name as registered by the upstream; always used on
	// the wire when calling back into that upstream.
	OriginalName string
	// Domain identifies the upstream that owns this tool.
	Domain string
	// Group is an optional sub-category within Domain. Empty when absent.
	Group string
	// Description is human-readable text intended for LLM consumption.
	Description string
	// InputSchema is the JSON Schema describing the tool's parameters.
	InputSchema *jsonschema.Schema
	// Annotations carries optional MCP tool annotations (ReadOnlyHint, etc).
	Annotations *mcp.ToolAnnotations
}

// DomainInfo summarizes one upstream domain for browsing and for the
// registration API.
type DomainInfo struct {
	Name          string
	URL           string
	Description   string
	ToolCount     int
	Groups        []string
	StaticHeaders map[string]string
}

// RegistryDiff reports the result of one PopulateDomain call.
type RegistryDiff struct {
	Domain    string   `json:"domain"`
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	ToolCount int      `json:"tool_count"`
}

// Empty reports whether the diff represents no change to the domain's tool set.
func (d RegistryDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}
