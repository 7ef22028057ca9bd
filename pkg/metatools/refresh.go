package metatools

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fastmcp/mcp-gateway/pkg/registry"
)

func (s *Service) handleRefreshRegistry(ctx context.Context, req *mcp.CallToolRequest, args RefreshRegistryArgs) (*mcp.CallToolResult, any, error) {
	ctx, span := tracer.Start(ctx, "metatools.refresh_registry")
	defer span.End()

	diffs, failed := s.upstream.RefreshAll(ctx)
	if diffs == nil {
		diffs = []registry.RegistryDiff{}
	}
	if failed == nil {
		failed = []string{}
	}

	payload, _ := json.Marshal(struct {
		Diffs  []registry.RegistryDiff `json:"diffs"`
		Failed []string                `json:"failed"`
	}{Diffs: diffs, Failed: failed})
	return textResult(string(payload))
}
