package metatools

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type toolSchemaResponse struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Group       string `json:"group,omitempty"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

func (s *Service) handleGetToolSchema(ctx context.Context, req *mcp.CallToolRequest, args GetToolSchemaArgs) (*mcp.CallToolResult, any, error) {
	ctx, span := tracer.Start(ctx, "metatools.get_tool_schema")
	defer span.End()

	headers := headersFromRequest(ctx)

	entry, suggestions, err := s.resolveVisible(ctx, headers, args.ToolName)
	if err != nil {
		return textResult(errorJSON(err.Error(), CodeExecutionError, nil))
	}
	if entry == nil {
		return textResult(toolNotFoundEnvelope(args.ToolName, suggestions))
	}

	payload, _ := json.Marshal(toolSchemaResponse{
		Name:        entry.Name,
		Domain:      entry.Domain,
		Group:       entry.Group,
		Description: entry.Description,
		Parameters:  entry.InputSchema,
	})
	return textResult(string(payload))
}
