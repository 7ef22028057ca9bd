package metatools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fastmcp/mcp-gateway/pkg/hooks"
)

func (s *Service) handleExecuteTool(ctx context.Context, req *mcp.CallToolRequest, args ExecuteToolArgs) (*mcp.CallToolResult, any, error) {
	ctx, span := tracer.Start(ctx, "metatools.execute_tool")
	defer span.End()

	headers := headersFromRequest(ctx)

	entry, suggestions, err := s.resolveVisible(ctx, headers, args.ToolName)
	if err != nil {
		return textResult(errorJSON(err.Error(), CodeExecutionError, nil))
	}
	if entry == nil {
		return textResult(toolNotFoundEnvelope(args.ToolName, suggestions))
	}

	user, err := s.hooks.RunAuthenticate(ctx, headers)
	if err != nil {
		return textResult(errorJSON(err.Error(), CodeExecutionError, nil))
	}

	arguments := args.Arguments
	if arguments == nil {
		arguments = map[string]any{}
	}
	execCtx := &hooks.ExecutionContext{
		Tool:         entry,
		Arguments:    arguments,
		Headers:      headers,
		User:         user,
		ExtraHeaders: map[string]string{},
		Metadata:     map[string]any{},
	}

	if err := s.hooks.RunBeforeExecute(ctx, execCtx); err != nil {
		var denied *hooks.ExecutionDenied
		if errors.As(err, &denied) {
			return textResult(errorJSON(denied.Message, denied.Code, nil))
		}
		return textResult(errorJSON(err.Error(), CodeExecutionError, nil))
	}

	result, err := s.upstream.Execute(ctx, entry, execCtx.Arguments, execCtx.Headers, execCtx.ExtraHeaders)
	if err != nil {
		s.hooks.RunOnError(ctx, execCtx, err)
		return textResult(errorJSON(err.Error(), CodeUpstreamError, nil))
	}

	resultText, err := s.hooks.RunAfterExecute(ctx, execCtx, result.Text, result.IsError)
	if err != nil {
		return textResult(errorJSON(err.Error(), CodeExecutionError, nil))
	}

	if result.IsError {
		payload, _ := json.Marshal(struct {
			Tool  string `json:"tool"`
			Error string `json:"error"`
			Code  string `json:"code"`
		}{Tool: entry.Name, Error: resultText, Code: CodeExecutionError})
		return textResult(string(payload))
	}

	payload, _ := json.Marshal(struct {
		Tool   string `json:"tool"`
		Result string `json:"result"`
	}{Tool: entry.Name, Result: resultText})
	return textResult(string(payload))
}
