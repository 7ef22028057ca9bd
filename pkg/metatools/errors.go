package metatools

import "encoding/json"

// Error codes shared by every meta-tool's error envelope.
const (
	CodeToolNotFound   = "tool_not_found"
	CodeDomainNotFound = "domain_not_found"
	CodeGroupNotFound  = "group_not_found"
	CodeExecutionError = "execution_error"
	CodeUpstreamError  = "upstream_error"
	CodeRefreshError   = "refresh_error"
	CodeForbidden      = "forbidden"
)

// errorEnvelope is the uniform shape of every meta-tool error response.
type errorEnvelope struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func errorJSON(message, code string, details map[string]any) string {
	b, err := json.Marshal(errorEnvelope{Error: message, Code: code, Details: details})
	if err != nil {
		// json.Marshal only fails on unsupported types; errorEnvelope's
		// fields are all marshalable, so fall back to a literal that is
		// still valid JSON rather than propagating the encoding failure.
		return `{"error":"internal encoding error","code":"execution_error"}`
	}
	return string(b)
}

func suggestionDetails(suggestions []string) map[string]any {
	if len(suggestions) == 0 {
		return nil
	}
	return map[string]any{"suggestions": suggestions}
}
