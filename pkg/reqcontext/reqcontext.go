// Package reqcontext carries the incoming HTTP request's headers through
// the MCP server's context.Context, from the HTTP middleware that sees the
// raw request down to the meta-tool handlers that need it for
// authentication and header forwarding. Mirrors the teacher's
// bindSession/sessionFromContext context-key pattern in
// pkg/mcp-gateway/gateway.go, applied to headers instead of a session.
package reqcontext

import (
	"context"
	"net/http"
)

type headersKey struct{}

// WithHeaders returns a context carrying a clone of h, so later mutation of
// the original request's header map can't leak into the stored value.
func WithHeaders(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, headersKey{}, h.Clone())
}

// Headers returns the headers stashed by WithHeaders, or an empty, non-nil
// http.Header if none were stashed (e.g. a stdio transport with no HTTP
// request behind it).
func Headers(ctx context.Context) http.Header {
	h, ok := ctx.Value(headersKey{}).(http.Header)
	if !ok || h == nil {
		return http.Header{}
	}
	return h
}
