// Package upstream manages MCP client connections to the domains
// registered with the gateway: one persistent discovery connection per
// domain used for tools/list during populate and refresh cycles, and a
// fresh execution connection per tools/call that carries the caller's
// merged request headers.
package upstream
