// Package metatools implements the four tools the gateway exposes to MCP
// clients in place of every upstream tool directly: discover_tools,
// get_tool_schema, execute_tool, and refresh_registry. Each returns a JSON
// text payload, success or error, rather than a protocol-level tool error,
// so a client always gets a well-formed answer it can branch on.
package metatools
