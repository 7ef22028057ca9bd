// Package registry maintains the in-memory index of tools discovered from
// upstream MCP servers: a domain/group organized view for browsing, a flat
// name index for exact and fuzzy lookup, and the collision-resolution and
// diffing logic that keeps both consistent across repeated population.
package registry
