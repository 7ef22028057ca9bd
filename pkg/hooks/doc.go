// Package hooks implements the gateway's lifecycle callback pipeline:
// authentication, tool-list filtering, pre/post execution, and error
// observability. A hook implements any subset of the five capability
// interfaces defined here; HookRunner consults only the interfaces each
// registered hook actually satisfies.
package hooks
