package hooks

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fastmcp/mcp-gateway/pkg/registry"
)

// ExecutionContext is the mutable carrier that flows through the hook
// pipeline for one execute_tool call.
type ExecutionContext struct {
	Tool         *registry.ToolEntry
	Arguments    map[string]any
	Headers      http.Header
	User         any
	ExtraHeaders map[string]string
	Metadata     map[string]any
}

// ListToolsContext is the carrier for tool-list filtering hooks.
type ListToolsContext struct {
	// Domain is nil when listing across all domains or searching.
	Domain  *string
	Headers http.Header
	User    any
}

// ExecutionDenied is returned by BeforeExecute to short-circuit execution.
// The gateway translates it into a structured error response using Code.
type ExecutionDenied struct {
	Message string
	Code    string
}

func (e *ExecutionDenied) Error() string { return e.Message }

// NewExecutionDenied builds an ExecutionDenied, defaulting Code to "forbidden".
func NewExecutionDenied(message string, code string) *ExecutionDenied {
	if code == "" {
		code = "forbidden"
	}
	return &ExecutionDenied{Message: message, Code: code}
}

// AuthenticateHook resolves a user identity from incoming request headers.
type AuthenticateHook interface {
	OnAuthenticate(ctx context.Context, headers http.Header) (any, error)
}

// BeforeExecuteHook runs before the upstream tools/call. Returning an
// *ExecutionDenied stops the pipeline and denies execution; any other
// non-nil error is treated as an internal execution_error.
type BeforeExecuteHook interface {
	BeforeExecute(ctx context.Context, ec *ExecutionContext) error
}

// AfterExecuteHook transforms the result string after the upstream call returns.
type AfterExecuteHook interface {
	AfterExecute(ctx context.Context, ec *ExecutionContext, result string, isError bool) (string, error)
}

// AfterListToolsHook filters or transforms the candidate tool list for
// discover_tools / get_tool_schema.
type AfterListToolsHook interface {
	AfterListTools(ctx context.Context, lc *ListToolsContext, tools []*registry.ToolEntry) ([]*registry.ToolEntry, error)
}

// OnErrorHook observes execution errors. Implementations should not be
// relied on for control flow: panics and errors raised here are recovered,
// logged, and swallowed by HookRunner.
type OnErrorHook interface {
	OnError(ctx context.Context, ec *ExecutionContext, err error)
}

// HookRunner holds an ordered list of hooks and orchestrates lifecycle
// execution. The runner itself performs no synchronization over hook state;
// hook authors own their own thread-safety.
type HookRunner struct {
	hooks  []any
	logger *slog.Logger
}

// NewRunner constructs a HookRunner over the given hooks, in registration order.
func NewRunner(logger *slog.Logger, hooks ...any) *HookRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &HookRunner{hooks: hooks, logger: logger.With("component", "hooks")}
}

// Add registers an additional hook, appended to the end of the list.
func (r *HookRunner) Add(hook any) {
	r.hooks = append(r.hooks, hook)
}

// HasHooks reports whether any hooks are registered.
func (r *HookRunner) HasHooks() bool {
	return len(r.hooks) > 0
}

// RunAuthenticate executes every OnAuthenticate hook; the last non-nil
// result across hooks wins.
func (r *HookRunner) RunAuthenticate(ctx context.Context, headers http.Header) (any, error) {
	var user any
	for _, h := range r.hooks {
		hook, ok := h.(AuthenticateHook)
		if !ok {
			continue
		}
		result, err := hook.OnAuthenticate(ctx, headers)
		if err != nil {
			return nil, err
		}
		if result != nil {
			user = result
		}
	}
	return user, nil
}

// RunBeforeExecute executes every BeforeExecute hook in order. Any hook
// returning a non-nil error stops the chain; the caller should check
// errors.As for *ExecutionDenied to distinguish a deliberate denial from an
// unexpected hook failure.
func (r *HookRunner) RunBeforeExecute(ctx context.Context, ec *ExecutionContext) error {
	for _, h := range r.hooks {
		hook, ok := h.(BeforeExecuteHook)
		if !ok {
			continue
		}
		if err := hook.BeforeExecute(ctx, ec); err != nil {
			return err
		}
	}
	return nil
}

// RunAfterExecute pipelines result through every AfterExecute hook.
func (r *HookRunner) RunAfterExecute(ctx context.Context, ec *ExecutionContext, result string, isError bool) (string, error) {
	current := result
	for _, h := range r.hooks {
		hook, ok := h.(AfterExecuteHook)
		if !ok {
			continue
		}
		next, err := hook.AfterExecute(ctx, ec, current, isError)
		if err != nil {
			return current, err
		}
		current = next
	}
	return current, nil
}

// RunAfterListTools pipelines tools through every AfterListTools hook. The
// input slice is copied before the first call so hooks never observe or
// mutate the registry's own backing slice.
func (r *HookRunner) RunAfterListTools(ctx context.Context, lc *ListToolsContext, tools []*registry.ToolEntry) ([]*registry.ToolEntry, error) {
	current := append([]*registry.ToolEntry(nil), tools...)
	for _, h := range r.hooks {
		hook, ok := h.(AfterListToolsHook)
		if !ok {
			continue
		}
		next, err := hook.AfterListTools(ctx, lc, current)
		if err != nil {
			return current, err
		}
		current = next
	}
	return current, nil
}

// RunOnError executes every OnError hook. Fault-tolerant: a panicking or
// erroring hook is recovered, logged, and does not affect its siblings.
func (r *HookRunner) RunOnError(ctx context.Context, ec *ExecutionContext, cause error) {
	for _, h := range r.hooks {
		hook, ok := h.(OnErrorHook)
		if !ok {
			continue
		}
		r.runOnErrorSafely(ctx, hook, ec, cause)
	}
}

func (r *HookRunner) runOnErrorSafely(ctx context.Context, hook OnErrorHook, ec *ExecutionContext, cause error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("hook OnError panicked", "panic", rec)
		}
	}()
	hook.OnError(ctx, ec, cause)
}
