package hooks

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/fastmcp/mcp-gateway/pkg/registry"
)

type fakeHook struct {
	authResult    any
	beforeErr     error
	beforeCalled  *bool
	afterSuffix   string
	afterListKeep func(*registry.ToolEntry) bool
	onErrorPanic  bool
	onErrorCalled *bool
}

func (f *fakeHook) OnAuthenticate(ctx context.Context, headers http.Header) (any, error) {
	return f.authResult, nil
}

func (f *fakeHook) BeforeExecute(ctx context.Context, ec *ExecutionContext) error {
	if f.beforeCalled != nil {
		*f.beforeCalled = true
	}
	return f.beforeErr
}

func (f *fakeHook) AfterExecute(ctx context.Context, ec *ExecutionContext, result string, isError bool) (string, error) {
	return result + f.afterSuffix, nil
}

func (f *fakeHook) AfterListTools(ctx context.Context, lc *ListToolsContext, tools []*registry.ToolEntry) ([]*registry.ToolEntry, error) {
	if f.afterListKeep == nil {
		return tools, nil
	}
	var out []*registry.ToolEntry
	for _, t := range tools {
		if f.afterListKeep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeHook) OnError(ctx context.Context, ec *ExecutionContext, err error) {
	if f.onErrorCalled != nil {
		*f.onErrorCalled = true
	}
	if f.onErrorPanic {
		panic("boom")
	}
}

func TestRunAuthenticateLastNonNilWins(t *testing.T) {
	t.Parallel()
	r := NewRunner(nil, &fakeHook{authResult: "a"}, &fakeHook{authResult: nil}, &fakeHook{authResult: "b"})
	user, err := r.RunAuthenticate(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != "b" {
		t.Fatalf("expected last non-nil result %q, got %v", "b", user)
	}
}

func TestRunAuthenticateAllNilReturnsNil(t *testing.T) {
	t.Parallel()
	r := NewRunner(nil, &fakeHook{}, &fakeHook{})
	user, err := r.RunAuthenticate(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user, got %v", user)
	}
}

func TestRunBeforeExecuteShortCircuitsOnDenial(t *testing.T) {
	t.Parallel()
	denial := NewExecutionDenied("no permission", "forbidden")
	calledSecond := false
	r := NewRunner(nil,
		&fakeHook{beforeErr: denial},
		&fakeHook{beforeCalled: &calledSecond},
	)
	err := r.RunBeforeExecute(context.Background(), &ExecutionContext{})
	var denied *ExecutionDenied
	if !errors.As(err, &denied) {
		t.Fatalf("expected *ExecutionDenied, got %v", err)
	}
	if denied.Code != "forbidden" || denied.Message != "no permission" {
		t.Fatalf("unexpected denial: %+v", denied)
	}
	if calledSecond {
		t.Fatalf("remaining hooks should be skipped after denial")
	}
}

func TestRunAfterExecutePipelines(t *testing.T) {
	t.Parallel()
	r := NewRunner(nil, &fakeHook{afterSuffix: "-a"}, &fakeHook{afterSuffix: "-b"})
	result, err := r.RunAfterExecute(context.Background(), &ExecutionContext{}, "base", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "base-a-b" {
		t.Fatalf("expected pipelined result, got %q", result)
	}
}

func TestRunAfterListToolsCopiesInputAndFilters(t *testing.T) {
	t.Parallel()
	visible := &registry.ToolEntry{Name: "visible"}
	hidden := &registry.ToolEntry{Name: "hidden"}
	input := []*registry.ToolEntry{visible, hidden}

	keepVisible := func(e *registry.ToolEntry) bool { return e.Name != "hidden" }
	r := NewRunner(nil, &fakeHook{afterListKeep: keepVisible})

	out, err := r.RunAfterListTools(context.Background(), &ListToolsContext{}, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Name != "visible" {
		t.Fatalf("unexpected filtered output: %+v", out)
	}
	if len(input) != 2 {
		t.Fatalf("hook must not mutate the caller's input slice, got %+v", input)
	}
}

func TestRunOnErrorSwallowsPanics(t *testing.T) {
	t.Parallel()
	called := false
	r := NewRunner(nil, &fakeHook{onErrorPanic: true, onErrorCalled: &called})
	r.RunOnError(context.Background(), &ExecutionContext{}, errors.New("boom"))
	if !called {
		t.Fatalf("expected OnError to be invoked")
	}
}

func TestBuildUnregisteredFactory(t *testing.T) {
	t.Parallel()
	if _, err := Build("does-not-exist", ""); err == nil {
		t.Fatalf("expected error for unregistered factory")
	}
}
