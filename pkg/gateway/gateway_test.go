package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fastmcp/mcp-gateway/pkg/hooks"
	"github.com/fastmcp/mcp-gateway/pkg/registry"
	"github.com/fastmcp/mcp-gateway/pkg/upstream"
)

// newFakeUpstream starts a local MCP server exposing a single "echo" tool.
func newFakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	server := mcp.NewServer(&mcp.Implementation{Name: "fake-upstream", Version: "1.0.0"}, &mcp.ServerOptions{HasTools: true})
	server.AddTool(&mcp.Tool{Name: "echo", Description: "echoes back a fixed reply"}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "ok"}}}, nil
	})
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	return httptest.NewServer(handler)
}

func newPopulatedGateway(t *testing.T, opts *Options) *GatewayServer {
	t.Helper()
	upstreamSrv := newFakeUpstream(t)
	t.Cleanup(upstreamSrv.Close)

	reg := registry.New(nil)
	mgr := upstream.New(reg, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := mgr.AddUpstream(ctx, "fake", upstreamSrv.URL, nil, nil); err != nil {
		t.Fatalf("AddUpstream: %v", err)
	}

	gw, err := New(reg, mgr, hooks.NewRunner(nil), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := gw.Populate(ctx); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	return gw
}

func TestHealthzAlwaysOK(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network-backed gateway test in short mode")
	}
	t.Parallel()
	gw := newPopulatedGateway(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
}

func TestReadyzReportsPopulatedDomains(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network-backed gateway test in short mode")
	}
	t.Parallel()
	gw := newPopulatedGateway(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200", rec.Code)
	}
}

func TestReadyzBeforePopulateIsUnavailable(t *testing.T) {
	t.Parallel()
	reg := registry.New(nil)
	mgr := upstream.New(reg, nil, nil)
	gw, err := New(reg, mgr, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	gw.handleReadyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503 before Populate", rec.Code)
	}
}

func TestRegistrationAPIRequiresBearerToken(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network-backed gateway test in short mode")
	}
	t.Parallel()
	gw := newPopulatedGateway(t, &Options{RegistrationToken: "s3cret-registration-token"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/registry/servers", nil)
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without a bearer token", rec.Code)
	}
}

func TestRegistrationAPIListsAndRemovesServers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network-backed gateway test in short mode")
	}
	t.Parallel()
	const token = "s3cret-registration-token"
	gw := newPopulatedGateway(t, &Options{RegistrationToken: token})

	listReq := httptest.NewRequest(http.MethodGet, "/registry/servers", nil)
	listReq.Header.Set("Authorization", "Bearer "+token)
	listRec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200, body=%s", listRec.Code, listRec.Body.String())
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/registry/servers/fake", nil)
	delReq.Header.Set("Authorization", "Bearer "+token)
	delRec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204, body=%s", delRec.Code, delRec.Body.String())
	}

	delAgainReq := httptest.NewRequest(http.MethodDelete, "/registry/servers/fake", nil)
	delAgainReq.Header.Set("Authorization", "Bearer "+token)
	delAgainRec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(delAgainRec, delAgainReq)
	if delAgainRec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", delAgainRec.Code)
	}
}

func TestRegistrationAPIRejectsInvalidURL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network-backed gateway test in short mode")
	}
	t.Parallel()
	const token = "s3cret-registration-token"
	gw := newPopulatedGateway(t, &Options{RegistrationToken: token})

	body := strings.NewReader(`{"domain":"bad","url":"not-a-url"}`)
	req := httptest.NewRequest(http.MethodPost, "/registry/servers", body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
}

func TestServeMuxAllowsExtraRoutes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network-backed gateway test in short mode")
	}
	t.Parallel()
	gw := newPopulatedGateway(t, nil)
	gw.ServeMux().HandleFunc("/custom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/custom", nil)
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418 from custom route", rec.Code)
	}
}
