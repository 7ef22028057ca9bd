package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// headerTransport forces a fixed header set onto every outgoing request,
// deleting any existing value for the same key first so the caller's
// headers always win over whatever the transport or a redirected request
// would otherwise set.
type headerTransport struct {
	next    http.RoundTripper
	headers http.Header
}

func (h *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(h.headers) > 0 {
		if req.Header == nil {
			req.Header = make(http.Header)
		}
		for k, values := range h.headers {
			req.Header.Del(k)
			for _, v := range values {
				req.Header.Add(k, v)
			}
		}
	}
	next := h.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}

func httpClientWithHeaders(headers http.Header) *http.Client {
	return &http.Client{Transport: &headerTransport{headers: headers}}
}

// connect dials url, attempting the Streamable HTTP transport first and
// falling back to SSE if the upstream only advertises the older transport,
// mirroring the teacher's establishHTTPSession negotiation.
func connect(ctx context.Context, domain, url string, headers http.Header, impl *mcp.Implementation, logger *slog.Logger) (*mcp.ClientSession, *mcp.Client, error) {
	if url == "" {
		return nil, nil, fmt.Errorf("upstream: empty connection url")
	}

	attempt := func(ctx context.Context, transport mcp.Transport) (*mcp.ClientSession, *mcp.Client, error) {
		client := mcp.NewClient(impl, nil)
		session, err := client.Connect(ctx, newLoggingTransport(domain, transport, logger), nil)
		if err != nil {
			return nil, nil, err
		}
		return session, client, nil
	}

	preferSSE := strings.HasSuffix(strings.TrimSpace(url), "/sse")

	streamTransport := &mcp.StreamableClientTransport{
		Endpoint:   url,
		HTTPClient: httpClientWithHeaders(headers),
	}
	sseTransport := &mcp.SSEClientTransport{
		Endpoint:   url,
		HTTPClient: httpClientWithHeaders(headers),
	}

	var streamErr error
	if !preferSSE {
		session, client, err := attempt(ctx, streamTransport)
		if err == nil {
			return session, client, nil
		}
		streamErr = err
	}

	session, client, err := attempt(ctx, sseTransport)
	if err != nil {
		if streamErr != nil {
			return nil, nil, fmt.Errorf("streamable error: %v; sse error: %w", streamErr, err)
		}
		return nil, nil, err
	}
	return session, client, nil
}
