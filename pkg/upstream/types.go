package upstream

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// domainState holds everything the manager tracks for one registered
// upstream domain: its connection coordinates, static headers, and the
// persistent discovery client once connected.
type domainState struct {
	url           string
	description   *string
	staticHeaders map[string]string

	mu               sync.Mutex
	discoveryClient  *mcp.Client
	discoverySession *mcp.ClientSession
}

func (d *domainState) cloneStaticHeaders() map[string]string {
	if len(d.staticHeaders) == 0 {
		return nil
	}
	out := make(map[string]string, len(d.staticHeaders))
	for k, v := range d.staticHeaders {
		out[k] = v
	}
	return out
}

// ExecuteResult is the outcome of a single tools/call against an upstream
// domain, reduced to the shape the gateway's meta-tools need: text content
// joined for display, and whether the upstream itself reported an error.
type ExecuteResult struct {
	Text    string
	IsError bool
	Raw     *mcp.CallToolResult
}

// ErrUnknownDomain is returned by operations addressed to a domain that was
// never registered via AddUpstream.
type ErrUnknownDomain struct {
	Domain string
}

func (e *ErrUnknownDomain) Error() string {
	return fmt.Sprintf("upstream: unknown domain %q", e.Domain)
}

// hopByHopHeaders lists the headers stripped from forwarded request
// headers before they reach an upstream, covering RFC 7230's
// connection-scoped headers plus the framing headers that don't survive a
// re-proxied request.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
	"Host",
}

func stripHopByHop(h http.Header) http.Header {
	if len(h) == 0 {
		return nil
	}
	out := make(http.Header, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	for _, k := range hopByHopHeaders {
		out.Del(k)
	}
	return out
}
