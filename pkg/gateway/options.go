package gateway

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Options configure a GatewayServer instance. Adapted from the teacher's
// pkg/mcp-gateway.Options construction-with-defaults pattern.
type Options struct {
	// Implementation identifies the gateway's own MCP server implementation
	// metadata, advertised to connecting clients during handshake.
	Implementation *mcp.Implementation
	// Addr controls the listen address used by Serve. Defaults to ":8700".
	Addr string
	// Path mounts the MCP Streamable handler under a specific HTTP path.
	// Defaults to "/mcp".
	Path string
	// Instructions, if non-empty, overrides the dynamically built
	// InitializeResult.Instructions and is never recomputed on refresh.
	Instructions string
	// RefreshInterval enables the background refresh loop when positive.
	RefreshInterval time.Duration
	// RegistrationToken enables the dynamic registration REST API
	// (/registry/servers) when non-empty.
	RegistrationToken string
	// TokenVerifier, when set, gates the /mcp endpoint behind a bearer
	// token independent of RegistrationToken. Mirrors the teacher's
	// gateway_auth_test.go resource-server contract.
	TokenVerifier auth.TokenVerifier
	// TokenOptions configures the bearer-token challenge; requires
	// TokenVerifier to be set.
	TokenOptions *auth.RequireBearerTokenOptions
	// AuthorizationServer, when set alongside TokenOptions, is advertised
	// from the OAuth protected-resource metadata endpoint.
	AuthorizationServer string
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Streamable tweaks the Streamable HTTP handler passed to
	// mcp.NewStreamableHTTPHandler.
	Streamable mcp.StreamableHTTPOptions
}

func (o *Options) withDefaults() (Options, error) {
	if o == nil {
		o = &Options{}
	}
	opts := *o
	if opts.Implementation == nil {
		opts.Implementation = &mcp.Implementation{
			Name:    "fastmcp-gateway",
			Title:   "Progressive Tool Discovery Gateway",
			Version: "1.0.0",
		}
	} else {
		impl := *opts.Implementation
		opts.Implementation = &impl
	}
	if opts.Addr == "" {
		opts.Addr = ":8700"
	}
	if opts.Path == "" {
		opts.Path = "/mcp"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TokenOptions != nil && opts.TokenVerifier == nil {
		return opts, fmt.Errorf("gateway: TokenOptions set without a TokenVerifier")
	}
	return opts, nil
}
