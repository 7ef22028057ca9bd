package upstream

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// loggingTransport wraps an upstream mcp.Transport to emit every JSON-RPC
// message at debug level, keyed by domain. Adapted from the teacher's
// pkg/mcpmgr.loggingTransport/loggingConnection, with the RPCLogger callback
// collapsed into a direct *slog.Logger since the gateway has no equivalent
// of the manager's external event-subscriber API.
type loggingTransport struct {
	domain   string
	delegate mcp.Transport
	logger   *slog.Logger
}

func newLoggingTransport(domain string, delegate mcp.Transport, logger *slog.Logger) mcp.Transport {
	if logger == nil {
		return delegate
	}
	return &loggingTransport{domain: domain, delegate: delegate, logger: logger}
}

func (t *loggingTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.delegate.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &loggingConnection{domain: t.domain, delegate: conn, logger: t.logger}, nil
}

type loggingConnection struct {
	domain   string
	delegate mcp.Connection
	logger   *slog.Logger
}

func (c *loggingConnection) SessionID() string { return c.delegate.SessionID() }

func (c *loggingConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	msg, err := c.delegate.Read(ctx)
	if err == nil {
		c.emit("receive", msg)
	}
	return msg, err
}

func (c *loggingConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if err := c.delegate.Write(ctx, msg); err != nil {
		return err
	}
	c.emit("send", msg)
	return nil
}

func (c *loggingConnection) Close() error { return c.delegate.Close() }

func (c *loggingConnection) emit(direction string, msg jsonrpc.Message) {
	encoded, err := json.Marshal(msg)
	if err != nil {
		encoded = []byte(err.Error())
	}
	c.logger.Debug("upstream rpc", "domain", c.domain, "direction", direction, "message", string(encoded))
}
