// Command gateway runs the progressive tool-discovery MCP gateway: it loads
// configuration from the environment, populates the tool registry from every
// configured upstream, and serves the gateway's own MCP surface plus health
// and (optionally) dynamic-registration endpoints until signalled to stop.
// Grounded on the teacher's cmd/gateway-example/main.go: flat func main(),
// no command tree.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/fastmcp/mcp-gateway/internal/config"
	"github.com/fastmcp/mcp-gateway/pkg/gateway"
	"github.com/fastmcp/mcp-gateway/pkg/hooks"
	"github.com/fastmcp/mcp-gateway/pkg/registry"
	"github.com/fastmcp/mcp-gateway/pkg/upstream"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gateway exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var (
		flagPort     = pflag.String("port", "", "override GATEWAY_PORT")
		flagLogLevel = pflag.String("log-level", "", "override LOG_LEVEL")
	)
	pflag.Parse()
	if *flagPort != "" {
		cfg.Port = *flagPort
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	impl := &mcp.Implementation{Name: cfg.Name, Version: "1.0.0"}

	reg := registry.New(logger)
	mgr := upstream.New(reg, impl, logger)

	hookRunner, err := buildHookRunner(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for domain, url := range cfg.Upstreams {
		var description *string
		if d, ok := cfg.DomainDescriptions[domain]; ok {
			description = &d
		}
		if _, err := mgr.AddUpstream(ctx, domain, url, description, cfg.HeadersFor(domain)); err != nil {
			logger.Warn("initial upstream registration failed", "domain", domain, "error", err)
		}
	}

	gw, err := gateway.New(reg, mgr, hookRunner, &gateway.Options{
		Implementation:    impl,
		Addr:              cfg.Addr(),
		Instructions:      cfg.Instructions,
		RefreshInterval:   cfg.RefreshInterval,
		RegistrationToken: cfg.RegistrationToken,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("construct gateway: %w", err)
	}

	if err := gw.Populate(ctx); err != nil {
		return fmt.Errorf("populate gateway: %w", err)
	}

	logger.Info("gateway listening", "addr", cfg.Addr())
	return gw.Serve(ctx)
}

// buildHookRunner resolves GATEWAY_HOOK_MODULE (a "name" or "name:config"
// string) against the compiled-in hook factory registry.
func buildHookRunner(cfg *config.Config, logger *slog.Logger) (*hooks.HookRunner, error) {
	if cfg.HookModule == "" {
		return hooks.NewRunner(logger), nil
	}

	name, hookConfig, _ := strings.Cut(cfg.HookModule, ":")
	built, err := hooks.Build(name, hookConfig)
	if err != nil {
		return nil, fmt.Errorf("build hooks for %q: %w", name, err)
	}
	return hooks.NewRunner(logger, built...), nil
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}
