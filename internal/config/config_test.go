package config

import (
	"os"
	"testing"
	"time"
)

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GATEWAY_UPSTREAMS", "GATEWAY_NAME", "GATEWAY_HOST", "GATEWAY_PORT",
		"GATEWAY_INSTRUCTIONS", "GATEWAY_REGISTRY_AUTH_TOKEN", "GATEWAY_DOMAIN_DESCRIPTIONS",
		"GATEWAY_UPSTREAM_HEADERS", "GATEWAY_REFRESH_INTERVAL", "GATEWAY_HOOK_MODULE",
		"GATEWAY_REGISTRATION_TOKEN", "LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadRequiresUpstreams(t *testing.T) {
	clearGatewayEnv(t)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when GATEWAY_UPSTREAMS is unset")
	}
}

func TestLoadParsesUpstreamsAndDefaults(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("GATEWAY_UPSTREAMS", `{"clearbit":"https://clearbit.example/mcp"}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "fastmcp-gateway" {
		t.Fatalf("Name = %q, want default", cfg.Name)
	}
	if cfg.Port != "8700" {
		t.Fatalf("Port = %q, want default 8700", cfg.Port)
	}
	if cfg.Upstreams["clearbit"] != "https://clearbit.example/mcp" {
		t.Fatalf("unexpected upstreams: %+v", cfg.Upstreams)
	}
	if cfg.Addr() != ":8700" {
		t.Fatalf("Addr() = %q", cfg.Addr())
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("GATEWAY_UPSTREAMS", `{"clearbit":"https://clearbit.example/mcp"}`)
	t.Setenv("GATEWAY_DOMAIN_DESCRIPTIONS", `not-json`)

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed GATEWAY_DOMAIN_DESCRIPTIONS")
	}
}

func TestLoadRefreshInterval(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("GATEWAY_UPSTREAMS", `{"clearbit":"https://clearbit.example/mcp"}`)
	t.Setenv("GATEWAY_REFRESH_INTERVAL", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Fatalf("RefreshInterval = %v, want 30s", cfg.RefreshInterval)
	}
}

func TestHeadersForMergesRegistryToken(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("GATEWAY_UPSTREAMS", `{"clearbit":"https://clearbit.example/mcp"}`)
	t.Setenv("GATEWAY_REGISTRY_AUTH_TOKEN", "shared-token")
	t.Setenv("GATEWAY_UPSTREAM_HEADERS", `{"clearbit":{"Authorization":"Bearer per-domain"}}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	headers := cfg.HeadersFor("clearbit")
	if headers["Authorization"] != "Bearer per-domain" {
		t.Fatalf("expected per-domain header to win, got %q", headers["Authorization"])
	}

	headers = cfg.HeadersFor("other")
	if headers["Authorization"] != "Bearer shared-token" {
		t.Fatalf("expected registry token fallback, got %q", headers["Authorization"])
	}
}
