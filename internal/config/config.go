// Package config parses the gateway's environment-variable configuration
// surface into a single Config struct, in the construction-with-defaults
// style of the teacher's pkg/mcpmgr.ManagerOptions and pkg/mcp-gateway.Options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every GATEWAY_* environment variable, decoded and validated.
type Config struct {
	Name               string
	Host               string
	Port               string
	Instructions       string
	Upstreams          map[string]string
	DomainDescriptions map[string]string
	UpstreamHeaders    map[string]map[string]string
	RegistryAuthToken  string
	RefreshInterval    time.Duration
	HookModule         string
	RegistrationToken  string
	LogLevel           string
}

// Load reads and validates the gateway's configuration from the process
// environment. GATEWAY_UPSTREAMS is required; everything else has a
// zero-value or documented default.
func Load() (*Config, error) {
	cfg := &Config{
		Name:     getenvDefault("GATEWAY_NAME", "fastmcp-gateway"),
		Host:     getenvDefault("GATEWAY_HOST", ""),
		Port:     getenvDefault("GATEWAY_PORT", "8700"),
		LogLevel: getenvDefault("LOG_LEVEL", "info"),

		Instructions:      os.Getenv("GATEWAY_INSTRUCTIONS"),
		RegistryAuthToken: os.Getenv("GATEWAY_REGISTRY_AUTH_TOKEN"),
		HookModule:        os.Getenv("GATEWAY_HOOK_MODULE"),
		RegistrationToken: os.Getenv("GATEWAY_REGISTRATION_TOKEN"),
	}

	raw, ok := os.LookupEnv("GATEWAY_UPSTREAMS")
	if !ok || raw == "" {
		return nil, fmt.Errorf("config: GATEWAY_UPSTREAMS is required")
	}
	if err := json.Unmarshal([]byte(raw), &cfg.Upstreams); err != nil {
		return nil, fmt.Errorf("config: GATEWAY_UPSTREAMS: %w", err)
	}
	if len(cfg.Upstreams) == 0 {
		return nil, fmt.Errorf("config: GATEWAY_UPSTREAMS must list at least one domain")
	}

	if raw := os.Getenv("GATEWAY_DOMAIN_DESCRIPTIONS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.DomainDescriptions); err != nil {
			return nil, fmt.Errorf("config: GATEWAY_DOMAIN_DESCRIPTIONS: %w", err)
		}
	}

	if raw := os.Getenv("GATEWAY_UPSTREAM_HEADERS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.UpstreamHeaders); err != nil {
			return nil, fmt.Errorf("config: GATEWAY_UPSTREAM_HEADERS: %w", err)
		}
	}

	if raw := os.Getenv("GATEWAY_REFRESH_INTERVAL"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: GATEWAY_REFRESH_INTERVAL: %w", err)
		}
		if secs > 0 {
			cfg.RefreshInterval = time.Duration(secs) * time.Second
		}
	}

	return cfg, nil
}

// Addr formats Host/Port as a net/http listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// HeadersFor returns the static headers configured for domain, merged with
// the registry-wide bearer token (when set) under the Authorization key,
// without mutating the caller's map. Per-domain headers win on conflict.
func (c *Config) HeadersFor(domain string) map[string]string {
	headers := make(map[string]string)
	if c.RegistryAuthToken != "" {
		headers["Authorization"] = "Bearer " + c.RegistryAuthToken
	}
	for k, v := range c.UpstreamHeaders[domain] {
		headers[k] = v
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
