package ratelimit

import (
	"time"
)

// Defaults used when no configuration is supplied
const (
	DefaultRequestsPerMinute = 30
	DefaultBurst             = 5
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method; empty matches any method
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// NewConfig builds a configuration where analysis endpoints are limited to
// requestsPerMinute with the given burst, and everything else gets ten times that.
func NewConfig(requestsPerMinute, burst int) *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    requestsPerMinute * 10,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       make(map[string]bool),
		Blacklist:       make(map[string]bool),
		EndpointConfigs: DefaultEndpointConfigs(requestsPerMinute, burst),
	}
}

// DisabledConfig returns a configuration that allows every request.
func DisabledConfig() *Config {
	return &Config{Enabled: false}
}

// DefaultEndpointConfigs returns the endpoint-specific configurations.
// Each analysis invokes a paid model, so those endpoints get the strict limit.
func DefaultEndpointConfigs(requestsPerMinute, burst int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/api/contract/analyze", Method: "POST", Limit: requestsPerMinute, Window: time.Minute, Burst: burst},
		{Path: "/api/contract/analyze/stream", Method: "POST", Limit: requestsPerMinute, Window: time.Minute, Burst: burst},
	}
}
