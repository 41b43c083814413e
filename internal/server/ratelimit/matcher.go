package ratelimit

import (
	"strings"
)

// MatchEndpoint matches a request path and method to an endpoint configuration.
// Returns nil when nothing matches. Paths ending in "/" match by prefix.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	// health checks and preflights are never limited
	if (path == "/health" && method == "GET") || method == "OPTIONS" {
		return &EndpointConfig{}
	}

	for i := range configs {
		config := &configs[i]
		if config.Path == path && methodMatches(config.Method, method) {
			return config
		}
	}

	for i := range configs {
		config := &configs[i]
		if strings.HasSuffix(config.Path, "/") && strings.HasPrefix(path, config.Path) && methodMatches(config.Method, method) {
			return config
		}
	}

	return nil
}

func methodMatches(pattern, method string) bool {
	return pattern == "" || pattern == method
}
