package veto

import (
	"net/http"
	"time"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithServerAddr sets the veto decision server address. Defaults to
// VETO_SERVER_ADDR.
func WithServerAddr(addr string) Option {
	return func(c *Client) { c.serverAddr = addr }
}

// WithAPIKey sets the API key used to authenticate with the decision
// server. Defaults to VETO_API_KEY (spec §6).
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithFailMode sets the behavior when the server is unreachable: "open"
// (allow, the default) or "closed" (return ServerUnreachableError).
func WithFailMode(mode string) Option {
	return func(c *Client) { c.failMode = mode }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 5s (spec §5's
// default decision deadline for remote paths).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithCacheTTL sets how long an allow decision is cached, keyed by
// (toolName, argument hash).
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.cacheTTL = d }
}

// WithCacheMaxSize caps the number of cached decisions.
func WithCacheMaxSize(n int) Option {
	return func(c *Client) { c.cacheMaxSize = n }
}

// WithHTTPClient overrides the underlying *http.Client (tests, custom
// transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}
