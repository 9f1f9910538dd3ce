package veto

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client is the veto SDK client. It sends DecisionInputs to a veto decision
// server and returns the rendered DecisionResult, caching allow decisions
// client-side so a hot loop of identical calls doesn't round-trip every
// time.
type Client struct {
	serverAddr string
	apiKey     string
	failMode   string
	timeout    time.Duration
	httpClient *http.Client

	cache        sync.Map
	cacheTTL     time.Duration
	cacheMaxSize int
	cacheCount   int64
	cacheMu      sync.Mutex

	logger *slog.Logger
}

type cacheEntry struct {
	result    *DecisionResult
	expiresAt time.Time
	createdAt time.Time
}

// NewClient creates a veto SDK client, reading VETO_* environment variables
// by default; Options override them.
func NewClient(opts ...Option) *Client {
	c := &Client{
		serverAddr:   os.Getenv("VETO_SERVER_ADDR"),
		apiKey:       os.Getenv("VETO_API_KEY"),
		failMode:     envOrDefault("VETO_FAIL_MODE", "open"),
		timeout:      parseDurationEnv("VETO_TIMEOUT", 5*time.Second),
		cacheTTL:     parseDurationEnv("VETO_CACHE_TTL", 5*time.Second),
		cacheMaxSize: parseIntEnv("VETO_CACHE_MAX_SIZE", 1000),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Decide sends a decision request to the server and returns its rendered
// result. On deny it returns a *PolicyDeniedError; on server unreachable
// with fail-mode "open" it returns a synthetic allow (spec §7's
// CircuitOpen-style fail-open behavior, applied here to full server
// unreachability rather than just the breaker).
func (c *Client) Decide(ctx context.Context, input DecisionInput) (*DecisionResult, error) {
	if input.Timestamp.IsZero() {
		input.Timestamp = time.Now()
	}

	key := c.cacheKey(input)
	if res, ok := c.getFromCache(key); ok {
		return res, nil
	}

	res, err := c.doDecide(ctx, input)
	if err != nil {
		if isConnectionError(err) {
			if c.failMode == "closed" {
				return nil, &ServerUnreachableError{Cause: err}
			}
			c.logger.Warn("veto server unreachable, failing open", "server_addr", c.serverAddr, "error", err)
			return &DecisionResult{Allowed: true, Decision: DecisionAllow, Reason: "server unreachable, fail-open"}, nil
		}
		return nil, err
	}

	switch res.Decision {
	case DecisionAllow:
		c.putInCache(key, res)
		return res, nil
	case DecisionDeny:
		return nil, &PolicyDeniedError{
			RuleID: res.RuleID, RuleName: res.RuleName, Reason: res.Reason,
			HelpURL: res.HelpURL, HelpText: res.HelpText, RequestID: res.RequestID,
		}
	default:
		return res, nil
	}
}

// Check is a convenience wrapper returning a bool instead of a
// *PolicyDeniedError.
func (c *Client) Check(ctx context.Context, input DecisionInput) (bool, error) {
	res, err := c.Decide(ctx, input)
	if err != nil {
		var denied *PolicyDeniedError
		if errors.As(err, &denied) {
			return false, nil
		}
		return false, err
	}
	return res.Allowed, nil
}

func (c *Client) doDecide(ctx context.Context, input DecisionInput) (*DecisionResult, error) {
	var res DecisionResult
	if err := c.doRequest(ctx, http.MethodPost, "/v1/decide", input, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	url := strings.TrimRight(c.serverAddr, "/") + path

	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Err: fmt.Errorf("server returned %d: %s", resp.StatusCode, respBody)}
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// cacheKey folds toolName and a hash of arguments into one string, so
// repeated identical calls share a client-side cache entry. (The engine's
// own C8 cache is keyed by toolName and rule-set hash, not arguments.)
func (c *Client) cacheKey(input DecisionInput) string {
	h := sha256.New()
	if input.Arguments != nil {
		raw, _ := json.Marshal(input.Arguments)
		h.Write(raw)
	}
	return fmt.Sprintf("%s:%s", input.ToolName, hex.EncodeToString(h.Sum(nil))[:16])
}

func (c *Client) getFromCache(key string) (*DecisionResult, bool) {
	val, ok := c.cache.Load(key)
	if !ok {
		return nil, false
	}
	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.cache.Delete(key)
		c.cacheMu.Lock()
		c.cacheCount--
		c.cacheMu.Unlock()
		return nil, false
	}
	return entry.result, true
}

func (c *Client) putInCache(key string, res *DecisionResult) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if c.cacheCount >= int64(c.cacheMaxSize) {
		now := time.Now()
		evicted := 0
		c.cache.Range(func(k, v any) bool {
			if now.After(v.(*cacheEntry).expiresAt) {
				c.cache.Delete(k)
				evicted++
			}
			return evicted < 100
		})
		c.cacheCount -= int64(evicted)
	}

	c.cache.Store(key, &cacheEntry{result: res, expiresAt: time.Now().Add(c.cacheTTL), createdAt: time.Now()})
	c.cacheCount++
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var sdkErr *Error
	return !errors.As(err, &sdkErr)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func parseIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}
