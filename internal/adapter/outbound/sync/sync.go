// Package sync implements the background policy sync loop (spec §4.9): a
// periodic fetcher that recompiles each tool's rules and atomically swaps
// both the hot and last-known-good cache entries, without ever blocking the
// decision hot path or host process shutdown.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vetoguard/veto/internal/adapter/outbound/cache"
	"github.com/vetoguard/veto/internal/domain/rule"
)

// FetchFunc retrieves the current remote rule set. Implementations wrap an
// HTTP client (typically behind resilience.Breaker/RetryPolicy) or a local
// file-root walk.
type FetchFunc func(ctx context.Context) (*rule.RuleSet, error)

// Option configures a Sync.
type Option func(*Sync)

// WithInterval overrides the default 30s tick interval.
func WithInterval(d time.Duration) Option {
	return func(s *Sync) { s.interval = d }
}

// WithOnUpdate registers an observer called once per tool after a
// successful compile-and-swap.
func WithOnUpdate(fn func(toolName string)) Option {
	return func(s *Sync) { s.onUpdate = fn }
}

// WithOnError registers an observer called on fetch or per-tool compile
// errors. The sync loop never aborts because of these — cached/LKG policies
// keep serving (spec §4.9, §7 "cache refresh errors are swallowed by
// design").
func WithOnError(fn func(err error)) Option {
	return func(s *Sync) { s.onError = fn }
}

// WithClock lets tests inject a fake clock for CompiledAt stamping.
func WithClock(now func() time.Time) Option {
	return func(s *Sync) { s.now = now }
}

// Sync periodically fetches a remote rule map and refreshes a Cache.
// Zero value is not usable; use New.
type Sync struct {
	interval time.Duration
	fetch    FetchFunc
	cache    *cache.Cache
	logger   *slog.Logger
	now      func() time.Time

	onUpdate func(toolName string)
	onError  func(err error)

	inFlight atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
	started  atomic.Bool
}

// New constructs a Sync over c, fetching via fetch. Start must be called to
// begin ticking; it is a no-op until then.
func New(fetch FetchFunc, c *cache.Cache, logger *slog.Logger, opts ...Option) *Sync {
	s := &Sync{
		interval: 30 * time.Second,
		fetch:    fetch,
		cache:    c,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the periodic fetch loop in a background goroutine. The
// goroutine exits when ctx is done or Stop is called, so it never prevents
// host process shutdown.
func (s *Sync) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the background loop to exit and waits for it to finish.
func (s *Sync) Stop() {
	if !s.started.Load() {
		return
	}
	select {
	case <-s.done:
		// already closed
	default:
		close(s.done)
	}
	s.wg.Wait()
}

func (s *Sync) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one fetch-compile-swap cycle. Exported so callers can trigger an
// immediate sync (e.g. on engine startup) in addition to the periodic timer.
// If a tick is already in flight, the call is a no-op (spec: "skip if a sync
// is already in flight").
func (s *Sync) Tick(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer s.inFlight.Store(false)

	rs, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("policy sync fetch failed, continuing to serve cached policies", "error", err)
		if s.onError != nil {
			s.onError(fmt.Errorf("policy sync fetch: %w", err))
		}
		return
	}

	for _, toolName := range rs.ToolNames() {
		prog, err := rs.CompileTool(toolName)
		if err != nil {
			s.logger.Warn("policy sync compile failed for tool, keeping previous policy", "tool", toolName, "error", err)
			if s.onError != nil {
				s.onError(fmt.Errorf("policy sync compile %q: %w", toolName, err))
			}
			continue
		}
		prog.CompiledAt = s.now().UnixNano()
		// Cache.Set atomically replaces both the hot and LKG entries for this
		// key in one locked critical section — no torn reads (spec §5).
		s.cache.Set(cache.Key{ToolName: toolName, RuleSetHash: rs.Hash}, prog)
		s.logger.Info("policy sync updated tool", "tool", toolName, "rule_set_hash", rs.Hash)
		if s.onUpdate != nil {
			s.onUpdate(toolName)
		}
	}
}
