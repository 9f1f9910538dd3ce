package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/vetoguard/veto/internal/adapter/outbound/cache"
	"github.com/vetoguard/veto/internal/domain/bytecode"
	"github.com/vetoguard/veto/internal/domain/rule"
)

// RuleValidator is C11's primary validator: it consults the policy cache
// (C8) for a compiled program, falling back to a direct compile-and-cache
// on miss and to the last-known-good program if that compile fails, then
// runs the stack VM (C5/C6) against the call's arguments.
type RuleValidator struct {
	name     string
	priority int
	cache    *cache.Cache
	logger   *slog.Logger

	ruleSet atomic.Pointer[rule.RuleSet]
}

// NewRuleValidator constructs a RuleValidator over the given initial rule
// set. Call SetRuleSet to hot-swap it (e.g. from a sync.Sync onUpdate hook).
func NewRuleValidator(priority int, rs *rule.RuleSet, c *cache.Cache, logger *slog.Logger) *RuleValidator {
	v := &RuleValidator{name: "rule-engine", priority: priority, cache: c, logger: logger}
	v.ruleSet.Store(rs)
	return v
}

func (v *RuleValidator) Name() string          { return v.name }
func (v *RuleValidator) Priority() int         { return v.priority }
func (v *RuleValidator) ToolFilter() []string  { return nil }

// SetRuleSet atomically replaces the active rule set. Safe for concurrent
// use with Validate.
func (v *RuleValidator) SetRuleSet(rs *rule.RuleSet) {
	v.ruleSet.Store(rs)
}

// Validate compiles (or retrieves from cache) the program for input.ToolName
// and evaluates it against input.Arguments.
func (v *RuleValidator) Validate(ctx context.Context, input DecisionInput) (Result, error) {
	rs := v.ruleSet.Load()
	if rs == nil {
		return Result{Decision: DecisionAllow}, nil
	}

	key := cache.Key{ToolName: input.ToolName, RuleSetHash: rs.Hash}
	program, err := v.resolveProgram(key, rs, input.ToolName)
	if err != nil {
		return Result{}, err
	}

	res, err := bytecode.NewEvaluator(program).Eval(input.Arguments)
	if err != nil {
		var vmErr *bytecode.VMError
		if errors.As(err, &vmErr) {
			v.logger.Warn("VM limit exceeded, failing closed", "tool", input.ToolName, "error", vmErr)
			return Result{Decision: DecisionDeny, Reason: fmt.Sprintf("VM limit: %v", vmErr), RuleID: vmErr.RuleID}, nil
		}
		return Result{}, err
	}

	if res.Blocks {
		return Result{Decision: DecisionDeny, Reason: res.Reason, RuleID: res.RuleID}, nil
	}
	return Result{Decision: DecisionAllow, Reason: res.Reason, RuleID: res.RuleID}, nil
}

// resolveProgram returns the cached program for key, compiling and caching
// it on a miss; if compilation fails it falls back to the last-known-good
// program so a single malformed rule doesn't take a tool's policy offline.
func (v *RuleValidator) resolveProgram(key cache.Key, rs *rule.RuleSet, toolName string) (*bytecode.Program, error) {
	if entry, ok := v.cache.Get(key); ok {
		return entry.Policy, nil
	}

	program, err := rs.CompileTool(toolName)
	if err != nil {
		if lkg, ok := v.cache.LastKnownGood(key); ok {
			v.logger.Warn("compile failed, serving last-known-good policy", "tool", toolName, "error", err)
			return lkg.Policy, nil
		}
		return nil, fmt.Errorf("compiling policy for tool %q: %w", toolName, err)
	}

	v.cache.Set(key, program)
	return program, nil
}
