// Package service composes the domain and adapter packages into the
// validation engine (spec §4.11): an ordered list of named validators run
// in priority order, aggregated into one decision.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/vetoguard/veto/internal/domain/audit"
	"github.com/vetoguard/veto/internal/domain/constraint"
	"github.com/vetoguard/veto/internal/observability"
)

// Decision is the validation engine's decision vocabulary (spec §6's
// DecisionResult.decision) — distinct from a rule's authored action
// (block/warn/log/allow, see rule.Action).
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionDeny   Decision = "deny"
	// DecisionModify is reserved: the compiler never emits it (spec §9 open
	// question), but the engine and Result shape carry the slot so a future
	// validator can mutate arguments without a breaking change.
	DecisionModify Decision = "modify"
)

// Result is one validator's (or the engine's aggregated) outcome.
type Result struct {
	Decision Decision
	Reason   string
	Metadata map[string]any
	RuleID   string
}

// DecisionInput is one proposed tool call (spec §6).
type DecisionInput struct {
	ID          string
	ToolName    string
	Arguments   map[string]any
	CallHistory []CallHistoryEntry
	Timestamp   time.Time
}

// CallHistoryEntry is one prior call in the same session, available to
// validators that reason about sequences (spec §3's callHistory).
type CallHistoryEntry struct {
	ToolName  string
	Arguments map[string]any
	Timestamp time.Time
}

// ValidatorResult records one validator's contribution to an aggregated
// decision, including how long it took.
type ValidatorResult struct {
	Name       string
	Result     Result
	DurationMs int64
}

// AggregatedResult is the engine's full output for one decision (spec §4.11).
type AggregatedResult struct {
	FinalResult      Result
	ValidatorResults []ValidatorResult
	TotalDurationMs  int64
}

// Validator is one named, priority-ordered policy check. ToolFilter, if
// non-empty, restricts Validate to those tool names; an empty filter runs
// for every tool call.
type Validator interface {
	Name() string
	Priority() int
	ToolFilter() []string
	Validate(ctx context.Context, input DecisionInput) (Result, error)
}

// Engine runs a fixed, priority-sorted list of Validators sequentially,
// short-circuiting on the first deny or modify (spec §4.11).
type Engine struct {
	validators      []Validator
	defaultDecision Decision
	logger          *slog.Logger
	now             func() time.Time
	metrics         *observability.Metrics
}

// SetMetrics attaches a Prometheus metrics recorder. Optional — a nil
// recorder (the default) means Decide simply skips recording.
func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.metrics = m
}

// NewEngine builds an Engine, sorting validators by ascending Priority().
// defaultDecision is returned when every validator allows (or none applied
// to the tool) — spec default is DecisionAllow.
func NewEngine(defaultDecision Decision, logger *slog.Logger, validators ...Validator) *Engine {
	sorted := make([]Validator, len(validators))
	copy(sorted, validators)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Engine{
		validators:      sorted,
		defaultDecision: defaultDecision,
		logger:          logger,
		now:             time.Now,
	}
}

// Decide runs every applicable validator in priority order and returns the
// aggregated result. trail may be nil; when non-nil each validator's
// contribution is recorded into it at the trail's configured verbosity
// (spec §4.12) — a rule-level summary per validator that carried a RuleID,
// plus a per-argument entry for each constraint check a validator reported
// in its Result.Metadata["trail"].
func (e *Engine) Decide(ctx context.Context, input DecisionInput, trail *audit.Trail) AggregatedResult {
	start := e.now()
	results := make([]ValidatorResult, 0, len(e.validators))
	final := Result{Decision: e.defaultDecision}

	for _, v := range e.validators {
		if !appliesToTool(v.ToolFilter(), input.ToolName) {
			continue
		}
		vStart := e.now()
		res := e.runValidator(ctx, v, input)
		duration := e.now().Sub(vStart)
		results = append(results, ValidatorResult{
			Name:       v.Name(),
			Result:     res,
			DurationMs: duration.Milliseconds(),
		})
		recordTrail(trail, v.Name(), res)
		if e.metrics != nil {
			e.metrics.ValidatorDuration.WithLabelValues(v.Name()).Observe(duration.Seconds())
		}
		if res.Decision == DecisionDeny || res.Decision == DecisionModify {
			final = res
			break
		}
	}

	total := e.now().Sub(start)
	if e.metrics != nil {
		e.metrics.DecisionsTotal.WithLabelValues(input.ToolName, string(final.Decision)).Inc()
		e.metrics.DecisionDuration.WithLabelValues(input.ToolName).Observe(total.Seconds())
	}

	return AggregatedResult{
		FinalResult:      final,
		ValidatorResults: results,
		TotalDurationMs:  total.Milliseconds(),
	}
}

func recordTrail(trail *audit.Trail, validatorName string, res Result) {
	if trail == nil {
		return
	}
	if res.RuleID != "" {
		result := audit.ResultPass
		if res.Decision == DecisionDeny {
			result = audit.ResultFail
		}
		trail.AddRuleMatch(audit.Entry{RuleID: res.RuleID, Constraint: validatorName, Result: result, Message: res.Reason})
	}
	if checks, ok := res.Metadata["trail"].([]constraint.Result); ok {
		for _, c := range checks {
			result := audit.ResultPass
			if !c.Pass {
				result = audit.ResultFail
			}
			trail.AddConstraintCheck(audit.Entry{
				Constraint: validatorName,
				Path:       c.Argument,
				Expected:   c.Expected,
				Actual:     c.Actual,
				Result:     result,
				Message:    c.Message,
			})
		}
	}
}

// runValidator invokes v.Validate, converting both a returned error and a
// recovered panic into a deny result carrying the failure message — a
// validator's own failure never aborts the engine (spec §4.11, §7).
func (e *Engine) runValidator(ctx context.Context, v Validator, input DecisionInput) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("validator panicked, treating as deny", "validator", v.Name(), "panic", r)
			res = Result{Decision: DecisionDeny, Reason: fmt.Sprintf("validator %q panicked: %v", v.Name(), r)}
		}
	}()

	result, err := v.Validate(ctx, input)
	if err != nil {
		e.logger.Warn("validator returned an error, treating as deny", "validator", v.Name(), "error", err)
		return Result{Decision: DecisionDeny, Reason: err.Error()}
	}
	return result
}

func appliesToTool(filter []string, toolName string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, t := range filter {
		if t == toolName {
			return true
		}
	}
	return false
}
