package service

import (
	"context"
	"fmt"

	"github.com/vetoguard/veto/internal/adapter/outbound/resilience"
)

// CallFunc performs one remote validation call (e.g. a cloud policy check
// or an LLM provider's moderation endpoint). Only the retry/circuit
// contract for such providers is in scope here — no provider-specific HTTP
// adapter is implemented (spec §1 non-goals).
type CallFunc func(ctx context.Context, input DecisionInput) (Result, error)

// NetworkValidator wraps a CallFunc with C10's circuit breaker and retry
// policy (spec §4.10): breaker-open or retry-exhaustion is reported as a
// synthetic deny when failClosed, or as an allow otherwise.
type NetworkValidator struct {
	name       string
	priority   int
	toolFilter []string
	breaker    *resilience.Breaker
	retry      resilience.RetryPolicy
	failClosed bool
	call       CallFunc
}

// NewNetworkValidator builds a NetworkValidator. failClosed=true (the spec
// default) denies on breaker-open or retry exhaustion; false allows.
func NewNetworkValidator(name string, priority int, toolFilter []string, breaker *resilience.Breaker, retry resilience.RetryPolicy, failClosed bool, call CallFunc) *NetworkValidator {
	return &NetworkValidator{
		name: name, priority: priority, toolFilter: toolFilter,
		breaker: breaker, retry: retry, failClosed: failClosed, call: call,
	}
}

func (v *NetworkValidator) Name() string         { return v.name }
func (v *NetworkValidator) Priority() int        { return v.priority }
func (v *NetworkValidator) ToolFilter() []string { return v.toolFilter }

func (v *NetworkValidator) Validate(ctx context.Context, input DecisionInput) (Result, error) {
	if !v.breaker.Allow() {
		if v.failClosed {
			return Result{Decision: DecisionDeny, Reason: "Circuit breaker is open"}, nil
		}
		return Result{Decision: DecisionAllow}, nil
	}

	var result Result
	err := v.retry.Do(ctx, func(ctx context.Context) error {
		r, callErr := v.call(ctx, input)
		if callErr != nil {
			return callErr
		}
		result = r
		return nil
	})

	if err != nil {
		v.breaker.RecordFailure()
		if v.failClosed {
			return Result{Decision: DecisionDeny, Reason: fmt.Sprintf("Validation failed: %v", err)}, nil
		}
		return Result{Decision: DecisionAllow}, nil
	}

	v.breaker.RecordSuccess()
	return result, nil
}
