package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vetoguard/veto/internal/adapter/outbound/resilience"
)

func TestNetworkValidator_SucceedsAndRecordsSuccess(t *testing.T) {
	breaker := resilience.NewBreaker(5, time.Minute, 1, nil)
	retry := resilience.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	v := NewNetworkValidator("cloud-check", 5, nil, breaker, retry, true, func(ctx context.Context, input DecisionInput) (Result, error) {
		return Result{Decision: DecisionAllow}, nil
	})

	res, err := v.Validate(context.Background(), DecisionInput{ToolName: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionAllow {
		t.Fatalf("expected allow, got %+v", res)
	}
}

func TestNetworkValidator_FailClosedDeniesOnRetryExhaustion(t *testing.T) {
	breaker := resilience.NewBreaker(5, time.Minute, 1, nil)
	retry := resilience.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	v := NewNetworkValidator("cloud-check", 5, nil, breaker, retry, true, func(ctx context.Context, input DecisionInput) (Result, error) {
		return Result{}, errors.New("upstream unavailable")
	})

	res, err := v.Validate(context.Background(), DecisionInput{ToolName: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionDeny {
		t.Fatalf("expected a fail-closed deny after retry exhaustion, got %+v", res)
	}
}

func TestNetworkValidator_FailOpenAllowsOnRetryExhaustion(t *testing.T) {
	breaker := resilience.NewBreaker(5, time.Minute, 1, nil)
	retry := resilience.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	v := NewNetworkValidator("cloud-check", 5, nil, breaker, retry, false, func(ctx context.Context, input DecisionInput) (Result, error) {
		return Result{}, errors.New("upstream unavailable")
	})

	res, err := v.Validate(context.Background(), DecisionInput{ToolName: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionAllow {
		t.Fatalf("expected a fail-open allow after retry exhaustion, got %+v", res)
	}
}

func TestNetworkValidator_DeniesImmediatelyWhenBreakerOpen(t *testing.T) {
	breaker := resilience.NewBreaker(1, time.Hour, 1, nil)
	breaker.Allow()
	breaker.RecordFailure() // opens the breaker (threshold=1)

	calls := 0
	retry := resilience.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	v := NewNetworkValidator("cloud-check", 5, nil, breaker, retry, true, func(ctx context.Context, input DecisionInput) (Result, error) {
		calls++
		return Result{Decision: DecisionAllow}, nil
	})

	res, err := v.Validate(context.Background(), DecisionInput{ToolName: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionDeny || res.Reason != "Circuit breaker is open" {
		t.Fatalf("expected an immediate breaker-open deny, got %+v", res)
	}
	if calls != 0 {
		t.Fatal("expected the call func to never run while the breaker is open")
	}
}
