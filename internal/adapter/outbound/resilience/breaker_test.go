package resilience

import (
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute, 1, nil)
	for i := 0; i < 2; i++ {
		b.Allow()
		b.RecordFailure()
	}
	if b.State() != Closed {
		t.Fatal("expected breaker to remain closed before hitting the threshold")
	}
	b.Allow()
	b.RecordFailure()
	if b.State() != Open {
		t.Fatal("expected breaker to open after failureThreshold consecutive failures")
	}
}

func TestBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cur := time.Unix(0, 0)
	now := func() time.Time { return cur }
	b := NewBreaker(1, time.Minute, 1, now)
	b.Allow()
	b.RecordFailure()
	if b.State() != Open {
		t.Fatal("expected open after 1 failure with threshold 1")
	}

	cur = cur.Add(2 * time.Minute)
	if b.State() != HalfOpen {
		t.Fatal("expected half-open once resetTimeout has elapsed")
	}
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	cur := time.Unix(0, 0)
	now := func() time.Time { return cur }
	b := NewBreaker(1, time.Minute, 1, now)
	b.Allow()
	b.RecordFailure()
	cur = cur.Add(2 * time.Minute)
	if !b.Allow() {
		t.Fatal("expected half-open to admit a probe")
	}
	b.RecordSuccess()
	if b.State() != Closed {
		t.Fatal("expected success in half-open to close the breaker")
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cur := time.Unix(0, 0)
	now := func() time.Time { return cur }
	b := NewBreaker(1, time.Minute, 1, now)
	b.Allow()
	b.RecordFailure()
	cur = cur.Add(2 * time.Minute)
	b.Allow()
	b.RecordFailure()
	if b.State() != Open {
		t.Fatal("expected failure in half-open to reopen the breaker")
	}
}

func TestBreaker_HalfOpenLimitsConcurrentProbes(t *testing.T) {
	cur := time.Unix(0, 0)
	now := func() time.Time { return cur }
	b := NewBreaker(1, time.Minute, 1, now)
	b.Allow()
	b.RecordFailure()
	cur = cur.Add(2 * time.Minute)

	if !b.Allow() {
		t.Fatal("expected the first half-open probe to be admitted")
	}
	if b.Allow() {
		t.Fatal("expected a second concurrent half-open probe to be refused (halfOpenMaxAttempts=1)")
	}
}
