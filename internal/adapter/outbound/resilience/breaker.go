// Package resilience implements the circuit breaker and retry policy
// guarding network validators (spec §4.10).
package resilience

import (
	"sync"
	"time"
)

// State is one of the breaker's three states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a three-state circuit breaker: closed -> open -> half-open ->
// {closed|open}, per spec §4.10's exact thresholds and transitions.
type Breaker struct {
	mu sync.Mutex

	failureThreshold    int
	resetTimeout        time.Duration
	halfOpenMaxAttempts int
	now                 func() time.Time

	state            State
	consecutiveFails int
	lastFailure      time.Time
	halfOpenInFlight int
}

// NewBreaker constructs a Breaker. nowFn lets tests inject a fake clock;
// pass nil to use time.Now.
func NewBreaker(failureThreshold int, resetTimeout time.Duration, halfOpenMaxAttempts int, nowFn func() time.Time) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if halfOpenMaxAttempts <= 0 {
		halfOpenMaxAttempts = 1
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Breaker{
		failureThreshold:    failureThreshold,
		resetTimeout:        resetTimeout,
		halfOpenMaxAttempts: halfOpenMaxAttempts,
		now:                 nowFn,
		state:               Closed,
	}
}

// State returns the breaker's current state, lazily transitioning
// open->half-open when the reset timeout has elapsed (spec: "checked on
// next getState()").
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetLocked()
	return b.state
}

func (b *Breaker) maybeResetLocked() {
	if b.state == Open && b.now().Sub(b.lastFailure) >= b.resetTimeout {
		b.state = HalfOpen
		b.halfOpenInFlight = 0
	}
}

// Allow reports whether a new call should be permitted, and reserves a
// half-open probe slot if the breaker is in that state. Callers must call
// RecordSuccess or RecordFailure exactly once per Allow()==true call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetLocked()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		if b.halfOpenInFlight >= b.halfOpenMaxAttempts {
			return false
		}
		b.halfOpenInFlight++
		return true
	default: // Open
		return false
	}
}

// RecordSuccess reports a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.halfOpenInFlight--
	}
	b.state = Closed
	b.consecutiveFails = 0
}

// RecordFailure reports a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailure = b.now()

	if b.state == HalfOpen {
		b.halfOpenInFlight--
		b.state = Open
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failureThreshold {
		b.state = Open
	}
}
