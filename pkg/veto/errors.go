package veto

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	ErrPolicyDenied      = errors.New("policy denied")
	ErrApprovalTimeout   = errors.New("approval timeout")
	ErrServerUnreachable = errors.New("server unreachable")
)

// Error is the SDK's base error type, carrying a machine-readable code.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("veto [%s]: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("veto [%s]", e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// PolicyDeniedError is returned when a decision results in deny.
type PolicyDeniedError struct {
	RuleID    string
	RuleName  string
	Reason    string
	HelpURL   string
	HelpText  string
	RequestID string
}

func (e *PolicyDeniedError) Error() string {
	if e.RuleName != "" {
		return fmt.Sprintf("policy denied by rule %q: %s", e.RuleName, e.Reason)
	}
	return fmt.Sprintf("policy denied: %s", e.Reason)
}

func (e *PolicyDeniedError) Is(target error) bool { return target == ErrPolicyDenied }

// ApprovalTimeoutError is returned when approval polling exceeds the caller
// timeout (spec §5's "ApprovalTimeout{approvalId, timeoutMs}").
type ApprovalTimeoutError struct {
	RequestID string
	TimeoutMs int64
}

func (e *ApprovalTimeoutError) Error() string {
	return fmt.Sprintf("approval timeout for request %s after %dms", e.RequestID, e.TimeoutMs)
}

func (e *ApprovalTimeoutError) Is(target error) bool { return target == ErrApprovalTimeout }

// ServerUnreachableError is returned when the veto server cannot be
// contacted and the client is configured fail-closed.
type ServerUnreachableError struct {
	Cause error
}

func (e *ServerUnreachableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("server unreachable: %v", e.Cause)
	}
	return "server unreachable"
}

func (e *ServerUnreachableError) Unwrap() error { return e.Cause }

func (e *ServerUnreachableError) Is(target error) bool { return target == ErrServerUnreachable }
