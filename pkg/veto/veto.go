// Package veto provides a Go SDK for the veto policy decision API: a
// governance layer that evaluates AI agent tool calls against configured
// policies before they execute. Adapted from the teacher's sdks/go
// (package sentinelgate) onto this project's DecisionInput/DecisionResult
// shapes (spec §6) — env vars are VETO_*, not SENTINELGATE_*, and the wire
// shape matches this engine's decision contract rather than the teacher's
// proxy request/response pair.
//
// Quick start:
//
//	client := veto.NewClient() // reads VETO_SERVER_ADDR / VETO_API_KEY
//	result, err := client.Decide(ctx, veto.DecisionInput{
//	    ToolName:  "read_file",
//	    Arguments: map[string]any{"path": "/etc/passwd"},
//	})
//	if err != nil {
//	    var denied *veto.PolicyDeniedError
//	    if errors.As(err, &denied) {
//	        fmt.Println(denied.Reason)
//	    }
//	}
package veto

import "time"

// Decision is the evaluation outcome, matching service.Decision's vocabulary
// (spec §6's validationResult.decision).
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionDeny   Decision = "deny"
	DecisionModify Decision = "modify"
)

// CallHistoryEntry is one prior call in the same session (spec §6's
// callHistory).
type CallHistoryEntry struct {
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// DecisionInput is one proposed tool call, matching spec §6's decision
// input shape exactly.
type DecisionInput struct {
	ID          string             `json:"id,omitempty"`
	ToolName    string             `json:"toolName"`
	Arguments   map[string]any     `json:"arguments,omitempty"`
	CallHistory []CallHistoryEntry `json:"callHistory,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// ValidatorResult is one validator's contribution to an aggregated result.
type ValidatorResult struct {
	Name       string         `json:"name"`
	Decision   Decision       `json:"decision"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	DurationMs int64          `json:"durationMs"`
}

// AggregatedResult mirrors service.AggregatedResult over the wire.
type AggregatedResult struct {
	ValidatorResults []ValidatorResult `json:"validatorResults"`
	TotalDurationMs  int64             `json:"totalDurationMs"`
}

// DecisionResult is the server's response to a DecisionInput, matching
// spec §6's "allowed, validationResult, aggregatedResult, finalArguments"
// output shape.
type DecisionResult struct {
	Allowed          bool             `json:"allowed"`
	Decision         Decision         `json:"decision"`
	Reason           string           `json:"reason,omitempty"`
	RuleID           string           `json:"ruleId,omitempty"`
	RuleName         string           `json:"ruleName,omitempty"`
	HelpText         string           `json:"helpText,omitempty"`
	HelpURL          string           `json:"helpUrl,omitempty"`
	AggregatedResult AggregatedResult `json:"aggregatedResult"`
	FinalArguments   map[string]any   `json:"finalArguments,omitempty"`
	RequestID        string          `json:"requestId,omitempty"`
	LatencyMs        int64           `json:"latencyMs,omitempty"`
}
