// Package mcpadapter bridges the MCP JSON-RPC wire protocol to the policy
// core's DecisionInput/AggregatedResult shapes, demonstrating the external
// MCP interface without pulling in a full reverse-proxy gateway.
package mcpadapter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/vetoguard/veto/internal/service"
)

// toolCallParams is the shape of a tools/call request's params.
type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToDecisionInput converts a tools/call JSON-RPC request into a DecisionInput.
// Any other method is rejected: only tool calls are subject to policy.
func ToDecisionInput(req *jsonrpc.Request, history []service.CallHistoryEntry, now time.Time) (service.DecisionInput, error) {
	if req.Method != "tools/call" {
		return service.DecisionInput{}, fmt.Errorf("mcpadapter: method %q is not a tool call", req.Method)
	}
	if req.Params == nil {
		return service.DecisionInput{}, fmt.Errorf("mcpadapter: tools/call request has no params")
	}

	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return service.DecisionInput{}, fmt.Errorf("mcpadapter: decode tools/call params: %w", err)
	}
	if params.Name == "" {
		return service.DecisionInput{}, fmt.Errorf("mcpadapter: tools/call params missing tool name")
	}

	return service.DecisionInput{
		ID:          requestIDString(req.ID),
		ToolName:    params.Name,
		Arguments:   params.Arguments,
		CallHistory: history,
		Timestamp:   now,
	}, nil
}

// ApplyDecision renders an aggregated policy decision onto the original
// request. An allow decision forwards the (possibly unmodified) request
// upstream; a modify decision rewrites its tools/call arguments in place
// and forwards it; a deny decision returns a JSON-RPC error response
// instead, so the caller never reaches the upstream tool.
func ApplyDecision(req *jsonrpc.Request, agg service.AggregatedResult) (forward *jsonrpc.Request, deny *jsonrpc.Response, err error) {
	final := agg.FinalResult
	switch final.Decision {
	case service.DecisionAllow:
		return req, nil, nil

	case service.DecisionModify:
		args, _ := final.Metadata["arguments"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		var origParams toolCallParams
		if unmarshalErr := json.Unmarshal(req.Params, &origParams); unmarshalErr != nil {
			return nil, nil, fmt.Errorf("mcpadapter: decode original tools/call params: %w", unmarshalErr)
		}
		rawParams, marshalErr := json.Marshal(toolCallParams{Name: origParams.Name, Arguments: args})
		if marshalErr != nil {
			return nil, nil, fmt.Errorf("mcpadapter: marshal modified arguments: %w", marshalErr)
		}
		modified := &jsonrpc.Request{ID: req.ID, Method: req.Method, Params: rawParams}
		return modified, nil, nil

	default: // DecisionDeny, or anything else: deny closed
		msg := final.Reason
		if msg == "" {
			msg = "tool call denied by policy"
		}
		if final.RuleID != "" {
			msg = fmt.Sprintf("%s (rule %s)", msg, final.RuleID)
		}
		resp := &jsonrpc.Response{
			ID: req.ID,
			Error: &jsonrpc.Error{
				Code:    -32001, // application-defined: policy denial
				Message: msg,
			},
		}
		return nil, resp, nil
	}
}

// requestIDString renders a jsonrpc.ID as a plain string for DecisionInput.ID,
// falling back to an empty string for notifications (no ID).
func requestIDString(id jsonrpc.ID) string {
	raw, err := json.Marshal(id)
	if err != nil {
		return ""
	}
	s := string(raw)
	if s == "null" {
		return ""
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
