package service

import (
	"context"
	"testing"
	"time"

	"github.com/vetoguard/veto/internal/adapter/outbound/cache"
	"github.com/vetoguard/veto/internal/domain/rule"
)

const blockEtcYAML = `
rules:
  - id: block-etc
    name: Block /etc reads
    action: block
    conditions:
      - field: arguments.path
        operator: starts_with
        value: "/etc"
`

func TestRuleValidator_DeniesMatchingRule(t *testing.T) {
	rs, err := rule.Load("policy.yaml", []byte(blockEtcYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c := cache.New(10, time.Hour, nil)
	v := NewRuleValidator(1, rs, c, testLogger())

	res, err := v.Validate(context.Background(), DecisionInput{
		ToolName:  "read_file",
		Arguments: map[string]any{"path": "/etc/passwd"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionDeny || res.RuleID != "block-etc" {
		t.Fatalf("expected deny by block-etc, got %+v", res)
	}
}

func TestRuleValidator_AllowsNonMatchingInput(t *testing.T) {
	rs, err := rule.Load("policy.yaml", []byte(blockEtcYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c := cache.New(10, time.Hour, nil)
	v := NewRuleValidator(1, rs, c, testLogger())

	res, err := v.Validate(context.Background(), DecisionInput{
		ToolName:  "read_file",
		Arguments: map[string]any{"path": "/home/user/notes.txt"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionAllow {
		t.Fatalf("expected allow, got %+v", res)
	}
}

func TestRuleValidator_CachesCompiledProgram(t *testing.T) {
	rs, err := rule.Load("policy.yaml", []byte(blockEtcYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c := cache.New(10, time.Hour, nil)
	v := NewRuleValidator(1, rs, c, testLogger())

	key := cache.Key{ToolName: "read_file", RuleSetHash: rs.Hash}
	if c.Has(key) {
		t.Fatal("expected no cache entry before the first Validate call")
	}
	if _, err := v.Validate(context.Background(), DecisionInput{ToolName: "read_file", Arguments: map[string]any{"path": "x"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Has(key) {
		t.Fatal("expected Validate to populate the cache on a miss")
	}
}

func TestRuleValidator_SetRuleSetSwapsActivePolicy(t *testing.T) {
	rs, err := rule.Load("policy.yaml", []byte(blockEtcYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c := cache.New(10, time.Hour, nil)
	v := NewRuleValidator(1, rs, c, testLogger())

	empty, err := rule.Load("empty.yaml", []byte(`rules: []`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	v.SetRuleSet(empty)

	res, err := v.Validate(context.Background(), DecisionInput{
		ToolName:  "read_file",
		Arguments: map[string]any{"path": "/etc/passwd"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionAllow {
		t.Fatalf("expected the swapped-in empty rule set to allow, got %+v", res)
	}
}
