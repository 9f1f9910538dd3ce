package bytecode

import (
	"testing"

	"github.com/vetoguard/veto/internal/domain/expr"
)

func TestCompile_LegacyTripleDenyRule(t *testing.T) {
	rules := []Rule{
		{
			ID:      "r1",
			Reason:  "blocked /etc path",
			Effect:  "block",
			Enabled: true,
			Groups: [][]Condition{
				{{Field: "arguments.path", Operator: "starts_with", Value: "/etc"}},
			},
		},
	}
	prog, err := Compile(rules)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(prog.ArgKeys) != 1 || prog.ArgKeys[0] != "path" {
		t.Fatalf("expected ArgKeys [path], got %v", prog.ArgKeys)
	}
	if prog.Instructions[len(prog.Instructions)-1].Op != OpHalt {
		t.Error("expected program to end in HALT")
	}
}

func TestCompile_DisabledRuleSkipped(t *testing.T) {
	rules := []Rule{
		{ID: "r1", Effect: "block", Enabled: false, Groups: [][]Condition{{{Field: "x", Operator: "eq", Value: true}}}},
	}
	prog, err := Compile(rules)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(prog.RuleIDs) != 0 {
		t.Fatalf("expected no compiled rules, got %v", prog.RuleIDs)
	}
	if len(prog.Instructions) != 1 || prog.Instructions[0].Op != OpHalt {
		t.Fatalf("expected a bare HALT program, got %v", prog.Instructions)
	}
}

func TestCompile_NoConditionsAlwaysMatches(t *testing.T) {
	rules := []Rule{{ID: "catch-all", Effect: "allow", Enabled: true}}
	prog, err := Compile(rules)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	ev := NewEvaluator(prog)
	res, err := ev.Eval(map[string]any{})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if !res.Matched || res.Blocks {
		t.Fatalf("expected unconditional allow match, got %+v", res)
	}
}

func TestCompile_NotContainsNegatesContains(t *testing.T) {
	rules := []Rule{
		{
			ID:      "r1",
			Effect:  "block",
			Enabled: true,
			Groups: [][]Condition{
				{{Field: "arguments.tags", Operator: "not_contains", Value: "internal"}},
			},
		},
	}
	prog, err := Compile(rules)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	var sawNot bool
	for _, instr := range prog.Instructions {
		if instr.Op == OpNot {
			sawNot = true
		}
	}
	if !sawNot {
		t.Error("expected not_contains to compile via CMP_CONTAINS + NOT")
	}
}

func TestCompile_GroupsOredConditionsAnded(t *testing.T) {
	rules := []Rule{
		{
			ID:      "r1",
			Effect:  "block",
			Enabled: true,
			Groups: [][]Condition{
				{{Field: "a", Operator: "eq", Value: 1.0}, {Field: "b", Operator: "eq", Value: 2.0}},
				{{Field: "c", Operator: "eq", Value: 3.0}},
			},
		},
	}
	prog, err := Compile(rules)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	var ands, ors int
	for _, instr := range prog.Instructions {
		switch instr.Op {
		case OpAnd:
			ands++
		case OpOr:
			ors++
		}
	}
	if ands != 1 || ors != 1 {
		t.Fatalf("expected 1 AND (within first group) and 1 OR (between groups), got ands=%d ors=%d", ands, ors)
	}
}

func TestCompile_InlineExpression(t *testing.T) {
	node, err := expr.Parse(`arguments.amount > 1000 && arguments.currency == "USD"`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rules := []Rule{{ID: "r1", Effect: "warn", Enabled: true, Expression: node}}
	prog, err := Compile(rules)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	foundAmount, foundCurrency := false, false
	for _, k := range prog.ArgKeys {
		if k == "amount" {
			foundAmount = true
		}
		if k == "currency" {
			foundCurrency = true
		}
	}
	if !foundAmount || !foundCurrency {
		t.Fatalf("expected amount and currency arg keys, got %v", prog.ArgKeys)
	}
}

func TestCompile_ConstantDeduplication(t *testing.T) {
	rules := []Rule{
		{
			ID:      "r1",
			Effect:  "block",
			Enabled: true,
			Groups: [][]Condition{
				{{Field: "a", Operator: "eq", Value: "dup"}, {Field: "b", Operator: "eq", Value: "dup"}},
			},
		},
	}
	prog, err := Compile(rules)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	count := 0
	for _, ct := range prog.ConstantPool {
		if ct.Kind == ConstString && ct.Str == "dup" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected the literal \"dup\" to be deduplicated to 1 pool entry, got %d", count)
	}
}

func TestCompile_UnknownOperatorFails(t *testing.T) {
	rules := []Rule{
		{ID: "r1", Effect: "block", Enabled: true, Groups: [][]Condition{{{Field: "a", Operator: "frobnicate", Value: 1}}}},
	}
	_, err := Compile(rules)
	if err == nil {
		t.Fatal("expected a CompileError for an unknown operator")
	}
	var ce *CompileError
	if ok := asCompileError(err, &ce); !ok {
		t.Fatalf("expected *CompileError, got %T", err)
	}
	if ce.RuleID != "r1" {
		t.Fatalf("expected error to name rule r1, got %q", ce.RuleID)
	}
}

func asCompileError(err error, target **CompileError) bool {
	if ce, ok := err.(*CompileError); ok {
		*target = ce
		return true
	}
	return false
}
