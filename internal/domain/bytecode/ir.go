package bytecode

import "github.com/vetoguard/veto/internal/domain/expr"

// Condition is a single legacy field/operator/value test (spec §3's
// condition triple form), e.g. {Field: "amount", Operator: "gt", Value: 1000.0}.
// Alternatively, Expr holds an inline expression condition (spec §3's
// `{expression: <dsl source>}` condition form) — when set, Field/Operator/
// Value are ignored and the condition compiles Expr directly.
type Condition struct {
	Field    string
	Operator string // "eq","neq","lt","gt","lte","gte","matches","contains",
	// "not_contains","starts_with","ends_with","in","not_in"
	Value any
	Expr       *expr.Node
	ExprSource string // original DSL source of Expr, preserved for round-tripping back to a rule file
}

// Rule is the compiler's intermediate representation of one policy rule,
// produced by the rule package from a parsed rule file. Groups are ORed
// together; the Conditions within one group are ANDed. Expression, when
// non-nil, is ANDed against the group result (or stands alone if Groups is
// empty) — this lets a rule mix legacy triples with an inline expression.
type Rule struct {
	ID         string
	Reason     string
	Effect     string // "allow","block","warn","log","modify"
	Enabled    bool
	Groups     [][]Condition
	Expression *expr.Node
}

// blockingEffects are the effect names that cause EMIT_DECISION's operand
// to be 1 (the matched rule blocks the call). "modify" is a reserved
// extension point (spec open question): it does not block by itself, a
// rule engine layered above the VM is expected to apply the modification
// and then re-evaluate, so it compiles as non-blocking like "allow"/"log".
var blockingEffects = map[string]bool{
	"block": true,
	"warn": true,
}
