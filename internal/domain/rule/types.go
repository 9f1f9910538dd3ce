// Package rule parses and normalizes user-authored policy rule files into
// the bytecode compiler's intermediate representation (bytecode.Rule).
package rule

import (
	"github.com/vetoguard/veto/internal/domain/bytecode"
	"github.com/vetoguard/veto/internal/domain/expr"
)

// Severity is the rule's operator-facing priority, used only for sorting
// and reporting — it does not affect match semantics.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Action is the effect a matched rule produces.
type Action string

const (
	ActionBlock Action = "block"
	ActionWarn  Action = "warn"
	ActionLog   Action = "log"
	ActionAllow Action = "allow"
)

var validActions = map[Action]bool{
	ActionBlock: true,
	ActionWarn:  true,
	ActionLog:   true,
	ActionAllow: true,
}

// RawCondition is one parsed YAML/JSON condition entry: either a legacy
// triple (Field/Operator/Value all set) or an inline expression
// (Expression set, everything else empty).
type RawCondition struct {
	Field      string `yaml:"field" json:"field"`
	Operator   string `yaml:"operator" json:"operator"`
	Value      any    `yaml:"value" json:"value"`
	Expression string `yaml:"expression" json:"expression"`
}

// RawRule is one parsed YAML/JSON rule document, before validation and
// normalization.
type RawRule struct {
	ID              string           `yaml:"id" json:"id"`
	Name            string           `yaml:"name" json:"name"`
	Description     string           `yaml:"description" json:"description"`
	Enabled         *bool            `yaml:"enabled" json:"enabled"`
	Severity        Severity         `yaml:"severity" json:"severity"`
	Action          Action           `yaml:"action" json:"action"`
	Tools           []string         `yaml:"tools" json:"tools"`
	Conditions      []RawCondition   `yaml:"conditions" json:"conditions"`
	ConditionGroups [][]RawCondition `yaml:"condition_groups" json:"condition_groups"`
}

// RawFile is the top-level shape of a rule file (spec §3's RuleSet).
type RawFile struct {
	Version     int       `yaml:"version" json:"version"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Rules       []RawRule `yaml:"rules" json:"rules"`
}

// Rule is a fully validated, normalized policy rule: the form the rest of
// the engine (cache, validation engine, explanation trail) operates on.
// Groups/Expression mirror bytecode.Rule — ToBytecode converts 1:1, dropping
// the metadata (Name/Description/Severity/Tools) the VM has no use for.
type Rule struct {
	ID          string
	Name        string
	Description string
	Enabled     bool
	Severity    Severity
	Action      Action
	Tools       []string

	Groups     [][]bytecode.Condition
	Expression *expr.Node
}

// ToBytecode converts a normalized Rule to the compiler's IR.
func (r Rule) ToBytecode() bytecode.Rule {
	return bytecode.Rule{
		ID:         r.ID,
		Reason:     r.Name,
		Effect:     string(r.Action),
		Enabled:    r.Enabled,
		Groups:     r.Groups,
		Expression: r.Expression,
	}
}

// bytecodeOpToLegacy is the inverse of loader.go's legacyToBytecodeOp, used
// to render a compiled Condition back into a rule-file-shaped RawCondition.
var bytecodeOpToLegacy = map[string]string{
	"eq":           "equals",
	"neq":          "not_equals",
	"contains":     "contains",
	"not_contains": "not_contains",
	"starts_with":  "starts_with",
	"ends_with":    "ends_with",
	"matches":      "matches",
	"gt":           "greater_than",
	"lt":           "less_than",
	"in":           "in",
	"not_in":       "not_in",
}

// ToRawRule renders a normalized Rule back into the rule-file document
// shape, the inverse of buildRule. Used when serializing a RuleSet into a
// signed bundle's canonical-JSON payload.
func (r Rule) ToRawRule() RawRule {
	enabled := r.Enabled
	rr := RawRule{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Enabled:     &enabled,
		Severity:    r.Severity,
		Action:      r.Action,
		Tools:       r.Tools,
	}
	groups := make([][]RawCondition, len(r.Groups))
	for gi, group := range r.Groups {
		conds := make([]RawCondition, len(group))
		for ci, c := range group {
			if c.Expr != nil {
				conds[ci] = RawCondition{Expression: c.ExprSource}
				continue
			}
			conds[ci] = RawCondition{
				Field:    "arguments." + c.Field,
				Operator: bytecodeOpToLegacy[c.Operator],
				Value:    c.Value,
			}
		}
		groups[gi] = conds
	}
	if len(groups) == 1 {
		rr.Conditions = groups[0]
	} else {
		rr.ConditionGroups = groups
	}
	return rr
}

// AppliesToTool reports whether this rule should be evaluated for the given
// tool name. An empty Tools list means the rule applies to every tool.
func (r Rule) AppliesToTool(toolName string) bool {
	if len(r.Tools) == 0 {
		return true
	}
	for _, t := range r.Tools {
		if t == toolName {
			return true
		}
	}
	return false
}

// RuleSet is a normalized, ordered collection of rules plus the fingerprint
// used by the cache and sync layers to detect change.
type RuleSet struct {
	Version     int
	Name        string
	Description string
	Rules       []Rule
	Hash        string // sha256 hex of the raw source bytes, set by the loader
}
