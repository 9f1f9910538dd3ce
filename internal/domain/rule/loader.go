package rule

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vetoguard/veto/internal/domain/bytecode"
	"github.com/vetoguard/veto/internal/domain/expr"
	"github.com/vetoguard/veto/internal/domain/regexsafety"
	"github.com/vetoguard/veto/internal/domain/value"
)

var conditionOperators = map[string]bool{
	"equals": true, "not_equals": true, "contains": true, "not_contains": true,
	"starts_with": true, "ends_with": true, "matches": true, "greater_than": true,
	"less_than": true, "in": true, "not_in": true,
}

// legacyToBytecodeOp maps the rule file's human-readable operator names
// (spec §3) onto bytecode.Condition's shorter operator vocabulary.
var legacyToBytecodeOp = map[string]string{
	"equals":       "eq",
	"not_equals":   "neq",
	"contains":     "contains",
	"not_contains": "not_contains",
	"starts_with":  "starts_with",
	"ends_with":    "ends_with",
	"matches":      "matches",
	"greater_than": "gt",
	"less_than":    "lt",
	"in":           "in",
	"not_in":       "not_in",
}

// Load parses and validates a rule file's raw bytes (YAML or JSON — JSON is
// a valid subset of YAML so one decoder handles both) and returns a
// normalized RuleSet, or the aggregated SchemaErrors found.
func Load(filename string, data []byte) (*RuleSet, error) {
	var raw RawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, SchemaErrors{{File: filename, Field: "<file>", Message: err.Error()}}
	}

	var errs SchemaErrors
	seenIDs := make(map[string]bool, len(raw.Rules))
	rules := make([]Rule, 0, len(raw.Rules))

	for i, rr := range raw.Rules {
		r, ruleErrs := buildRule(filename, i, rr, seenIDs)
		if len(ruleErrs) > 0 {
			errs = append(errs, ruleErrs...)
			continue
		}
		seenIDs[r.ID] = true
		rules = append(rules, r)
	}

	if len(errs) > 0 {
		return nil, errs
	}

	Normalize(rules)

	return &RuleSet{Version: raw.Version, Name: raw.Name, Description: raw.Description, Rules: rules, Hash: fingerprint(data)}, nil
}

// LoadAll parses every named rule file (e.g. a directory's worth of
// *.yaml policy files) and merges them into a single RuleSet, re-checking
// id uniqueness across files.
func LoadAll(files map[string][]byte) (*RuleSet, error) {
	var errs SchemaErrors
	seenIDs := make(map[string]bool)
	var rules []Rule
	var concatenated []byte

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sortStrings(names)

	for _, name := range names {
		data := files[name]
		concatenated = append(concatenated, data...)
		var raw RawFile
		if err := yaml.Unmarshal(data, &raw); err != nil {
			errs = append(errs, &SchemaError{File: name, Field: "<file>", Message: err.Error()})
			continue
		}
		for i, rr := range raw.Rules {
			r, ruleErrs := buildRule(name, i, rr, seenIDs)
			if len(ruleErrs) > 0 {
				errs = append(errs, ruleErrs...)
				continue
			}
			seenIDs[r.ID] = true
			rules = append(rules, r)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	Normalize(rules)
	return &RuleSet{Rules: rules, Hash: fingerprint(concatenated)}, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func buildRule(file string, index int, rr RawRule, seenIDs map[string]bool) (Rule, SchemaErrors) {
	var errs SchemaErrors
	ctx := fmt.Sprintf("rules[%d]", index)

	if rr.ID == "" {
		errs = append(errs, &SchemaError{File: file, Field: ctx + ".id", Message: "id is required"})
	} else if !isKebabCase(rr.ID) {
		errs = append(errs, &SchemaError{File: file, RuleID: rr.ID, Field: "id", Message: "id must be kebab-case"})
	} else if seenIDs[rr.ID] {
		errs = append(errs, &SchemaError{File: file, RuleID: rr.ID, Field: "id", Message: "duplicate rule id"})
	}

	if rr.Name == "" {
		errs = append(errs, &SchemaError{File: file, RuleID: rr.ID, Field: "name", Message: "name is required"})
	}

	if rr.Severity == "" {
		rr.Severity = SeverityMedium
	} else if _, ok := severityRank[rr.Severity]; !ok {
		errs = append(errs, &SchemaError{File: file, RuleID: rr.ID, Field: "severity", Message: "unknown severity " + string(rr.Severity)})
	}

	if !validActions[rr.Action] {
		errs = append(errs, &SchemaError{File: file, RuleID: rr.ID, Field: "action", Message: "action must be one of block, warn, log, allow"})
	}

	if len(rr.Conditions) > 0 && len(rr.ConditionGroups) > 0 {
		errs = append(errs, &SchemaError{File: file, RuleID: rr.ID, Field: "conditions", Message: "specify conditions or condition_groups, not both"})
	}

	rawGroups := rr.ConditionGroups
	if len(rr.Conditions) > 0 {
		rawGroups = [][]RawCondition{rr.Conditions}
	}

	groups := make([][]bytecode.Condition, 0, len(rawGroups))
	for gi, group := range rawGroups {
		conds := make([]bytecode.Condition, 0, len(group))
		for ci, rc := range group {
			cond, condErrs := buildCondition(file, rr.ID, gi, ci, rc)
			errs = append(errs, condErrs...)
			if len(condErrs) == 0 {
				conds = append(conds, cond)
			}
		}
		groups = append(groups, conds)
	}

	enabled := true
	if rr.Enabled != nil {
		enabled = *rr.Enabled
	}

	if len(errs) > 0 {
		return Rule{}, errs
	}

	return Rule{
		ID:          rr.ID,
		Name:        rr.Name,
		Description: rr.Description,
		Enabled:     enabled,
		Severity:    rr.Severity,
		Action:      rr.Action,
		Tools:       normalizeToolNames(rr.Tools),
		Groups:      groups,
	}, nil
}

// buildCondition converts one RawCondition into a bytecode.Condition,
// screening any "matches" regex through regexsafety and validating the
// legacy-triple operator vocabulary. An inline expression condition is
// returned as a Condition carrying the parsed Expr and its source text,
// kept in the rule's condition group like any other condition.
func buildCondition(file, ruleID string, groupIdx, condIdx int, rc RawCondition) (bytecode.Condition, SchemaErrors) {
	ctx := fmt.Sprintf("condition_groups[%d][%d]", groupIdx, condIdx)

	if rc.Expression != "" {
		node, err := expr.Parse(rc.Expression)
		if err != nil {
			return bytecode.Condition{}, SchemaErrors{{File: file, RuleID: ruleID, Field: ctx, Message: "expression parse error: " + err.Error()}}
		}
		if node.Depth() > 50 {
			return bytecode.Condition{}, SchemaErrors{{File: file, RuleID: ruleID, Field: ctx, Message: "expression exceeds max AST depth of 50"}}
		}
		return bytecode.Condition{Expr: node, ExprSource: rc.Expression}, nil
	}

	if !conditionOperators[rc.Operator] {
		return bytecode.Condition{}, SchemaErrors{{File: file, RuleID: ruleID, Field: ctx + ".operator", Message: "unknown operator " + rc.Operator}}
	}
	if rc.Field == "" {
		return bytecode.Condition{}, SchemaErrors{{File: file, RuleID: ruleID, Field: ctx + ".field", Message: "field is required"}}
	}

	if rc.Operator == "matches" {
		pattern, ok := rc.Value.(string)
		if !ok {
			return bytecode.Condition{}, SchemaErrors{{File: file, RuleID: ruleID, Field: ctx + ".value", Message: "matches requires a string pattern"}}
		}
		if err := regexsafety.Check(pattern); err != nil {
			return bytecode.Condition{}, SchemaErrors{{File: file, RuleID: ruleID, Field: ctx + ".value", Message: "unsafe regex: " + err.Error()}}
		}
	}

	return bytecode.Condition{
		Field:    value.StripArgumentsPrefix(strings.TrimSpace(rc.Field)),
		Operator: legacyToBytecodeOp[rc.Operator],
		Value:    rc.Value,
	}, nil
}

func isKebabCase(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' && i != 0 && i != len(s)-1:
		default:
			return false
		}
	}
	return true
}

func normalizeToolNames(tools []string) []string {
	out := make([]string, len(tools))
	for i, t := range tools {
		out[i] = strings.ToLower(strings.TrimSpace(t))
	}
	return out
}

