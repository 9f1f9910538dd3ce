package rule

import "github.com/vetoguard/veto/internal/domain/bytecode"

// RulesForTool returns the normalized-order subset of rs.Rules that apply to
// toolName (AppliesToTool), preserving relative order (severity-then-id,
// since Normalize already sorted the full set).
func (rs RuleSet) RulesForTool(toolName string) []Rule {
	out := make([]Rule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.AppliesToTool(toolName) {
			out = append(out, r)
		}
	}
	return out
}

// ToolNames returns the set of distinct tool names named by any rule in rs,
// excluding rules that apply to every tool (empty Tools list).
func (rs RuleSet) ToolNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range rs.Rules {
		for _, t := range r.Tools {
			if !seen[t] {
				seen[t] = true
				names = append(names, t)
			}
		}
	}
	return names
}

// CompileTool compiles the rules applicable to toolName into a bytecode
// Program, in the rule set's normalized order (first matching rule wins).
func (rs RuleSet) CompileTool(toolName string) (*bytecode.Program, error) {
	applicable := rs.RulesForTool(toolName)
	bcRules := make([]bytecode.Rule, len(applicable))
	for i, r := range applicable {
		bcRules[i] = r.ToBytecode()
	}
	return bytecode.Compile(bcRules)
}
