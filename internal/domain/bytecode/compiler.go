package bytecode

import (
	"fmt"

	"github.com/vetoguard/veto/internal/domain/expr"
	"github.com/vetoguard/veto/internal/domain/value"
)

// CompileError wraps a failure to translate a rule into bytecode; it always
// names the offending rule so a policy author can locate the bad rule.
type CompileError struct {
	RuleID string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("bytecode: rule %q: %v", e.RuleID, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// compiler accumulates instructions plus deduplicated constant-pool and
// argument-key tables while translating a rule set (spec §4.5).
type compiler struct {
	instructions []Instruction
	constants    []Const
	constIndex   map[string]int // stable key -> constants index, for dedup
	argKeys      []string
	argIndex     map[string]int
	ruleIDs      []string
}

// Compile translates an ordered list of rules into a single Program.
// Disabled rules are skipped entirely. Rules are compiled in list order,
// which is also their evaluation precedence: the VM returns on the first
// rule whose condition matches.
func Compile(rules []Rule) (*Program, error) {
	c := &compiler{
		constIndex: make(map[string]int),
		argIndex:   make(map[string]int),
	}
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if err := c.compileRule(r); err != nil {
			return nil, &CompileError{RuleID: r.ID, Err: err}
		}
		c.ruleIDs = append(c.ruleIDs, r.ID)
	}
	c.emit(OpHalt, 0)
	return &Program{
		Version:      1,
		Instructions: c.instructions,
		ConstantPool: c.constants,
		ArgKeys:      c.argKeys,
		RuleIDs:      c.ruleIDs,
	}, nil
}

func (c *compiler) emit(op Opcode, operand int) {
	c.instructions = append(c.instructions, Instruction{Op: op, Operand: operand})
}

func (c *compiler) compileRule(r Rule) error {
	if err := c.compileConditionResult(r); err != nil {
		return err
	}
	reasonIdx := c.internConst(Const{Kind: ConstString, Str: r.Reason})
	ruleIdx := c.internConst(Const{Kind: ConstString, Str: r.ID})
	effectIdx := c.internConst(Const{Kind: ConstString, Str: r.Effect})
	c.emit(OpSetReason, reasonIdx)
	c.emit(OpSetRuleID, ruleIdx)
	c.emit(OpSetEffect, effectIdx)
	operand := 0
	if blockingEffects[r.Effect] {
		operand = 1
	}
	c.emit(OpEmitDecision, operand)
	return nil
}

// compileConditionResult pushes the rule's overall match result (a single
// boolean) onto the stack: groups ORed together, conditions within a group
// ANDed, further ANDed with an inline expression when present.
func (c *compiler) compileConditionResult(r Rule) error {
	hasGroups := len(r.Groups) > 0
	if !hasGroups && r.Expression == nil {
		c.emit(OpLoadConst, c.internConst(Const{Kind: ConstBool, Bool: true}))
		return nil
	}

	if hasGroups {
		for gi, group := range r.Groups {
			if err := c.compileGroup(group); err != nil {
				return err
			}
			if gi > 0 {
				c.emit(OpOr, 0)
			}
		}
	}
	if r.Expression != nil {
		if err := c.compileExprNode(r.Expression); err != nil {
			return err
		}
		if hasGroups {
			c.emit(OpAnd, 0)
		}
	}
	return nil
}

func (c *compiler) compileGroup(group []Condition) error {
	if len(group) == 0 {
		c.emit(OpLoadConst, c.internConst(Const{Kind: ConstBool, Bool: true}))
		return nil
	}
	for i, cond := range group {
		var err error
		if cond.Expr != nil {
			err = c.compileExprNode(cond.Expr)
		} else {
			err = c.compileCondition(cond)
		}
		if err != nil {
			return err
		}
		if i > 0 {
			c.emit(OpAnd, 0)
		}
	}
	return nil
}

func (c *compiler) compileCondition(cond Condition) error {
	c.emit(OpLoadArg, c.internArgKey(value.StripArgumentsPrefix(cond.Field)))
	negate := false
	op := cond.Operator
	if op == "not_contains" {
		op = "contains"
		negate = true
	}
	cmpOp, ok := conditionOpcodes[op]
	if !ok {
		return fmt.Errorf("unknown condition operator %q", cond.Operator)
	}
	if cmpOp == OpCmpMatch {
		src, _ := cond.Value.(string)
		idx := c.internConst(Const{Kind: ConstRegex, RegexSrc: src})
		c.emit(OpCmpMatch, idx)
	} else {
		c.emit(OpLoadConst, c.internConst(valueToConst(value.FromAny(cond.Value))))
		c.emit(cmpOp, 0)
	}
	if negate {
		c.emit(OpNot, 0)
	}
	return nil
}

var conditionOpcodes = map[string]Opcode{
	"eq":          OpCmpEQ,
	"neq":         OpCmpNEQ,
	"lt":          OpCmpLT,
	"gt":          OpCmpGT,
	"lte":         OpCmpLTE,
	"gte":         OpCmpGTE,
	"matches":     OpCmpMatch,
	"contains":    OpCmpContains,
	"starts_with": OpCmpStartsWith,
	"ends_with":   OpCmpEndsWith,
	"in":          OpCmpIn,
	"not_in":      OpCmpNotIn,
}

// compileExprNode translates an expr AST (spec §4.4 grammar) into bytecode.
func (c *compiler) compileExprNode(n *expr.Node) error {
	switch n.Kind {
	case expr.NodeLiteral:
		return c.compileLiteral(n)
	case expr.NodePath:
		c.emit(OpLoadArg, c.internArgKey(pathString(n)))
		return nil
	case expr.NodeUnary:
		if err := c.compileExprNode(n.Operand); err != nil {
			return err
		}
		switch n.UnaryOp {
		case "!":
			c.emit(OpNot, 0)
		case "-":
			c.emit(OpNeg, 0)
		default:
			return fmt.Errorf("unknown unary operator %q", n.UnaryOp)
		}
		return nil
	case expr.NodeBinary:
		return c.compileBinary(n)
	case expr.NodeCall:
		return c.compileCall(n)
	default:
		return fmt.Errorf("unknown expression node kind %v", n.Kind)
	}
}

func (c *compiler) compileLiteral(n *expr.Node) error {
	var ct Const
	switch n.LitKind {
	case expr.LitNull:
		ct = Const{Kind: ConstNull}
	case expr.LitBool:
		ct = Const{Kind: ConstBool, Bool: n.Bool}
	case expr.LitNumber:
		ct = Const{Kind: ConstNumber, Number: n.Number}
	case expr.LitString:
		ct = Const{Kind: ConstString, Str: n.Str}
	default:
		return fmt.Errorf("unknown literal kind %v", n.LitKind)
	}
	c.emit(OpLoadConst, c.internConst(ct))
	return nil
}

// binaryCmpOpcodes excludes "matches", which compileBinary handles
// separately since its right-hand side compiles to a constant-pool regex
// index carried on the instruction rather than pushed onto the stack.
var binaryCmpOpcodes = map[string]Opcode{
	"==": OpCmpEQ, "!=": OpCmpNEQ,
	"<": OpCmpLT, ">": OpCmpGT, "<=": OpCmpLTE, ">=": OpCmpGTE,
	"contains":    OpCmpContains,
	"starts_with": OpCmpStartsWith, "ends_with": OpCmpEndsWith,
	"in": OpCmpIn, "not_in": OpCmpNotIn,
}

var binaryArithOpcodes = map[string]Opcode{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv,
}

func (c *compiler) compileBinary(n *expr.Node) error {
	switch n.BinOp {
	case "&&":
		if err := c.compileExprNode(n.Left); err != nil {
			return err
		}
		if err := c.compileExprNode(n.Right); err != nil {
			return err
		}
		c.emit(OpAnd, 0)
		return nil
	case "||":
		if err := c.compileExprNode(n.Left); err != nil {
			return err
		}
		if err := c.compileExprNode(n.Right); err != nil {
			return err
		}
		c.emit(OpOr, 0)
		return nil
	}

	if err := c.compileExprNode(n.Left); err != nil {
		return err
	}

	if n.BinOp == "matches" {
		if n.Right.Kind != expr.NodeLiteral || n.Right.LitKind != expr.LitString {
			return fmt.Errorf("'matches' requires a string literal pattern")
		}
		idx := c.internConst(Const{Kind: ConstRegex, RegexSrc: n.Right.Str})
		c.emit(OpCmpMatch, idx)
		return nil
	}

	if err := c.compileExprNode(n.Right); err != nil {
		return err
	}

	if op, ok := binaryCmpOpcodes[n.BinOp]; ok {
		c.emit(op, 0)
		return nil
	}
	if op, ok := binaryArithOpcodes[n.BinOp]; ok {
		c.emit(op, 0)
		return nil
	}
	return fmt.Errorf("unknown binary operator %q", n.BinOp)
}

func (c *compiler) compileCall(n *expr.Node) error {
	for _, a := range n.Args {
		if err := c.compileExprNode(a); err != nil {
			return err
		}
	}
	switch n.FuncName {
	case "len":
		c.emit(OpCallLen, len(n.Args))
	case "lower":
		c.emit(OpCallLower, len(n.Args))
	case "upper":
		c.emit(OpCallUpper, len(n.Args))
	case "abs":
		c.emit(OpCallAbs, len(n.Args))
	case "min":
		c.emit(OpCallMin, len(n.Args))
	case "max":
		c.emit(OpCallMax, len(n.Args))
	case "starts_with":
		c.emit(OpCallStartsWith, len(n.Args))
	case "ends_with":
		c.emit(OpCallEndsWith, len(n.Args))
	default:
		return fmt.Errorf("unknown function %q", n.FuncName)
	}
	return nil
}

// pathString renders a path AST node back to its dotted/bracketed form,
// e.g. "user.roles[0]" or "items[*].name", relative to the "arguments"
// root — which every rule-condition path is rooted at (spec §4.4) and is
// therefore dropped, matching the ArgKeys table's "arguments."-stripped
// convention.
func pathString(n *expr.Node) string {
	var b []byte
	if n.Root != "arguments" {
		b = append(b, n.Root...)
	}
	for _, seg := range n.Segments {
		switch {
		case seg.IsWildcard:
			b = append(b, "[*]"...)
		case seg.IsIndex:
			b = append(b, fmt.Sprintf("[%d]", seg.Index)...)
		default:
			if len(b) > 0 {
				b = append(b, '.')
			}
			b = append(b, seg.Field...)
		}
	}
	return string(b)
}

func valueToConst(v value.Value) Const {
	switch v.Kind() {
	case value.KindNull:
		return Const{Kind: ConstNull}
	case value.KindBool:
		return Const{Kind: ConstBool, Bool: v.Bool()}
	case value.KindNumber:
		return Const{Kind: ConstNumber, Number: v.NumberValue()}
	case value.KindString:
		return Const{Kind: ConstString, Str: v.StringValue()}
	case value.KindArray:
		items := v.ArrayValue()
		arr := make([]Const, len(items))
		for i, it := range items {
			arr[i] = valueToConst(it)
		}
		return Const{Kind: ConstArray, Array: arr}
	default:
		return Const{Kind: ConstNull}
	}
}

// constKey builds a stable dedup key for a constant; arrays are keyed
// structurally so identical array literals reuse one pool slot.
func constKey(ct Const) string {
	switch ct.Kind {
	case ConstNull:
		return "n:"
	case ConstBool:
		return fmt.Sprintf("b:%v", ct.Bool)
	case ConstNumber:
		return fmt.Sprintf("f:%v", ct.Number)
	case ConstString:
		return "s:" + ct.Str
	case ConstRegex:
		return "r:" + ct.RegexSrc + "\x00" + ct.RegexFlags
	case ConstArray:
		key := "a:"
		for _, e := range ct.Array {
			key += constKey(e) + "\x01"
		}
		return key
	default:
		return "?"
	}
}

func (c *compiler) internConst(ct Const) int {
	key := constKey(ct)
	if idx, ok := c.constIndex[key]; ok {
		return idx
	}
	idx := len(c.constants)
	c.constants = append(c.constants, ct)
	c.constIndex[key] = idx
	return idx
}

func (c *compiler) internArgKey(path string) int {
	if idx, ok := c.argIndex[path]; ok {
		return idx
	}
	idx := len(c.argKeys)
	c.argKeys = append(c.argKeys, path)
	c.argIndex[path] = idx
	return idx
}
