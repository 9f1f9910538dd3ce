package bytecode

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/vetoguard/veto/internal/domain/value"
)

// maxStackDepth and maxInstructions bound a single evaluation (spec §4.6).
// Exceeding either is a VMError surfaced as a deny, never a panic.
const (
	maxStackDepth   = 256
	maxInstructions = 10_000
)

// Sentinel VMError causes (spec §7's VMLimit error kind, plus malformed
// bytecode — the latter can only occur from a corrupt or hand-edited
// compiled policy, since Compile itself always emits well-formed programs).
var (
	ErrStackOverflow    = errors.New("bytecode: operand stack overflow")
	ErrStackUnderflow   = errors.New("bytecode: operand stack underflow")
	ErrInstructionLimit = errors.New("bytecode: instruction budget exceeded")
	ErrBadOperand       = errors.New("bytecode: operand out of range")
	ErrBadRegex         = errors.New("bytecode: invalid regex constant")
	ErrUnknownOpcode    = errors.New("bytecode: unknown opcode")
)

// VMError reports a fatal evaluation failure, always attributing it to the
// rule that was executing when the limit or invariant was violated.
type VMError struct {
	RuleID string
	Err    error
}

func (e *VMError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("bytecode: %v", e.Err)
	}
	return fmt.Sprintf("bytecode: rule %q: %v", e.RuleID, e.Err)
}

func (e *VMError) Unwrap() error { return e.Err }

// Result is the pure outcome of evaluating a Program against one set of
// tool-call arguments.
type Result struct {
	Matched  bool   // whether any rule's condition matched
	Blocks   bool   // whether the matched rule's effect blocks the call
	Effect   string // "allow","block","warn","log","modify" — "allow" if Matched is false
	Reason   string
	RuleID   string
	Instrs   int // instructions actually executed, for diagnostics
}

// Evaluator wraps a compiled Program with a lazily-populated regex cache so
// CMP_MATCH compiles each pattern constant at most once across repeated
// evaluations, not once per call (spec §4.6). Safe for concurrent use.
type Evaluator struct {
	program *Program

	mu    sync.RWMutex
	regex map[int]*regexp.Regexp
}

// NewEvaluator builds an Evaluator for program. program is never mutated.
func NewEvaluator(program *Program) *Evaluator {
	return &Evaluator{program: program, regex: make(map[int]*regexp.Regexp)}
}

// Eval runs the program against args and returns the resulting decision.
// Eval is a pure function of (program, args): it never reads the wall
// clock and its only side effect is populating the regex cache, which is
// observationally transparent (same inputs always produce the same Result).
func (e *Evaluator) Eval(args map[string]any) (Result, error) {
	root := value.FromAny(map[string]any(args))
	vm := &vmRun{program: e.program, eval: e, args: root}
	return vm.run()
}

type vmRun struct {
	program *Program
	eval    *Evaluator
	args    value.Value

	stack []value.Value

	pendingReason string
	pendingRuleID string
	pendingEffect string
}

func (vm *vmRun) push(v value.Value) error {
	if len(vm.stack) >= maxStackDepth {
		return &VMError{RuleID: vm.pendingRuleID, Err: ErrStackOverflow}
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *vmRun) pop() (value.Value, error) {
	if len(vm.stack) == 0 {
		return value.Null, &VMError{RuleID: vm.pendingRuleID, Err: ErrStackUnderflow}
	}
	top := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return top, nil
}

func (vm *vmRun) constAt(idx int) (Const, error) {
	if idx < 0 || idx >= len(vm.program.ConstantPool) {
		return Const{}, &VMError{RuleID: vm.pendingRuleID, Err: ErrBadOperand}
	}
	return vm.program.ConstantPool[idx], nil
}

func (vm *vmRun) argKeyAt(idx int) (string, error) {
	if idx < 0 || idx >= len(vm.program.ArgKeys) {
		return "", &VMError{RuleID: vm.pendingRuleID, Err: ErrBadOperand}
	}
	return vm.program.ArgKeys[idx], nil
}

func constToValue(ct Const) value.Value {
	switch ct.Kind {
	case ConstNull:
		return value.Null
	case ConstBool:
		return value.Bool(ct.Bool)
	case ConstNumber:
		return value.Number(ct.Number)
	case ConstString:
		return value.String(ct.Str)
	case ConstArray:
		items := make([]value.Value, len(ct.Array))
		for i, e := range ct.Array {
			items[i] = constToValue(e)
		}
		return value.Array(items)
	default:
		return value.Null
	}
}

func (vm *vmRun) run() (Result, error) {
	instrCount := 0
	ip := 0
	for ip < len(vm.program.Instructions) {
		instrCount++
		if instrCount > maxInstructions {
			return Result{}, &VMError{RuleID: vm.pendingRuleID, Err: ErrInstructionLimit}
		}
		instr := vm.program.Instructions[ip]
		ip++

		switch instr.Op {
		case OpLoadArg:
			key, err := vm.argKeyAt(instr.Operand)
			if err != nil {
				return Result{}, err
			}
			if err := vm.push(value.ResolveValue(vm.args, key)); err != nil {
				return Result{}, err
			}

		case OpLoadConst:
			ct, err := vm.constAt(instr.Operand)
			if err != nil {
				return Result{}, err
			}
			if err := vm.push(constToValue(ct)); err != nil {
				return Result{}, err
			}

		case OpCmpEQ, OpCmpNEQ, OpCmpLT, OpCmpGT, OpCmpLTE, OpCmpGTE,
			OpCmpContains, OpCmpStartsWith, OpCmpEndsWith, OpCmpIn, OpCmpNotIn:
			if err := vm.execCompare(instr.Op); err != nil {
				return Result{}, err
			}

		case OpCmpMatch:
			if err := vm.execMatch(instr.Operand); err != nil {
				return Result{}, err
			}

		case OpAnd:
			b, err := vm.pop()
			if err != nil {
				return Result{}, err
			}
			a, err := vm.pop()
			if err != nil {
				return Result{}, err
			}
			if err := vm.push(value.Bool(value.Truthy(a) && value.Truthy(b))); err != nil {
				return Result{}, err
			}

		case OpOr:
			b, err := vm.pop()
			if err != nil {
				return Result{}, err
			}
			a, err := vm.pop()
			if err != nil {
				return Result{}, err
			}
			if err := vm.push(value.Bool(value.Truthy(a) || value.Truthy(b))); err != nil {
				return Result{}, err
			}

		case OpNot:
			a, err := vm.pop()
			if err != nil {
				return Result{}, err
			}
			if err := vm.push(value.Bool(!value.Truthy(a))); err != nil {
				return Result{}, err
			}

		case OpNeg:
			a, err := vm.pop()
			if err != nil {
				return Result{}, err
			}
			if err := vm.push(value.Number(-value.ToNumber(a))); err != nil {
				return Result{}, err
			}

		case OpAdd, OpSub, OpMul, OpDiv:
			if err := vm.execArith(instr.Op); err != nil {
				return Result{}, err
			}

		case OpCallLen, OpCallLower, OpCallUpper, OpCallAbs, OpCallStartsWith, OpCallEndsWith:
			if err := vm.execUnaryOrBinaryCall(instr.Op); err != nil {
				return Result{}, err
			}

		case OpCallMin, OpCallMax:
			if err := vm.execVariadicCall(instr.Op, instr.Operand); err != nil {
				return Result{}, err
			}

		case OpSetReason:
			ct, err := vm.constAt(instr.Operand)
			if err != nil {
				return Result{}, err
			}
			vm.pendingReason = ct.Str

		case OpSetRuleID:
			ct, err := vm.constAt(instr.Operand)
			if err != nil {
				return Result{}, err
			}
			vm.pendingRuleID = ct.Str

		case OpSetEffect:
			ct, err := vm.constAt(instr.Operand)
			if err != nil {
				return Result{}, err
			}
			vm.pendingEffect = ct.Str

		case OpEmitDecision:
			matched, err := vm.pop()
			if err != nil {
				return Result{}, err
			}
			if value.Truthy(matched) {
				return Result{
					Matched: true,
					Blocks:  instr.Operand == 1,
					Effect:  vm.pendingEffect,
					Reason:  vm.pendingReason,
					RuleID:  vm.pendingRuleID,
					Instrs:  instrCount,
				}, nil
			}
			vm.pendingReason, vm.pendingRuleID, vm.pendingEffect = "", "", ""

		case OpHalt:
			return Result{Matched: false, Blocks: false, Effect: "allow", Instrs: instrCount}, nil

		default:
			return Result{}, &VMError{Err: fmt.Errorf("%w: %v", ErrUnknownOpcode, instr.Op)}
		}
	}
	return Result{Matched: false, Blocks: false, Effect: "allow", Instrs: instrCount}, nil
}

func (vm *vmRun) execCompare(op Opcode) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	var out bool
	switch op {
	case OpCmpEQ:
		out = value.Equal(a, b)
	case OpCmpNEQ:
		out = !value.Equal(a, b)
	case OpCmpLT:
		out = value.ToNumber(a) < value.ToNumber(b)
	case OpCmpGT:
		out = value.ToNumber(a) > value.ToNumber(b)
	case OpCmpLTE:
		out = value.ToNumber(a) <= value.ToNumber(b)
	case OpCmpGTE:
		out = value.ToNumber(a) >= value.ToNumber(b)
	case OpCmpContains:
		out = value.Contains(a, b)
	case OpCmpStartsWith:
		out = stringPrefix(a, b, true)
	case OpCmpEndsWith:
		out = stringPrefix(a, b, false)
	case OpCmpIn:
		out = value.Contains(b, a)
	case OpCmpNotIn:
		out = !value.Contains(b, a)
	}
	return vm.push(value.Bool(out))
}

func stringPrefix(a, b value.Value, prefix bool) bool {
	if a.Kind() != value.KindString || b.Kind() != value.KindString {
		return false
	}
	s, p := a.StringValue(), b.StringValue()
	if prefix {
		return len(s) >= len(p) && s[:len(p)] == p
	}
	return len(s) >= len(p) && s[len(s)-len(p):] == p
}

// execMatch implements CMP_MATCH: the pattern never travels through the
// operand stack — it is a constant-pool regex referenced directly by the
// instruction's operand, compiled at most once and cached on the
// Evaluator (spec §4.6: "compiles the RHS pattern to a regex at run time
// once per emission").
func (vm *vmRun) execMatch(constIdx int) error {
	subject, err := vm.pop()
	if err != nil {
		return err
	}
	re, err := vm.eval.compiledRegex(constIdx)
	if err != nil {
		return &VMError{RuleID: vm.pendingRuleID, Err: err}
	}
	if subject.Kind() != value.KindString {
		return vm.push(value.Bool(false))
	}
	return vm.push(value.Bool(re.MatchString(subject.StringValue())))
}

// compiledRegex returns the compiled regexp for constant-pool index idx,
// compiling and caching it on first use.
func (e *Evaluator) compiledRegex(idx int) (*regexp.Regexp, error) {
	e.mu.RLock()
	re, ok := e.regex[idx]
	e.mu.RUnlock()
	if ok {
		return re, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if re, ok := e.regex[idx]; ok {
		return re, nil
	}
	if idx < 0 || idx >= len(e.program.ConstantPool) {
		return nil, ErrBadOperand
	}
	ct := e.program.ConstantPool[idx]
	if ct.Kind != ConstRegex {
		return nil, ErrBadRegex
	}
	compiled, err := regexp.Compile(ct.RegexSrc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRegex, err)
	}
	e.regex[idx] = compiled
	return compiled, nil
}

func (vm *vmRun) execArith(op Opcode) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	if op == OpAdd && a.Kind() == value.KindString && b.Kind() == value.KindString {
		return vm.push(value.String(a.StringValue() + b.StringValue()))
	}
	x, y := value.ToNumber(a), value.ToNumber(b)
	var out float64
	switch op {
	case OpAdd:
		out = x + y
	case OpSub:
		out = x - y
	case OpMul:
		out = x * y
	case OpDiv:
		if y == 0 {
			return &VMError{RuleID: vm.pendingRuleID, Err: errors.New("division by zero")}
		}
		out = x / y
	}
	return vm.push(value.Number(out))
}

func (vm *vmRun) execUnaryOrBinaryCall(op Opcode) error {
	switch op {
	case OpCallLen:
		a, err := vm.pop()
		if err != nil {
			return err
		}
		var n float64
		switch a.Kind() {
		case value.KindString:
			n = float64(len([]rune(a.StringValue())))
		case value.KindArray:
			n = float64(len(a.ArrayValue()))
		case value.KindObject:
			n = float64(len(a.ObjectValue()))
		}
		return vm.push(value.Number(n))

	case OpCallLower, OpCallUpper:
		a, err := vm.pop()
		if err != nil {
			return err
		}
		s := a.StringValue()
		if op == OpCallLower {
			s = strings.ToLower(s)
		} else {
			s = strings.ToUpper(s)
		}
		return vm.push(value.String(s))

	case OpCallAbs:
		a, err := vm.pop()
		if err != nil {
			return err
		}
		n := value.ToNumber(a)
		if n < 0 {
			n = -n
		}
		return vm.push(value.Number(n))

	case OpCallStartsWith, OpCallEndsWith:
		b, err := vm.pop()
		if err != nil {
			return err
		}
		a, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(value.Bool(stringPrefix(a, b, op == OpCallStartsWith)))

	default:
		return &VMError{RuleID: vm.pendingRuleID, Err: fmt.Errorf("%w: %v", ErrUnknownOpcode, op)}
	}
}

func (vm *vmRun) execVariadicCall(op Opcode, arity int) error {
	if arity <= 0 {
		arity = 1
	}
	args := make([]float64, arity)
	for i := arity - 1; i >= 0; i-- {
		a, err := vm.pop()
		if err != nil {
			return err
		}
		args[i] = value.ToNumber(a)
	}
	out := args[0]
	for _, n := range args[1:] {
		if op == OpCallMin && n < out {
			out = n
		}
		if op == OpCallMax && n > out {
			out = n
		}
	}
	return vm.push(value.Number(out))
}
