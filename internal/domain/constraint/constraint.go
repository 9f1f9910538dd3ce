// Package constraint implements the deterministic, non-bytecode argument
// validator (spec §4.7): a per-argument shape check independent of C5/C6's
// rule engine.
package constraint

import (
	"fmt"

	"github.com/vetoguard/veto/internal/domain/regexsafety"
	"github.com/vetoguard/veto/internal/domain/value"
)

// ArgumentConstraint is a per-argument shape policy (spec §3).
type ArgumentConstraint struct {
	Argument string // dotted path, "arguments." prefix optional
	Enabled  bool
	Required bool
	NotNull  bool

	// Numeric bounds. Each bound applies only when its Has* flag is set, so
	// a zero Min/Max is a real bound of 0, not "unset".
	HasMin, HasMax         bool
	Min, Max               float64
	HasGreaterThan         bool
	GreaterThan            float64
	HasLessThan            bool
	LessThan               float64

	// String constraints.
	HasMinLength, HasMaxLength bool
	MinLength, MaxLength       int
	Regex                      string
	Enum                       []string

	// Array constraints.
	HasMinItems, HasMaxItems bool
	MinItems, MaxItems       int
}

// Result is one constraint's outcome, shaped to feed directly into an
// explanation entry (spec §3).
type Result struct {
	Argument string
	Pass     bool
	Expected string
	Actual   string
	Message  string
}

// Validate runs every enabled constraint against args, in declaration
// order, and returns the first failure with its precise reason — or a
// passing Result for every constraint if all pass. Per spec §4.7 check
// order: missing/required, then number bounds, string length, string
// regex (re-screened at run), string enum, array item count.
func Validate(constraints []ArgumentConstraint, args map[string]any) (Result, bool, []Result) {
	var trail []Result
	for _, c := range constraints {
		if !c.Enabled {
			continue
		}
		res := validateOne(c, args)
		trail = append(trail, res)
		if !res.Pass {
			return res, false, trail
		}
	}
	return Result{}, true, trail
}

func validateOne(c ArgumentConstraint, args map[string]any) Result {
	path := value.StripArgumentsPrefix(c.Argument)
	v := value.Resolve(args, path)

	if v.IsNull() {
		if c.Required || c.NotNull {
			return Result{
				Argument: c.Argument,
				Pass:     false,
				Expected: "present",
				Actual:   "missing",
				Message:  fmt.Sprintf("Required argument %q is missing", c.Argument),
			}
		}
		return Result{Argument: c.Argument, Pass: true, Message: "not provided, not required"}
	}

	if res, checked := checkNumberBounds(c, v); checked && !res.Pass {
		return res
	}
	if res, checked := checkStringLength(c, v); checked && !res.Pass {
		return res
	}
	if res, checked := checkStringRegex(c, v); checked && !res.Pass {
		return res
	}
	if res, checked := checkStringEnum(c, v); checked && !res.Pass {
		return res
	}
	if res, checked := checkArrayItemCount(c, v); checked && !res.Pass {
		return res
	}

	return Result{Argument: c.Argument, Pass: true, Message: "all constraints satisfied"}
}

func checkNumberBounds(c ArgumentConstraint, v value.Value) (Result, bool) {
	if v.Kind() != value.KindNumber {
		return Result{}, false
	}
	n := v.NumberValue()
	if c.HasMin && n < c.Min {
		return fail(c.Argument, fmt.Sprintf(">= %v", c.Min), n, fmt.Sprintf("value %v must be >= %v", n, c.Min)), true
	}
	if c.HasMax && n > c.Max {
		return fail(c.Argument, fmt.Sprintf("<= %v", c.Max), n, fmt.Sprintf("value %v must be <= %v", n, c.Max)), true
	}
	if c.HasGreaterThan && n <= c.GreaterThan {
		return fail(c.Argument, fmt.Sprintf("> %v", c.GreaterThan), n, fmt.Sprintf("value %v must be > %v", n, c.GreaterThan)), true
	}
	if c.HasLessThan && n >= c.LessThan {
		return fail(c.Argument, fmt.Sprintf("< %v", c.LessThan), n, fmt.Sprintf("value %v must be < %v", n, c.LessThan)), true
	}
	return Result{Pass: true}, true
}

func checkStringLength(c ArgumentConstraint, v value.Value) (Result, bool) {
	if v.Kind() != value.KindString {
		return Result{}, false
	}
	if !c.HasMinLength && !c.HasMaxLength {
		return Result{}, false
	}
	s := v.StringValue()
	if c.HasMinLength && len(s) < c.MinLength {
		return fail(c.Argument, fmt.Sprintf(">= %d chars", c.MinLength), len(s), fmt.Sprintf("value length %d must be >= %d", len(s), c.MinLength)), true
	}
	if c.HasMaxLength && len(s) > c.MaxLength {
		return fail(c.Argument, fmt.Sprintf("<= %d chars", c.MaxLength), len(s), fmt.Sprintf("value length %d must be <= %d", len(s), c.MaxLength)), true
	}
	return Result{Pass: true}, true
}

func checkStringRegex(c ArgumentConstraint, v value.Value) (Result, bool) {
	if v.Kind() != value.KindString || c.Regex == "" {
		return Result{}, false
	}
	if err := regexsafety.Check(c.Regex); err != nil {
		return fail(c.Argument, "a safe regex pattern", c.Regex, "regex screening failed at run: "+err.Error()), true
	}
	re, err := compileRegexCached(c.Regex)
	if err != nil {
		return fail(c.Argument, "a valid regex pattern", c.Regex, "invalid regex: "+err.Error()), true
	}
	s := v.StringValue()
	if !re.MatchString(s) {
		return fail(c.Argument, "match "+c.Regex, s, fmt.Sprintf("value %q does not match pattern %q", s, c.Regex)), true
	}
	return Result{Pass: true}, true
}

func checkStringEnum(c ArgumentConstraint, v value.Value) (Result, bool) {
	if v.Kind() != value.KindString || len(c.Enum) == 0 {
		return Result{}, false
	}
	s := v.StringValue()
	for _, e := range c.Enum {
		if e == s {
			return Result{Pass: true}, true
		}
	}
	return fail(c.Argument, fmt.Sprintf("one of %v", c.Enum), s, fmt.Sprintf("value %q is not one of %v", s, c.Enum)), true
}

func checkArrayItemCount(c ArgumentConstraint, v value.Value) (Result, bool) {
	if v.Kind() != value.KindArray {
		return Result{}, false
	}
	if !c.HasMinItems && !c.HasMaxItems {
		return Result{}, false
	}
	n := len(v.ArrayValue())
	if c.HasMinItems && n < c.MinItems {
		return fail(c.Argument, fmt.Sprintf(">= %d items", c.MinItems), n, fmt.Sprintf("array has %d items, must be >= %d", n, c.MinItems)), true
	}
	if c.HasMaxItems && n > c.MaxItems {
		return fail(c.Argument, fmt.Sprintf("<= %d items", c.MaxItems), n, fmt.Sprintf("array has %d items, must be <= %d", n, c.MaxItems)), true
	}
	return Result{Pass: true}, true
}

func fail(argument, expected string, actual any, message string) Result {
	return Result{
		Argument: argument,
		Pass:     false,
		Expected: expected,
		Actual:   fmt.Sprintf("%v", actual),
		Message:  message,
	}
}
