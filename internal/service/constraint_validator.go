package service

import (
	"context"
	"sync/atomic"

	"github.com/vetoguard/veto/internal/domain/constraint"
)

// ConstraintValidator runs C7's deterministic argument-shape checks ahead of
// (or instead of) rule evaluation — e.g. "count must be between 1 and 10".
type ConstraintValidator struct {
	name       string
	priority   int
	toolFilter []string

	byTool atomic.Pointer[map[string][]constraint.ArgumentConstraint]
}

// NewConstraintValidator builds a ConstraintValidator over an initial
// per-tool constraint map. toolFilter restricts which tools it runs for;
// pass nil to run for every tool named in byTool (and skip others).
func NewConstraintValidator(priority int, byTool map[string][]constraint.ArgumentConstraint, toolFilter []string) *ConstraintValidator {
	v := &ConstraintValidator{name: "argument-constraints", priority: priority, toolFilter: toolFilter}
	v.byTool.Store(&byTool)
	return v
}

func (v *ConstraintValidator) Name() string         { return v.name }
func (v *ConstraintValidator) Priority() int        { return v.priority }
func (v *ConstraintValidator) ToolFilter() []string { return v.toolFilter }

// SetConstraints atomically replaces the per-tool constraint map.
func (v *ConstraintValidator) SetConstraints(byTool map[string][]constraint.ArgumentConstraint) {
	v.byTool.Store(&byTool)
}

// Validate runs every constraint registered for input.ToolName in order,
// stopping at the first failure (spec §4.7).
func (v *ConstraintValidator) Validate(ctx context.Context, input DecisionInput) (Result, error) {
	byTool := v.byTool.Load()
	if byTool == nil {
		return Result{Decision: DecisionAllow}, nil
	}
	constraints, ok := (*byTool)[input.ToolName]
	if !ok || len(constraints) == 0 {
		return Result{Decision: DecisionAllow}, nil
	}

	failure, pass, trail := constraint.Validate(constraints, input.Arguments)
	if !pass {
		return Result{
			Decision: DecisionDeny,
			Reason:   failure.Message,
			Metadata: map[string]any{"argument": failure.Argument, "trail": trail},
		}, nil
	}
	return Result{Decision: DecisionAllow, Metadata: map[string]any{"trail": trail}}, nil
}
