package constraint

import "testing"

func TestValidate_RequiredMissingFails(t *testing.T) {
	constraints := []ArgumentConstraint{{Argument: "count", Enabled: true, Required: true}}
	res, pass, _ := Validate(constraints, map[string]any{})
	if pass {
		t.Fatal("expected failure for missing required argument")
	}
	if res.Message != `Required argument "count" is missing` {
		t.Errorf("unexpected message: %q", res.Message)
	}
}

func TestValidate_NumberBounds(t *testing.T) {
	constraints := []ArgumentConstraint{{Argument: "count", Enabled: true, Required: true, HasMin: true, Min: 1, HasMax: true, Max: 10}}

	_, pass, _ := Validate(constraints, map[string]any{"count": 0.0})
	if pass {
		t.Fatal("expected failure: 0 < min 1")
	}

	_, pass, _ = Validate(constraints, map[string]any{"count": 5.0})
	if !pass {
		t.Fatal("expected 5 to satisfy [1,10]")
	}
}

func TestValidate_StringLength(t *testing.T) {
	constraints := []ArgumentConstraint{{Argument: "name", Enabled: true, HasMaxLength: true, MaxLength: 3}}
	_, pass, _ := Validate(constraints, map[string]any{"name": "toolong"})
	if pass {
		t.Fatal("expected failure for a string exceeding max length")
	}
}

func TestValidate_RegexMatch(t *testing.T) {
	constraints := []ArgumentConstraint{{Argument: "path", Enabled: true, Regex: `^/home/.*`}}
	_, pass, _ := Validate(constraints, map[string]any{"path": "/etc/passwd"})
	if pass {
		t.Fatal("expected failure: /etc/passwd does not match ^/home/.*")
	}
	_, pass, _ = Validate(constraints, map[string]any{"path": "/home/user/file"})
	if !pass {
		t.Fatal("expected /home/user/file to match")
	}
}

func TestValidate_StringEnum(t *testing.T) {
	constraints := []ArgumentConstraint{{Argument: "mode", Enabled: true, Enum: []string{"read", "write"}}}
	_, pass, _ := Validate(constraints, map[string]any{"mode": "delete"})
	if pass {
		t.Fatal("expected failure: delete is not in enum")
	}
}

func TestValidate_ArrayItemCount(t *testing.T) {
	constraints := []ArgumentConstraint{{Argument: "tags", Enabled: true, HasMaxItems: true, MaxItems: 2}}
	_, pass, _ := Validate(constraints, map[string]any{"tags": []any{"a", "b", "c"}})
	if pass {
		t.Fatal("expected failure: 3 items exceeds max 2")
	}
}

func TestValidate_DisabledConstraintSkipped(t *testing.T) {
	constraints := []ArgumentConstraint{{Argument: "count", Enabled: false, Required: true}}
	_, pass, trail := Validate(constraints, map[string]any{})
	if !pass {
		t.Fatal("expected disabled constraint to be skipped")
	}
	if len(trail) != 0 {
		t.Fatalf("expected no trail entries for a disabled constraint, got %d", len(trail))
	}
}

func TestValidate_AllPassingProducesFullTrail(t *testing.T) {
	constraints := []ArgumentConstraint{
		{Argument: "count", Enabled: true, Required: true, HasMin: true, Min: 1, HasMax: true, Max: 10},
		{Argument: "name", Enabled: true, HasMaxLength: true, MaxLength: 10},
	}
	_, pass, trail := Validate(constraints, map[string]any{"count": 5.0, "name": "ok"})
	if !pass {
		t.Fatal("expected all constraints to pass")
	}
	if len(trail) != 2 {
		t.Fatalf("expected a trail entry per constraint, got %d", len(trail))
	}
}
