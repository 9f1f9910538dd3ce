package rule

import (
	"errors"
	"testing"
)

const sampleYAML = `
version: 1
name: test-policy
rules:
  - id: block-etc-paths
    name: Block /etc reads
    severity: critical
    action: block
    conditions:
      - field: arguments.path
        operator: starts_with
        value: "/etc"
  - id: warn-large-amount
    name: Warn on large amounts
    severity: medium
    action: warn
    conditions:
      - expression: "arguments.amount > 1000"
`

func TestLoad_ParsesAndCompiles(t *testing.T) {
	rs, err := Load("test.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(rs.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rs.Rules))
	}
	// severity sort: critical before medium
	if rs.Rules[0].ID != "block-etc-paths" {
		t.Errorf("expected block-etc-paths first (critical), got %q", rs.Rules[0].ID)
	}
	if rs.Hash == "" {
		t.Error("expected a non-empty fingerprint hash")
	}
}

func TestLoad_RejectsDuplicateID(t *testing.T) {
	src := `
rules:
  - id: dup
    name: a
    action: allow
  - id: dup
    name: b
    action: allow
`
	_, err := Load("test.yaml", []byte(src))
	if err == nil {
		t.Fatal("expected a SchemaErrors for duplicate id")
	}
	var se SchemaErrors
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaErrors, got %T", err)
	}
}

func TestLoad_RejectsBadKebabID(t *testing.T) {
	src := `
rules:
  - id: Not_Kebab
    name: a
    action: allow
`
	_, err := Load("test.yaml", []byte(src))
	if err == nil {
		t.Fatal("expected a SchemaErrors for non-kebab-case id")
	}
}

func TestLoad_RejectsUnknownAction(t *testing.T) {
	src := `
rules:
  - id: r1
    name: a
    action: frobnicate
`
	_, err := Load("test.yaml", []byte(src))
	if err == nil {
		t.Fatal("expected a SchemaErrors for unknown action")
	}
}

func TestLoad_RejectsUnsafeRegex(t *testing.T) {
	src := `
rules:
  - id: r1
    name: a
    action: block
    conditions:
      - field: arguments.path
        operator: matches
        value: "(a+)+"
`
	_, err := Load("test.yaml", []byte(src))
	if err == nil {
		t.Fatal("expected a SchemaErrors for an unsafe regex pattern")
	}
}

func TestLoad_ToBytecode_Compiles(t *testing.T) {
	rs, err := Load("test.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for _, r := range rs.Rules {
		bc := r.ToBytecode()
		if bc.ID != r.ID {
			t.Errorf("ToBytecode ID mismatch: %q vs %q", bc.ID, r.ID)
		}
	}
}
