package audit

import "testing"

func TestTrail_NoneVerbosityRecordsNothing(t *testing.T) {
	tr := NewTrail(VerbosityNone, nil)
	tr.AddRuleMatch(Entry{RuleID: "r1", Result: ResultFail})
	tr.AddConstraintCheck(Entry{Constraint: "count", Result: ResultFail})
	if len(tr.Entries()) != 0 {
		t.Fatalf("expected no entries at none verbosity, got %+v", tr.Entries())
	}
}

func TestTrail_SimpleVerbosityRecordsRuleMatchesOnly(t *testing.T) {
	tr := NewTrail(VerbositySimple, nil)
	tr.AddRuleMatch(Entry{RuleID: "r1", Result: ResultFail})
	tr.AddConstraintCheck(Entry{Constraint: "count", Result: ResultFail})
	if len(tr.Entries()) != 1 {
		t.Fatalf("expected only the rule-match entry at simple verbosity, got %+v", tr.Entries())
	}
}

func TestTrail_VerboseVerbosityRecordsBoth(t *testing.T) {
	tr := NewTrail(VerbosityVerbose, nil)
	tr.AddRuleMatch(Entry{RuleID: "r1", Result: ResultFail})
	tr.AddConstraintCheck(Entry{Constraint: "count", Result: ResultFail})
	if len(tr.Entries()) != 2 {
		t.Fatalf("expected both entries at verbose verbosity, got %+v", tr.Entries())
	}
}

func TestTrail_RedactsConfiguredPaths(t *testing.T) {
	tr := NewTrail(VerbosityVerbose, []string{"user.ssn"})
	tr.AddConstraintCheck(Entry{Path: "user.ssn", Expected: "a valid SSN", Actual: "123-45-6789"})
	tr.AddConstraintCheck(Entry{Path: "user.ssn.last4", Expected: "4 digits", Actual: "6789"})
	tr.AddConstraintCheck(Entry{Path: "user.name", Expected: "non-empty", Actual: "Alice"})

	entries := tr.Entries()
	if entries[0].Actual != redactedPlaceholder || entries[0].Expected != redactedPlaceholder {
		t.Fatalf("expected the exact redacted path to be replaced, got %+v", entries[0])
	}
	if entries[1].Actual != redactedPlaceholder {
		t.Fatalf("expected a path nested beneath a redacted path to be replaced too, got %+v", entries[1])
	}
	if entries[2].Actual != "Alice" {
		t.Fatalf("expected an unrelated path to be left alone, got %+v", entries[2])
	}
}

func TestTrail_NilTrailIsSafeNoOp(t *testing.T) {
	var tr *Trail
	tr.AddRuleMatch(Entry{RuleID: "r1"})
	tr.AddConstraintCheck(Entry{Constraint: "count"})
	if tr.Entries() != nil {
		t.Fatal("expected a nil trail to return nil entries")
	}
	if tr.Verbosity() != VerbosityNone {
		t.Fatal("expected a nil trail to report VerbosityNone")
	}
}

func TestParseVerbosity(t *testing.T) {
	cases := map[string]Verbosity{
		"none":    VerbosityNone,
		"simple":  VerbositySimple,
		"verbose": VerbosityVerbose,
		"":        VerbositySimple,
		"bogus":   VerbositySimple,
	}
	for in, want := range cases {
		if got := ParseVerbosity(in); got != want {
			t.Errorf("ParseVerbosity(%q) = %q, want %q", in, got, want)
		}
	}
}
