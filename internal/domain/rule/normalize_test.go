package rule

import "testing"

func TestNormalize_SortsBySeverityThenID(t *testing.T) {
	rules := []Rule{
		{ID: "zzz", Severity: SeverityLow},
		{ID: "aaa", Severity: SeverityCritical},
		{ID: "bbb", Severity: SeverityCritical},
	}
	Normalize(rules)
	want := []string{"aaa", "bbb", "zzz"}
	for i, id := range want {
		if rules[i].ID != id {
			t.Fatalf("position %d: got %q, want %q", i, rules[i].ID, id)
		}
	}
}

func TestNormalize_SortsToolNames(t *testing.T) {
	rules := []Rule{{ID: "r1", Tools: []string{"zeta", "alpha"}}}
	Normalize(rules)
	if rules[0].Tools[0] != "alpha" || rules[0].Tools[1] != "zeta" {
		t.Fatalf("expected sorted tools, got %v", rules[0].Tools)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	rules := []Rule{
		{ID: "zzz", Severity: SeverityLow, Tools: []string{"b", "a"}},
		{ID: "aaa", Severity: SeverityCritical},
	}
	Normalize(rules)
	first := append([]Rule(nil), rules...)
	Normalize(rules)
	for i := range rules {
		if rules[i].ID != first[i].ID {
			t.Fatalf("normalize not idempotent at %d: %q vs %q", i, rules[i].ID, first[i].ID)
		}
	}
}
