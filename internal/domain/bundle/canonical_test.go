package bundle

import "testing"

func TestCanonicalize_SortsObjectKeys(t *testing.T) {
	out, err := Canonicalize(map[string]any{"b": 1, "a": 2})
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if string(out) != `{"a":2,"b":1}` {
		t.Fatalf("got %s, want sorted keys", out)
	}
}

func TestCanonicalize_PreservesArrayOrder(t *testing.T) {
	out, err := Canonicalize([]any{3, 1, 2})
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if string(out) != `[3,1,2]` {
		t.Fatalf("got %s, want array order preserved", out)
	}
}

func TestCanonicalize_Deterministic(t *testing.T) {
	v := map[string]any{"z": []any{1, 2}, "a": map[string]any{"y": 1, "x": 2}}
	first, err := Canonicalize(v)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Canonicalize(v)
		if err != nil {
			t.Fatalf("Canonicalize failed: %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("canonical output not stable across runs")
		}
	}
}

func TestCanonicalize_NoInsignificantWhitespace(t *testing.T) {
	out, err := Canonicalize(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	for _, b := range out {
		if b == ' ' || b == '\n' || b == '\t' {
			t.Fatalf("canonical output contains whitespace: %q", out)
		}
	}
}
