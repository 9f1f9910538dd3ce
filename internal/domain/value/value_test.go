package value

import "testing"

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Null, false},
		{Bool(true), true},
		{Bool(false), false},
		{Number(0), false},
		{Number(1), true},
		{Number(-1), true},
		{String(""), false},
		{String("x"), true},
		{Array(nil), true},
		{Object(nil), true},
	}
	for _, c := range cases {
		if got := Truthy(c.v); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestToNumber(t *testing.T) {
	if ToNumber(String("42")) != 42 {
		t.Error("ToNumber(\"42\") != 42")
	}
	if ToNumber(String("not-a-number")) != 0 {
		t.Error("ToNumber(NaN string) should coerce to 0")
	}
	if ToNumber(Bool(true)) != 1 {
		t.Error("ToNumber(true) != 1")
	}
	if ToNumber(Null) != 0 {
		t.Error("ToNumber(null) != 0")
	}
}

func TestEqual_CrossKindNumeric(t *testing.T) {
	if !Equal(Number(5), String("5")) {
		t.Error("Equal(5, \"5\") should be true")
	}
	if Equal(Number(5), String("five")) {
		t.Error("Equal(5, \"five\") should be false")
	}
}

func TestContains(t *testing.T) {
	if !Contains(String("hello world"), String("world")) {
		t.Error("Contains(\"hello world\", \"world\") should be true")
	}
	arr := Array([]Value{String("a"), String("b")})
	if !Contains(arr, String("b")) {
		t.Error("Contains(array, \"b\") should be true")
	}
	if Contains(arr, String("c")) {
		t.Error("Contains(array, \"c\") should be false")
	}
}

func TestResolve_MissingIntermediate(t *testing.T) {
	args := map[string]any{"user": map[string]any{"name": "alice"}}
	got := Resolve(args, "user.name")
	if got.Kind() != KindString || got.StringValue() != "alice" {
		t.Errorf("Resolve(user.name) = %v, want alice", got)
	}
	missing := Resolve(args, "user.missing.deep")
	if !missing.IsNull() {
		t.Errorf("Resolve(missing path) = %v, want null", missing)
	}
}

func TestFromAnyToAny_RoundTrip(t *testing.T) {
	orig := map[string]any{
		"a": float64(1),
		"b": "two",
		"c": []any{true, nil},
	}
	v := FromAny(orig)
	back := v.ToAny()
	m, ok := back.(map[string]any)
	if !ok {
		t.Fatalf("ToAny() did not return a map: %T", back)
	}
	if m["b"] != "two" {
		t.Errorf("round trip lost field b: %v", m)
	}
}
