package value

import "testing"

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Bool_(false), false},
		{Bool_(true), true},
		{Int(0), true},
		{Empty(), true},
		{Sym("x"), true},
	}
	for _, c := range cases {
		if got := Truthy(c.v); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestDerefFollowsRef(t *testing.T) {
	inner := Int(5)
	ref := RefVal(&inner)
	if got := Deref(ref); got.Kind != Int64 || got.Int() != 5 {
		t.Fatalf("Deref(ref) = %v, want Int(5)", got)
	}
	if got := Deref(inner); got.Kind != Int64 {
		t.Fatalf("Deref(non-ref) should be identity")
	}
}

func TestStructKeyDedupesAtoms(t *testing.T) {
	a := Int(42).Key(0)
	b := Int(42).Key(0)
	c := Int(43).Key(0)
	if a != b {
		t.Fatalf("equal ints should have equal keys: %+v vs %+v", a, b)
	}
	if a == c {
		t.Fatalf("different ints should have different keys")
	}
}

func TestStructKeyDistinguishesLambdaPlaceholders(t *testing.T) {
	a := LambdaConstant().Key(0)
	b := LambdaConstant().Key(1)
	if a == b {
		t.Fatalf("distinct lambda placeholders must not collide by ordinal")
	}
}

func TestStructKeyDedupesHandRolledByNameOnly(t *testing.T) {
	a := HandRolledLambdaConstant("call/cc").Key(3)
	b := HandRolledLambdaConstant("call/cc").Key(9)
	if a != b {
		t.Fatalf("hand-rolled placeholders should dedup by name regardless of ordinal")
	}
}

func TestPrintExternalRepresentation(t *testing.T) {
	if got := Print(Bool_(true)); got != "#t" {
		t.Fatalf("got %q", got)
	}
	if got := Print(Empty()); got != "()" {
		t.Fatalf("got %q", got)
	}
}
