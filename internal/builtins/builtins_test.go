package builtins

import (
	"testing"

	"github.com/kboyd-dev/ployvm/internal/value"
)

func specFn(t *testing.T, name string) value.BuiltinFunc {
	t.Helper()
	for _, s := range Specs {
		if s.Name == name {
			if s.Fn == nil {
				t.Fatalf("%s has no Fn (hand-rolled)", name)
			}
			return s.Fn
		}
	}
	t.Fatalf("no spec named %s", name)
	return nil
}

func TestAddPromotesToFloatOnMixedArgs(t *testing.T) {
	got, ok, err := specFn(t, "+")([]value.Value{value.Int(1), value.Float(2.5)})
	if err != nil || !ok {
		t.Fatalf("+ error=%v ok=%v", err, ok)
	}
	if got.Kind != value.Float64 || got.Float() != 3.5 {
		t.Fatalf("got %v, want 3.5", got)
	}
}

func TestAddStaysIntegerWhenAllArgsAreInt(t *testing.T) {
	got, _, err := specFn(t, "+")([]value.Value{value.Int(1), value.Int(2), value.Int(3)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != value.Int64 || got.Int() != 6 {
		t.Fatalf("got %v, want Int(6)", got)
	}
}

func TestSubUnaryNegates(t *testing.T) {
	got, _, err := specFn(t, "-")([]value.Value{value.Int(5)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Int() != -5 {
		t.Fatalf("got %v, want -5", got)
	}
}

func TestDivByZeroIsError(t *testing.T) {
	if _, _, err := specFn(t, "/")([]value.Value{value.Int(1), value.Int(0)}); err == nil {
		t.Fatalf("expected division by zero error")
	}
}

func TestChainedComparison(t *testing.T) {
	got, _, err := specFn(t, "<")([]value.Value{value.Int(1), value.Int(2), value.Int(3)})
	if err != nil || !value.Truthy(got) {
		t.Fatalf("1 < 2 < 3 should be true, got %v err=%v", got, err)
	}
	got, _, err = specFn(t, "<")([]value.Value{value.Int(1), value.Int(3), value.Int(2)})
	if err != nil || value.Truthy(got) {
		t.Fatalf("1 < 3 < 2 should be false, got %v err=%v", got, err)
	}
}

func TestCarCdrTypeErrors(t *testing.T) {
	if _, _, err := specFn(t, "car")([]value.Value{value.Int(1)}); err == nil {
		t.Fatalf("car of a non-pair should error")
	}
	pair := value.PairVal(value.Int(1), value.Int(2))
	got, _, err := specFn(t, "car")([]value.Value{pair})
	if err != nil || got.Int() != 1 {
		t.Fatalf("car of (1 . 2) = %v, want 1", got)
	}
	got, _, err = specFn(t, "cdr")([]value.Value{pair})
	if err != nil || got.Int() != 2 {
		t.Fatalf("cdr of (1 . 2) = %v, want 2", got)
	}
}

func TestOddRejectsNonInteger(t *testing.T) {
	if _, _, err := specFn(t, "odd?")([]value.Value{value.Float(1.0)}); err == nil {
		t.Fatalf("odd? of a float should error")
	}
	got, _, err := specFn(t, "odd?")([]value.Value{value.Int(3)})
	if err != nil || !value.Truthy(got) {
		t.Fatalf("odd?(3) should be true, got %v err=%v", got, err)
	}
}

func TestEqvAtomsComparedByValuePairsByIdentity(t *testing.T) {
	got, _, err := specFn(t, "eqv?")([]value.Value{value.Int(1), value.Int(1)})
	if err != nil || !value.Truthy(got) {
		t.Fatalf("eqv?(1, 1) should be true, got %v err=%v", got, err)
	}
	got, _, err = specFn(t, "eqv?")([]value.Value{
		value.PairVal(value.Int(1), value.Int(2)),
		value.PairVal(value.Int(1), value.Int(2)),
	})
	if err != nil || value.Truthy(got) {
		t.Fatalf("eqv? of two freshly-built equal pairs should be false, got %v err=%v", got, err)
	}
}

func TestNamesMatchSpecOrder(t *testing.T) {
	names := Names()
	if len(names) != len(Specs) {
		t.Fatalf("Names() length mismatch")
	}
	for i, s := range Specs {
		if names[i] != s.Name {
			t.Fatalf("Names()[%d] = %s, want %s", i, names[i], s.Name)
		}
	}
}
