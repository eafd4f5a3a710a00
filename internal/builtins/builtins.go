// Package builtins supplies the primitive procedures and hand-rolled
// procedures installed into the root lambda's scope before any user code
// runs. Both the compiler (which needs only the names, to reserve stack-var
// slots in a fixed order) and the VM (which needs the actual values, seeded
// into frame 0) share this table so their slot numbering never drifts apart.
package builtins

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kboyd-dev/ployvm/internal/value"
)

// Spec describes one root-scope binding: either an ordinary Go-implemented
// primitive (Fn) or a hand-rolled procedure installed from canned bytecode
// (HandRolled names an entry in bytecode.HandRolled).
type Spec struct {
	Name       string
	Fn         value.BuiltinFunc
	HandRolled string
}

// Specs lists every root-scope binding in the fixed order their stack-var
// slots are assigned. Grounded on original_source/include/virtual_machine.hpp's
// bp_name_to_ptr table, extended with the comparison and pair predicates the
// expanded spec's sample programs exercise.
var Specs = []Spec{
	{Name: "+", Fn: add},
	{Name: "-", Fn: sub},
	{Name: "*", Fn: mul},
	{Name: "/", Fn: div},
	{Name: "=", Fn: numEq},
	{Name: "<", Fn: numLt},
	{Name: "<=", Fn: numLe},
	{Name: ">", Fn: numGt},
	{Name: ">=", Fn: numGe},
	{Name: "cons", Fn: cons},
	{Name: "car", Fn: car},
	{Name: "cdr", Fn: cdr},
	{Name: "null?", Fn: isNull},
	{Name: "pair?", Fn: isPair},
	{Name: "odd?", Fn: isOdd},
	{Name: "eqv?", Fn: eqv},
	{Name: "not", Fn: not},
	{Name: "display", Fn: display},
	{Name: "newline", Fn: newline},
	{Name: "call/cc", HandRolled: "call/cc"},
}

// Names returns every root-scope binding name in slot order.
func Names() []string {
	names := make([]string, len(Specs))
	for i, s := range Specs {
		names[i] = s.Name
	}
	return names
}

func requireNumbers(args []value.Value) error {
	for _, a := range args {
		if !value.IsNumber(value.Deref(a)) {
			return errors.Errorf("expected a number, got %s", value.Print(a))
		}
	}
	return nil
}

// foldNumeric implements the mixed int/float fold used by + and *:
// the result stays an exact int64 as long as every operand was an int64,
// and widens to float64 the moment any operand isn't. Grounded on
// original_source/src/virtual_machine.cpp's native_fold_left template.
func foldNumeric(identity int64, args []value.Value, foldI func(a, b int64) int64, foldF func(a, b float64) float64) value.Value {
	allInt := true
	for _, a := range args {
		if value.Deref(a).Kind != value.Int64 {
			allInt = false
			break
		}
	}
	if allInt {
		acc := identity
		for _, a := range args {
			acc = foldI(acc, value.Deref(a).Int())
		}
		return value.Int(acc)
	}
	acc := float64(identity)
	for _, a := range args {
		acc = foldF(acc, value.AsFloat(value.Deref(a)))
	}
	return value.Float(acc)
}

func add(args []value.Value) (value.Value, bool, error) {
	if err := requireNumbers(args); err != nil {
		return value.Value{}, false, err
	}
	return foldNumeric(0, args, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }), true, nil
}

func mul(args []value.Value) (value.Value, bool, error) {
	if err := requireNumbers(args); err != nil {
		return value.Value{}, false, err
	}
	return foldNumeric(1, args, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }), true, nil
}

func sub(args []value.Value) (value.Value, bool, error) {
	if err := requireNumbers(args); err != nil {
		return value.Value{}, false, err
	}
	if len(args) == 0 {
		return value.Value{}, false, errors.New("- requires at least one argument")
	}
	if len(args) == 1 {
		first := value.Deref(args[0])
		if first.Kind == value.Int64 {
			return value.Int(-first.Int()), true, nil
		}
		return value.Float(-first.Float()), true, nil
	}
	first := value.Deref(args[0])
	rest := args[1:]
	if first.Kind == value.Int64 && allInts(rest) {
		acc := first.Int()
		for _, a := range rest {
			acc -= value.Deref(a).Int()
		}
		return value.Int(acc), true, nil
	}
	acc := value.AsFloat(first)
	for _, a := range rest {
		acc -= value.AsFloat(value.Deref(a))
	}
	return value.Float(acc), true, nil
}

func div(args []value.Value) (value.Value, bool, error) {
	if err := requireNumbers(args); err != nil {
		return value.Value{}, false, err
	}
	if len(args) == 0 {
		return value.Value{}, false, errors.New("/ requires at least one argument")
	}
	if len(args) == 1 {
		return value.Float(1 / value.AsFloat(value.Deref(args[0]))), true, nil
	}
	acc := value.AsFloat(value.Deref(args[0]))
	for _, a := range args[1:] {
		d := value.AsFloat(value.Deref(a))
		if d == 0 {
			return value.Value{}, false, errors.New("division by zero")
		}
		acc /= d
	}
	return value.Float(acc), true, nil
}

func allInts(args []value.Value) bool {
	for _, a := range args {
		if value.Deref(a).Kind != value.Int64 {
			return false
		}
	}
	return true
}

func chainCompare(args []value.Value, cmp func(a, b float64) bool) (value.Value, bool, error) {
	if err := requireNumbers(args); err != nil {
		return value.Value{}, false, err
	}
	for i := 1; i < len(args); i++ {
		if !cmp(value.AsFloat(value.Deref(args[i-1])), value.AsFloat(value.Deref(args[i]))) {
			return value.Bool_(false), true, nil
		}
	}
	return value.Bool_(true), true, nil
}

func numEq(args []value.Value) (value.Value, bool, error) { return chainCompare(args, func(a, b float64) bool { return a == b }) }
func numLt(args []value.Value) (value.Value, bool, error) { return chainCompare(args, func(a, b float64) bool { return a < b }) }
func numLe(args []value.Value) (value.Value, bool, error) { return chainCompare(args, func(a, b float64) bool { return a <= b }) }
func numGt(args []value.Value) (value.Value, bool, error) { return chainCompare(args, func(a, b float64) bool { return a > b }) }
func numGe(args []value.Value) (value.Value, bool, error) { return chainCompare(args, func(a, b float64) bool { return a >= b }) }

func cons(args []value.Value) (value.Value, bool, error) {
	if len(args) != 2 {
		return value.Value{}, false, errors.Errorf("cons expects 2 arguments, got %d", len(args))
	}
	return value.PairVal(value.Deref(args[0]), value.Deref(args[1])), true, nil
}

func car(args []value.Value) (value.Value, bool, error) {
	if len(args) != 1 || value.Deref(args[0]).Kind != value.Pair {
		return value.Value{}, false, errors.New("car expects a single pair argument")
	}
	return value.Deref(args[0]).PairVal().Car, true, nil
}

func cdr(args []value.Value) (value.Value, bool, error) {
	if len(args) != 1 || value.Deref(args[0]).Kind != value.Pair {
		return value.Value{}, false, errors.New("cdr expects a single pair argument")
	}
	return value.Deref(args[0]).PairVal().Cdr, true, nil
}

func isNull(args []value.Value) (value.Value, bool, error) {
	if len(args) != 1 {
		return value.Value{}, false, errors.New("null? expects 1 argument")
	}
	return value.Bool_(value.Deref(args[0]).Kind == value.EmptyList), true, nil
}

func isPair(args []value.Value) (value.Value, bool, error) {
	if len(args) != 1 {
		return value.Value{}, false, errors.New("pair? expects 1 argument")
	}
	return value.Bool_(value.Deref(args[0]).Kind == value.Pair), true, nil
}

// isOdd mirrors original_source/src/virtual_machine.cpp's builtin_odd: it
// is intentionally restricted to exactly one integer argument.
func isOdd(args []value.Value) (value.Value, bool, error) {
	if len(args) != 1 || value.Deref(args[0]).Kind != value.Int64 {
		return value.Value{}, false, errors.New("odd? expects a single integer argument")
	}
	return value.Bool_(value.Deref(args[0]).Int()%2 != 0), true, nil
}

func eqv(args []value.Value) (value.Value, bool, error) {
	if len(args) != 2 {
		return value.Value{}, false, errors.New("eqv? expects 2 arguments")
	}
	a, b := value.Deref(args[0]), value.Deref(args[1])
	if a.Kind != b.Kind {
		return value.Bool_(false), true, nil
	}
	switch a.Kind {
	case value.Int64:
		return value.Bool_(a.Int() == b.Int()), true, nil
	case value.Float64:
		return value.Bool_(a.Float() == b.Float()), true, nil
	case value.Bool:
		return value.Bool_(a.BoolVal() == b.BoolVal()), true, nil
	case value.Char:
		return value.Bool_(a.CharVal() == b.CharVal()), true, nil
	case value.Symbol:
		return value.Bool_(a.SymbolVal() == b.SymbolVal()), true, nil
	case value.EmptyList:
		return value.Bool_(true), true, nil
	// Pairs, lambdas and continuations compare by identity: the same heap
	// cell, not an equal-looking copy. Builtins compare by name.
	case value.Pair:
		return value.Bool_(a.PairVal() == b.PairVal()), true, nil
	case value.Lambda:
		return value.Bool_(a.LambdaVal() == b.LambdaVal()), true, nil
	case value.Continuation:
		return value.Bool_(a.ContinuationVal() == b.ContinuationVal()), true, nil
	case value.Builtin:
		return value.Bool_(a.BuiltinName() == b.BuiltinName()), true, nil
	default:
		return value.Bool_(false), true, nil
	}
}

func not(args []value.Value) (value.Value, bool, error) {
	if len(args) != 1 {
		return value.Value{}, false, errors.New("not expects 1 argument")
	}
	return value.Bool_(!value.Truthy(args[0])), true, nil
}

func display(args []value.Value) (value.Value, bool, error) {
	if len(args) != 1 {
		return value.Value{}, false, errors.New("display expects 1 argument")
	}
	fmt.Print(value.Print(value.Deref(args[0])))
	return value.Value{}, false, nil
}

func newline(args []value.Value) (value.Value, bool, error) {
	if len(args) != 0 {
		return value.Value{}, false, errors.New("newline expects 0 arguments")
	}
	fmt.Println()
	return value.Value{}, false, nil
}
