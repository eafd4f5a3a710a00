package value

import (
	"strconv"
	"strings"
)

// Print renders v in the language's external representation (spec section
// 6): numbers and booleans print as themselves, the empty list prints as
// (), symbols print unquoted, and pairs print as list notation when their
// cdr chain terminates in the empty list, otherwise dotted notation.
// Grounded on the teacher's lisp/print.go printValue, generalized to this
// value model's pair/lambda/continuation kinds.
func Print(v Value) string {
	v = Deref(v)
	switch v.Kind {
	case Int64:
		return strconv.FormatInt(v.i, 10)
	case Float64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Bool:
		if v.b {
			return "#t"
		}
		return "#f"
	case Char:
		return "#\\" + string(v.ch)
	case EmptyList:
		return "()"
	case Symbol:
		return v.sym
	case Pair:
		return "(" + printList(v) + ")"
	case Builtin:
		return "#<builtin " + v.sym + ">"
	case Lambda:
		if v.lam != nil && v.lam.Name != "" {
			return "#<procedure " + v.lam.Name + ">"
		}
		return "#<procedure>"
	case Continuation:
		return "#<continuation>"
	default:
		return "#<unknown>"
	}
}

func printList(v Value) string {
	elems := ToSlice(v)
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = Print(e)
	}
	result := strings.Join(parts, " ")
	if IsProperList(v) {
		return result
	}
	tail := Deref(v)
	for tail.Kind == Pair {
		tail = Deref(tail.pair.Cdr)
	}
	return result + " . " + Print(tail)
}
