package value

// ToSlice flattens a proper list built from cons cells into a slice, in
// order. A dotted or improper tail is silently dropped; callers that need
// to distinguish that case should check IsProperList first.
func ToSlice(v Value) []Value {
	var out []Value
	for v = Deref(v); v.Kind == Pair; v = Deref(v.pair.Cdr) {
		out = append(out, v.pair.Car)
	}
	return out
}

// FromSlice builds a proper list from elems, in order.
func FromSlice(elems []Value) Value {
	list := Empty()
	for i := len(elems) - 1; i >= 0; i-- {
		list = PairVal(elems[i], list)
	}
	return list
}

// IsProperList reports whether v's cdr chain terminates in the empty list,
// as opposed to a dotted tail (see Print's list vs. dotted notation rule).
func IsProperList(v Value) bool {
	for v = Deref(v); v.Kind == Pair; v = Deref(v.pair.Cdr) {
	}
	return v.Kind == EmptyList
}
