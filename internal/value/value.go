// Package value defines the tagged-union runtime value representation
// shared by the compiler's constant pool and the virtual machine's stack.
package value

// Kind discriminates the variants of Value.
type Kind int

const (
	Int64 Kind = iota
	Float64
	Bool
	Char
	EmptyList
	Symbol
	Builtin
	Lambda
	Continuation
	Pair
	// Ref is not a first-class Scheme value; it only ever appears inside a
	// stack slot to indicate that slot has been captured by a closure (see
	// Ref below).
	Ref
)

// BuiltinFunc is the signature every primitive procedure implements. args
// holds the already-dereferenced argument values the caller placed above the
// call frame's callee slot. A primitive returns at most one value: ok
// reports whether it produced one (false collapses the call frame to zero
// values, matching coarity_type::any semantics for calls made in void
// position). This uniformly enforces the spec's "0 or 1 return values for
// primitives" resolution of the pop_excess open question.
type BuiltinFunc func(args []Value) (Value, bool, error)

// Value is a tagged union of every runtime value in the language, plus the
// constant-pool-only lambda placeholders that are materialized into real
// Lambda values at execution time.
type Value struct {
	Kind Kind

	i     int64
	f     float64
	b     bool
	ch    byte
	sym   string
	fn    BuiltinFunc
	pair  *PairData
	lam   *LambdaData
	cont  *ContinuationData
	ref   *Value
	// lambdaConst / handRolledName are only meaningful for the compiler's
	// constant pool: they hold a bytecode offset placeholder patched during
	// bytecode.Buffer.ConcatBlocks, and (for hand-rolled procedures) the
	// name used to look up their canned instruction bytes.
	lambdaConst    *lambdaConstant
	handRolledName string
}

type lambdaConstant struct {
	bytecodeOffset int
}

// PairData is a heap-shared cons cell.
type PairData struct {
	Car Value
	Cdr Value
}

// LambdaData is a heap-shared closure: a bytecode entry point plus the
// values it captured from enclosing scopes.
type LambdaData struct {
	BytecodeOffset int
	Captures       []Value
	// Name is used only for disassembly/printing of hand-rolled procedures.
	Name string
}

// ContinuationData is a heap-shared, fully-copied snapshot of VM state at
// the moment call/cc captured it. Its fields are defined in package vm
// (CallFrame, etc.) and stored here as opaque interface{} to avoid a cycle;
// vm.VM knows how to type-assert them back.
type ContinuationData struct {
	Frozen interface{}
}

func Int(i int64) Value      { return Value{Kind: Int64, i: i} }
func Float(f float64) Value  { return Value{Kind: Float64, f: f} }
func Bool_(b bool) Value     { return Value{Kind: Bool, b: b} }
func Chr(c byte) Value       { return Value{Kind: Char, ch: c} }
func Sym(s string) Value     { return Value{Kind: Symbol, sym: s} }
func Empty() Value           { return Value{Kind: EmptyList} }
func BuiltinProc(f BuiltinFunc, name string) Value {
	return Value{Kind: Builtin, fn: f, sym: name}
}
func LambdaVal(l *LambdaData) Value { return Value{Kind: Lambda, lam: l} }
func ContinuationVal(c *ContinuationData) Value {
	return Value{Kind: Continuation, cont: c}
}
func PairVal(car, cdr Value) Value {
	return Value{Kind: Pair, pair: &PairData{Car: car, Cdr: cdr}}
}
func RefVal(v *Value) Value { return Value{Kind: Ref, ref: v} }

// LambdaConstant builds a constant-pool placeholder for a lambda whose body
// hasn't been assigned a bytecode offset yet.
func LambdaConstant() Value {
	return Value{Kind: Lambda, lambdaConst: &lambdaConstant{}}
}

// HandRolledLambdaConstant builds a constant-pool placeholder for a
// hand-rolled procedure identified by name (e.g. "call/cc"). Like
// LambdaConstant it carries a lambdaConst cell so bytecode.Buffer.ConcatBlocks
// can patch in its canned code's final offset via SetBytecodeOffset.
func HandRolledLambdaConstant(name string) Value {
	return Value{Kind: Lambda, lambdaConst: &lambdaConstant{}, handRolledName: name}
}

// IsLambdaConstant reports whether v is a constant-pool lambda placeholder
// (as opposed to a fully materialized runtime Lambda).
func (v Value) IsLambdaConstant() bool {
	return v.Kind == Lambda && v.lam == nil
}

// IsHandRolled reports whether v is a hand-rolled-procedure placeholder.
func (v Value) IsHandRolled() bool {
	return v.Kind == Lambda && v.lam == nil && v.handRolledName != ""
}

// HandRolledName returns the name of a hand-rolled-procedure placeholder.
func (v Value) HandRolledName() string { return v.handRolledName }

// BytecodeOffset returns the placeholder offset of a constant-pool lambda,
// or the resolved offset of a materialized Lambda.
func (v Value) BytecodeOffset() int {
	if v.lam != nil {
		return v.lam.BytecodeOffset
	}
	if v.lambdaConst != nil {
		return v.lambdaConst.bytecodeOffset
	}
	return 0
}

// SetBytecodeOffset patches the offset of a constant-pool lambda placeholder
// (called from bytecode.Buffer.ConcatBlocks once the final layout is known).
func (v Value) SetBytecodeOffset(offset int) {
	if v.lambdaConst != nil {
		v.lambdaConst.bytecodeOffset = offset
	}
}

// Materialize turns a constant-pool lambda placeholder into a fresh runtime
// closure with no captures yet (captures are attached by subsequent
// capture_stack_var / capture_shared_var instructions).
func (v Value) Materialize() Value {
	if v.handRolledName != "" {
		return LambdaVal(&LambdaData{BytecodeOffset: v.BytecodeOffset(), Name: v.handRolledName})
	}
	return LambdaVal(&LambdaData{BytecodeOffset: v.BytecodeOffset()})
}

func (v Value) Int() int64                     { return v.i }
func (v Value) Float() float64                 { return v.f }
func (v Value) BoolVal() bool                  { return v.b }
func (v Value) CharVal() byte                  { return v.ch }
func (v Value) SymbolVal() string              { return v.sym }
func (v Value) BuiltinVal() BuiltinFunc        { return v.fn }
func (v Value) BuiltinName() string            { return v.sym }
func (v Value) LambdaVal() *LambdaData         { return v.lam }
func (v Value) ContinuationVal() *ContinuationData { return v.cont }
func (v Value) PairVal() *PairData             { return v.pair }
func (v Value) RefVal() *Value                 { return v.ref }

// Deref follows a Ref to the value it wraps, returning v unchanged for any
// other kind. Used by push_stack_var / cons whenever a captured slot might
// be read.
func Deref(v Value) Value {
	if v.Kind == Ref {
		return *v.ref
	}
	return v
}

// Truthy implements the language's truthiness rule: only #f is false, every
// other value (including 0, the empty list, and "#f"-shaped values of other
// kinds) is true.
func Truthy(v Value) bool {
	v = Deref(v)
	return v.Kind != Bool || v.b
}

// IsNumber reports whether v is an Int64 or Float64.
func IsNumber(v Value) bool {
	return v.Kind == Int64 || v.Kind == Float64
}

// AsFloat widens an Int64 or Float64 value to float64.
func AsFloat(v Value) float64 {
	if v.Kind == Int64 {
		return float64(v.i)
	}
	return v.f
}

// StructKey returns a value comparable with ==, suitable for the constant
// pool's structural-equality dedup (see bytecode.Buffer). Composite values
// (pairs) are never interned as constants directly (they're built by cons
// instructions at run time), so StructKey only needs to cover atomic constants
// and the two lambda placeholder forms.
type StructKey struct {
	Kind           Kind
	I              int64
	F              float64
	B              bool
	Ch             byte
	Sym            string
	HandRolledName string
	// LambdaOrdinal distinguishes distinct lambda placeholders: each one
	// added to the pool gets a fresh ordinal so two different lambda bodies
	// are never accidentally deduped, while a hand-rolled procedure is
	// deduped purely by name (matching original_source's
	// hand_rolled_lambda_constant equality, which compares only the name).
	LambdaOrdinal int
}

func (v Value) Key(lambdaOrdinal int) StructKey {
	k := StructKey{Kind: v.Kind, I: v.i, F: v.f, B: v.b, Ch: v.ch, Sym: v.sym}
	if v.Kind == Lambda {
		if v.handRolledName != "" {
			k.HandRolledName = v.handRolledName
		} else {
			k.LambdaOrdinal = lambdaOrdinal
		}
	}
	return k
}

func (v Value) String() string {
	return Print(v)
}
