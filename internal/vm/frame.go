package vm

import "github.com/kboyd-dev/ployvm/internal/value"

// CallFrame is one activation record on the VM's call stack. Grounded on
// the teacher's lisp_type/stack_frame.go StackFrame, generalized from that
// interpreter's name/env-map bindings to this VM's index-addressed value
// stack slots.
type CallFrame struct {
	// ReturnIP is the instruction to resume at in the caller once this
	// frame's ret runs.
	ReturnIP int
	// Base is the index into the value stack where this frame's callee
	// slot sits; params and locals occupy Base+1, Base+2, ... and the
	// whole run collapses back to Base on ret.
	Base int
	// Closure is the lambda this frame is executing, for push_shared_var /
	// capture_shared_var / set_shared_var to reach its captured values.
	// Set on every frame call pushes, the root program's frame included.
	Closure *value.LambdaData
}
