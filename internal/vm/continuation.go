package vm

import "github.com/kboyd-dev/ployvm/internal/value"

// snapshot captures everything needed to make call/cc's own frame appear
// to return the moment its continuation is later invoked: a trimmed copy
// of the state as it stood just *underneath* that frame, plus where and
// whether that frame's caller expects a value back. Grounded on
// original_source/include/virtual_machine.hpp's continuation struct,
// adapted here to an "unwind eagerly" shape (rather than a lazily-replayed
// instruction pointer) since this VM's push_continuation always runs right
// after call/cc's opening expect_argc, with that invocation's own call
// frame still on top of the call stack.
type snapshot struct {
	valueStack   []value.Value
	callStack    []CallFrame
	frameMarkers []int
	coarityStack []coarity
	resumeIP     int
	wantsValue   bool
}

// capture builds the snapshot for the call/cc frame currently executing.
func (vm *VM) capture() *snapshot {
	frame := vm.callStack[len(vm.callStack)-1]
	req := vm.coarityStack[len(vm.coarityStack)-1]
	return &snapshot{
		valueStack:   append([]value.Value(nil), vm.valueStack[:frame.Base]...),
		callStack:    append([]CallFrame(nil), vm.callStack[:len(vm.callStack)-1]...),
		frameMarkers: append([]int(nil), vm.frameMarkers...),
		coarityStack: append([]coarity(nil), vm.coarityStack[:len(vm.coarityStack)-1]...),
		resumeIP:     frame.ReturnIP,
		wantsValue:   req == coarityOne,
	}
}

// restore replaces the live VM state with s's, as if the captured call/cc
// frame had just returned result to its own caller.
func (vm *VM) restore(s *snapshot, result value.Value) {
	vm.valueStack = append([]value.Value(nil), s.valueStack...)
	if s.wantsValue {
		vm.valueStack = append(vm.valueStack, result)
	}
	vm.callStack = append([]CallFrame(nil), s.callStack...)
	vm.frameMarkers = append([]int(nil), s.frameMarkers...)
	vm.coarityStack = append([]coarity(nil), s.coarityStack...)
	vm.ip = s.resumeIP
}
