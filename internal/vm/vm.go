// Package vm executes the bytecode a compiler.Compile run produces: a flat
// value stack, a call-frame stack, jump-based control flow, and first-class
// continuations captured as full state snapshots. Grounded on the
// teacher's lisp/vm.go exec dispatch loop (one switch over an instruction
// stream, explicit instruction-pointer management, a mutable "return
// register" for the value the previous instruction produced), generalized
// from that interpreter's struct-encoded instructions to this VM's
// byte-encoded opcode stream.
package vm

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/kboyd-dev/ployvm/internal/bytecode"
	"github.com/kboyd-dev/ployvm/internal/config"
	"github.com/kboyd-dev/ployvm/internal/ployerr"
	"github.com/kboyd-dev/ployvm/internal/value"
)

// coarity mirrors the compiler's compile-time coarity requirement at
// runtime: the scratch register set_coarity_* writes and the per-call
// record pushed onto coarityStack so the matching ret knows whether to
// keep or discard the callee's result.
type coarity int

const (
	coarityAny coarity = iota
	coarityOne
)

// VM holds all mutable execution state for one program run.
type VM struct {
	code      []byte
	constants []value.Value

	valueStack   []value.Value
	callStack    []CallFrame
	frameMarkers []int
	coarityStack []coarity

	pendingCoarity    coarity
	pendingCoaritySet bool

	limits config.Limits
	trace  io.Writer

	ip int
}

// WithTrace turns on per-instruction tracing to w, for -v/--verbose, and
// returns vm for chaining.
func (vm *VM) WithTrace(w io.Writer) *VM {
	vm.trace = w
	return vm
}

// New builds a VM ready to run buf's concatenated program, with the
// default resource limits.
func New(buf *bytecode.Buffer) *VM {
	return NewWithLimits(buf, config.Default())
}

// NewWithLimits is New with explicit resource limits, as loaded from a
// -config file.
func NewWithLimits(buf *bytecode.Buffer, limits config.Limits) *VM {
	return &VM{code: buf.Code, constants: buf.Constants(), limits: limits}
}

// Run executes the program from its current instruction pointer to
// completion. Any failure is reported as a *ployerr.Error; most are tagged
// ployerr.RuntimeTypeError (the catch-all for primitive and call-target
// type mismatches), with arity and bounds violations broken out into their
// own kinds since the check is cheap to tag at its own call site.
func (vm *VM) Run() (value.Value, error) {
	result, err := vm.run()
	if err != nil {
		return value.Value{}, ployerr.Wrap(ployerr.RuntimeTypeError, err, "running")
	}
	return result, nil
}

func (vm *VM) run() (value.Value, error) {
	for {
		if vm.ip < 0 || vm.ip >= len(vm.code) {
			return value.Value{}, errors.New("instruction pointer ran off the end of the program")
		}
		op := bytecode.Op(vm.code[vm.ip])
		size := bytecode.Size(op)
		nextIP := vm.ip + size

		if vm.trace != nil {
			fmt.Fprintf(vm.trace, "%5d  %-20s stack=%d calls=%d\n", vm.ip, op, len(vm.valueStack), len(vm.callStack))
		}

		switch op {
		case bytecode.OpHalt:
			if len(vm.valueStack) == 0 {
				return value.Value{}, nil
			}
			return vm.valueStack[len(vm.valueStack)-1], nil

		case bytecode.OpPushConstant:
			idx := vm.code[vm.ip+1]
			if int(idx) >= len(vm.constants) {
				return value.Value{}, ployerr.Newf(ployerr.RuntimeBoundsError, "constant index %d out of bounds", idx)
			}
			c := vm.constants[idx]
			if c.Kind == value.Lambda {
				c = c.Materialize()
			}
			vm.push(c)

		case bytecode.OpPushStackVar:
			idx := int(vm.code[vm.ip+1])
			v, err := vm.stackVar(idx)
			if err != nil {
				return value.Value{}, err
			}
			vm.push(value.Deref(v))

		case bytecode.OpPushSharedVar:
			idx := int(vm.code[vm.ip+1])
			v, err := vm.sharedVar(idx)
			if err != nil {
				return value.Value{}, err
			}
			vm.push(value.Deref(v))

		case bytecode.OpSetStackVar:
			idx := int(vm.code[vm.ip+1])
			v := vm.pop()
			if err := vm.setStackVar(idx, v); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpSetSharedVar:
			idx := int(vm.code[vm.ip+1])
			v := vm.pop()
			if err := vm.setSharedVar(idx, v); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpAddStackVar:
			// The value is already sitting in its assigned slot at the top
			// of the frame's local region; nothing to move.

		case bytecode.OpCaptureStackVar:
			idx := int(vm.code[vm.ip+1])
			if err := vm.captureStackVar(idx); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpCaptureSharedVar:
			idx := int(vm.code[vm.ip+1])
			if err := vm.captureSharedVar(idx); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpPushFrameIndex:
			vm.frameMarkers = append(vm.frameMarkers, len(vm.valueStack))

		case bytecode.OpSetCoarityAny:
			vm.pendingCoarity = coarityAny
			vm.pendingCoaritySet = true

		case bytecode.OpSetCoarityOne:
			vm.pendingCoarity = coarityOne
			vm.pendingCoaritySet = true

		case bytecode.OpCall:
			taken, err := vm.call()
			if err != nil {
				return value.Value{}, err
			}
			if taken >= 0 {
				nextIP = taken
			}

		case bytecode.OpExpectArgc:
			want := int(vm.code[vm.ip+1])
			got := len(vm.valueStack) - vm.currentFrame().Base - 1
			if got != want {
				return value.Value{}, ployerr.Newf(ployerr.RuntimeArityError, "procedure expected %d arguments, got %d", want, got)
			}

		case bytecode.OpRet:
			target, err := vm.ret()
			if err != nil {
				return value.Value{}, err
			}
			nextIP = target

		case bytecode.OpJumpForward:
			nextIP = vm.jumpTarget()

		case bytecode.OpJumpForwardIfNot:
			target := vm.jumpTarget()
			if !value.Truthy(vm.pop()) {
				nextIP = target
			}

		case bytecode.OpCons:
			cdr := vm.pop()
			car := vm.pop()
			vm.push(value.PairVal(car, cdr))

		case bytecode.OpPushContinuation:
			snap := vm.capture()
			vm.push(value.ContinuationVal(&value.ContinuationData{Frozen: snap}))

		default:
			return value.Value{}, errors.Errorf("unknown opcode %v", op)
		}

		vm.ip = nextIP
	}
}

func (vm *VM) push(v value.Value) { vm.valueStack = append(vm.valueStack, v) }

func (vm *VM) pop() value.Value {
	v := vm.valueStack[len(vm.valueStack)-1]
	vm.valueStack = vm.valueStack[:len(vm.valueStack)-1]
	return v
}

func (vm *VM) jumpTarget() int {
	placeholderStart := vm.ip + 1
	offset := binary.LittleEndian.Uint32(vm.code[placeholderStart : placeholderStart+4])
	return placeholderStart + int(offset)
}

// currentFrame returns a zero-value frame (Base -1) before any call has
// run, so root-level push_stack_var indexing (Base+1+idx with Base=-1 is
// invalid) is guarded by callers; in practice the compiler never emits a
// stack-var reference outside of some lambda body, root included, since
// root's own body always runs inside the frame ConcatBlocks' bootstrap
// call pushes.
func (vm *VM) currentFrame() *CallFrame {
	if len(vm.callStack) == 0 {
		return &CallFrame{Base: -1}
	}
	return &vm.callStack[len(vm.callStack)-1]
}

func (vm *VM) stackVar(idx int) (value.Value, error) {
	pos := vm.currentFrame().Base + 1 + idx
	if pos < 0 || pos >= len(vm.valueStack) {
		return value.Value{}, errors.Errorf("stack var index %d out of range", idx)
	}
	return vm.valueStack[pos], nil
}

func (vm *VM) setStackVar(idx int, v value.Value) error {
	pos := vm.currentFrame().Base + 1 + idx
	if pos < 0 || pos >= len(vm.valueStack) {
		return errors.Errorf("stack var index %d out of range", idx)
	}
	if vm.valueStack[pos].Kind == value.Ref {
		*vm.valueStack[pos].RefVal() = v
		return nil
	}
	vm.valueStack[pos] = v
	return nil
}

func (vm *VM) sharedVar(idx int) (value.Value, error) {
	cl := vm.currentFrame().Closure
	if cl == nil || idx < 0 || idx >= len(cl.Captures) {
		return value.Value{}, errors.Errorf("shared var index %d out of range", idx)
	}
	return cl.Captures[idx], nil
}

func (vm *VM) setSharedVar(idx int, v value.Value) error {
	cl := vm.currentFrame().Closure
	if cl == nil || idx < 0 || idx >= len(cl.Captures) {
		return errors.Errorf("shared var index %d out of range", idx)
	}
	if cl.Captures[idx].Kind != value.Ref {
		return errors.New("shared var was not captured by reference")
	}
	*cl.Captures[idx].RefVal() = v
	return nil
}

// captureStackVar boxes the current frame's stack slot idx into a Ref (if
// it isn't one already, so every holder of it now shares one mutable
// cell) and appends that Ref to the Captures of the closure sitting on
// top of the value stack — the one compileLambdaBody just pushed via
// push_constant, immediately before this instruction runs.
func (vm *VM) captureStackVar(idx int) error {
	pos := vm.currentFrame().Base + 1 + idx
	if pos < 0 || pos >= len(vm.valueStack) {
		return errors.Errorf("capture of stack var %d out of range", idx)
	}
	top := len(vm.valueStack) - 1
	if vm.valueStack[pos].Kind != value.Ref {
		boxed := vm.valueStack[pos]
		ref := value.RefVal(&boxed)
		vm.valueStack[pos] = ref
		if pos == top {
			// A directly self-recursive define captures its own slot,
			// which is exactly where push_constant just left the closure:
			// boxing it overwrote the stack top with the new Ref, so the
			// closure to append this capture to is boxed itself, not
			// whatever now sits on top of the stack.
			return appendCaptureToClosure(boxed, ref)
		}
		return vm.appendCaptureToTopClosure(ref)
	}
	return vm.appendCaptureToTopClosure(vm.valueStack[pos])
}

// captureSharedVar re-exports a capture the current frame already holds
// (idx into its own Closure.Captures) to the new closure one level deeper,
// propagating a variable through more than one level of nested lambda.
func (vm *VM) captureSharedVar(idx int) error {
	cl := vm.currentFrame().Closure
	if cl == nil || idx < 0 || idx >= len(cl.Captures) {
		return errors.Errorf("capture of shared var %d out of range", idx)
	}
	return vm.appendCaptureToTopClosure(cl.Captures[idx])
}

func (vm *VM) appendCaptureToTopClosure(ref value.Value) error {
	// The top may itself have been boxed by an earlier self-capture.
	return appendCaptureToClosure(value.Deref(vm.valueStack[len(vm.valueStack)-1]), ref)
}

func appendCaptureToClosure(closure value.Value, ref value.Value) error {
	lam := closure.LambdaVal()
	if closure.Kind != value.Lambda || lam == nil {
		return errors.New("capture instruction did not find a freshly pushed closure on top of the stack")
	}
	lam.Captures = append(lam.Captures, ref)
	return nil
}

// call resolves the pending call at the most recent push_frame_index
// marker, dispatching on the callee's kind. It returns the instruction
// pointer to resume at if it changed control flow (entering a lambda
// body or restoring a continuation), or -1 to fall through to the next
// instruction as usual.
func (vm *VM) call() (int, error) {
	if len(vm.frameMarkers) == 0 {
		return -1, errors.New("call with no push_frame_index marker")
	}
	base := vm.frameMarkers[len(vm.frameMarkers)-1]
	vm.frameMarkers = vm.frameMarkers[:len(vm.frameMarkers)-1]

	req := vm.ambientCoarity()
	if vm.pendingCoaritySet {
		req = vm.pendingCoarity
	}
	vm.pendingCoaritySet = false

	callee := value.Deref(vm.valueStack[base])
	args := make([]value.Value, len(vm.valueStack)-base-1)
	for i, v := range vm.valueStack[base+1:] {
		args[i] = value.Deref(v)
	}

	switch callee.Kind {
	case value.Builtin:
		result, ok, err := callee.BuiltinVal()(args)
		vm.valueStack = vm.valueStack[:base]
		if err != nil {
			return 0, errors.Wrapf(err, "calling %s", callee.BuiltinName())
		}
		if req == coarityOne {
			if !ok {
				return 0, errors.Errorf("%s produced no value but one was required", callee.BuiltinName())
			}
			vm.push(result)
		}
		return -1, nil

	case value.Lambda:
		lam := callee.LambdaVal()
		if lam == nil {
			return 0, errors.New("call to an unmaterialized lambda constant")
		}
		if len(vm.callStack)+1 > vm.limits.MaxCallStackDepth {
			return 0, ployerr.Newf(ployerr.RuntimeBoundsError, "call stack depth exceeded %d", vm.limits.MaxCallStackDepth)
		}
		if len(vm.valueStack) > vm.limits.MaxValueStackDepth {
			return 0, ployerr.Newf(ployerr.RuntimeBoundsError, "value stack depth exceeded %d", vm.limits.MaxValueStackDepth)
		}
		vm.callStack = append(vm.callStack, CallFrame{ReturnIP: vm.ip + bytecode.Size(bytecode.OpCall), Base: base, Closure: lam})
		vm.coarityStack = append(vm.coarityStack, req)
		return lam.BytecodeOffset, nil

	case value.Continuation:
		if len(args) != 1 {
			return 0, errors.New("continuation invoked with more than one argument")
		}
		cont := callee.ContinuationVal()
		snap, ok := cont.Frozen.(*snapshot)
		if !ok {
			return 0, errors.New("malformed continuation")
		}
		result := args[0]
		vm.restore(snap, result)
		return vm.ip, nil

	default:
		return 0, errors.Errorf("attempted to call a non-procedure: %s", value.Print(callee))
	}
}

func (vm *VM) ambientCoarity() coarity {
	if len(vm.coarityStack) == 0 {
		return coarityOne
	}
	return vm.coarityStack[len(vm.coarityStack)-1]
}

// ret pops the current call frame, collapses its args/locals, and keeps or
// discards whatever value the body left on top of the stack according to
// the coarity its caller requested.
func (vm *VM) ret() (int, error) {
	if len(vm.callStack) == 0 {
		return 0, errors.New("ret with no active call frame")
	}
	frame := vm.callStack[len(vm.callStack)-1]
	vm.callStack = vm.callStack[:len(vm.callStack)-1]
	req := vm.coarityStack[len(vm.coarityStack)-1]
	vm.coarityStack = vm.coarityStack[:len(vm.coarityStack)-1]

	if req == coarityOne {
		if len(vm.valueStack) <= frame.Base {
			return 0, errors.New("procedure returned no value but one was required")
		}
		result := vm.valueStack[len(vm.valueStack)-1]
		vm.valueStack = vm.valueStack[:frame.Base]
		vm.push(result)
	} else {
		vm.valueStack = vm.valueStack[:frame.Base]
	}

	return frame.ReturnIP, nil
}
