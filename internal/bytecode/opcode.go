// Package bytecode owns the final linear instruction stream, the constant
// pool, and the per-lambda code blocks produced while compiling, later
// concatenated into one program (spec section 4.3/4.4).
package bytecode

// Op identifies a one-byte VM instruction. Arguments, when present, are
// immediate bytes following the opcode.
type Op byte

const (
	OpPushConstant Op = iota
	OpPushStackVar
	OpPushSharedVar
	OpSetStackVar
	OpSetSharedVar
	OpAddStackVar
	OpCaptureStackVar
	OpCaptureSharedVar
	OpPushFrameIndex
	OpCall
	OpExpectArgc
	OpRet
	OpJumpForward
	OpJumpForwardIfNot
	OpCons
	OpPushContinuation
	OpSetCoarityAny
	OpSetCoarityOne
	OpHalt
)

// argWidth is the number of immediate bytes following each opcode. Jump
// opcodes carry a 4-byte (uint32) offset; everything else carries either no
// argument or a single byte index.
var argWidth = map[Op]int{
	OpPushConstant:      1,
	OpPushStackVar:      1,
	OpPushSharedVar:     1,
	OpSetStackVar:       1,
	OpSetSharedVar:      1,
	OpAddStackVar:       0,
	OpCaptureStackVar:   1,
	OpCaptureSharedVar:  1,
	OpPushFrameIndex:    0,
	OpCall:              0,
	OpExpectArgc:        1,
	OpRet:               0,
	OpJumpForward:       4,
	OpJumpForwardIfNot:  4,
	OpCons:              0,
	OpPushContinuation:  0,
	OpSetCoarityAny:     0,
	OpSetCoarityOne:     0,
	OpHalt:              0,
}

// ArgWidth returns the number of immediate argument bytes for op.
func ArgWidth(op Op) int { return argWidth[op] }

// Size returns 1 + ArgWidth(op): the total instruction size in bytes.
func Size(op Op) int { return 1 + argWidth[op] }

var names = map[Op]string{
	OpPushConstant:     "push_constant",
	OpPushStackVar:     "push_stack_var",
	OpPushSharedVar:    "push_shared_var",
	OpSetStackVar:      "set_stack_var",
	OpSetSharedVar:     "set_shared_var",
	OpAddStackVar:      "add_stack_var",
	OpCaptureStackVar:  "capture_stack_var",
	OpCaptureSharedVar: "capture_shared_var",
	OpPushFrameIndex:   "push_frame_index",
	OpCall:             "call",
	OpExpectArgc:       "expect_argc",
	OpRet:              "ret",
	OpJumpForward:      "jump_forward",
	OpJumpForwardIfNot: "jump_forward_if_not",
	OpCons:             "cons",
	OpPushContinuation: "push_continuation",
	OpSetCoarityAny:    "set_coarity_any",
	OpSetCoarityOne:    "set_coarity_one",
	OpHalt:             "halt",
}

func (op Op) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "unknown"
}
